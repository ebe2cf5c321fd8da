package consumer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/eventlogs/internal/dlq"
	"github.com/telhawk-systems/eventlogs/internal/metrics"
	"github.com/telhawk-systems/eventlogs/internal/models"
)

type fakeBatch struct {
	payloads [][]byte
	acked    bool
	rejected bool
	reason   string
	cause    error
	ackErr   error
}

func (b *fakeBatch) Payloads() [][]byte { return b.payloads }

func (b *fakeBatch) Ack(context.Context) error {
	b.acked = true
	return b.ackErr
}

func (b *fakeBatch) Reject(_ context.Context, reason string, cause error) error {
	b.rejected = true
	b.reason = reason
	b.cause = cause
	return nil
}

type fakeStore struct {
	calls  int
	events []models.Event
	err    error
}

func (s *fakeStore) Add(_ context.Context, events []models.Event) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, events...)
	return nil
}

func newTestConsumer(store Writer) *Consumer {
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return New(store).WithParser(models.Parser{Now: func() time.Time { return fixed }})
}

func TestHandleBatch_EmptyBatchIsAcked(t *testing.T) {
	store := &fakeStore{}
	b := &fakeBatch{}

	require.NoError(t, newTestConsumer(store).HandleBatch(context.Background(), b))
	assert.True(t, b.acked)
	assert.False(t, b.rejected)
	assert.Zero(t, store.calls, "empty batch never reaches storage")
}

func TestHandleBatch_StoresAndAcks(t *testing.T) {
	store := &fakeStore{}
	b := &fakeBatch{payloads: [][]byte{
		[]byte(`{"user":"alice","category":"auth","action":"login"}`),
		[]byte(`{"user":"bob","category":"docs","action":"edit","documentName":"plan.md"}`),
	}}

	require.NoError(t, newTestConsumer(store).HandleBatch(context.Background(), b))
	assert.True(t, b.acked)
	require.Len(t, store.events, 2)
	assert.Equal(t, "alice", store.events[0].User)
	assert.Equal(t, "plan.md", store.events[1].Document)
	assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), store.events[0].Timestamp)
}

func TestHandleBatch_MissingActionIsNeitherStoredNorAcked(t *testing.T) {
	store := &fakeStore{}
	b := &fakeBatch{payloads: [][]byte{
		[]byte(`{"user":"alice","category":"auth"}`),
	}}

	err := newTestConsumer(store).HandleBatch(context.Background(), b)
	require.Error(t, err)

	var failure *models.BatchFailure
	require.True(t, errors.As(err, &failure))
	assert.True(t, failure.AllFailed())
	assert.Equal(t, 1, failure.Received)

	assert.Zero(t, store.calls)
	assert.False(t, b.acked)
	assert.True(t, b.rejected)
	assert.Equal(t, dlq.ReasonParseFailed, b.reason)
}

func TestHandleBatch_PartiallyMalformedBatchStoresTheRest(t *testing.T) {
	store := &fakeStore{}
	b := &fakeBatch{payloads: [][]byte{
		[]byte(`not json`),
		[]byte(`{"user":"carol","category":"auth","action":"logout"}`),
		[]byte(`{"category":"auth","action":"logout"}`),
	}}

	require.NoError(t, newTestConsumer(store).HandleBatch(context.Background(), b))
	assert.Equal(t, 1, store.calls)
	require.Len(t, store.events, 1)
	assert.Equal(t, "carol", store.events[0].User)
	assert.True(t, b.acked)
	assert.False(t, b.rejected)
}

func TestHandleBatch_StorageFailureRejects(t *testing.T) {
	storeErr := &models.StorageError{Op: "add", Err: errors.New("connection refused")}
	store := &fakeStore{err: storeErr}
	b := &fakeBatch{payloads: [][]byte{
		[]byte(`{"user":"alice","category":"auth","action":"login"}`),
	}}

	err := newTestConsumer(store).HandleBatch(context.Background(), b)
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)

	assert.False(t, b.acked)
	assert.True(t, b.rejected)
	assert.Equal(t, dlq.ReasonStorageFailed, b.reason)
	assert.Equal(t, storeErr, b.cause)
}

func TestHandleBatch_AckFailureIsReported(t *testing.T) {
	store := &fakeStore{}
	b := &fakeBatch{
		payloads: [][]byte{[]byte(`{"user":"alice","category":"auth","action":"login"}`)},
		ackErr:   errors.New("connection closed"),
	}

	err := newTestConsumer(store).HandleBatch(context.Background(), b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ack batch")
	assert.Len(t, store.events, 1)
}

func TestHandleBatch_CountsReceivedParsedFailedAndStored(t *testing.T) {
	received := testutil.ToFloat64(metrics.MessagesReceived)
	parsed := testutil.ToFloat64(metrics.MessagesParsed)
	failed := testutil.ToFloat64(metrics.MessagesFailed)
	stored := testutil.ToFloat64(metrics.EventsIngested)

	b := &fakeBatch{payloads: [][]byte{
		[]byte(`{"user":"alice","category":"auth","action":"login"}`),
		[]byte(`{"user":"bob","category":"auth","action":"logout"}`),
		[]byte(`{"user":"carol"}`),
	}}
	require.NoError(t, newTestConsumer(&fakeStore{}).HandleBatch(context.Background(), b))

	assert.Equal(t, received+3, testutil.ToFloat64(metrics.MessagesReceived))
	assert.Equal(t, parsed+2, testutil.ToFloat64(metrics.MessagesParsed))
	assert.Equal(t, failed+1, testutil.ToFloat64(metrics.MessagesFailed))
	assert.Equal(t, stored+2, testutil.ToFloat64(metrics.EventsIngested))
}

func TestHandleBatch_StorageFailureIsNotCountedAsStored(t *testing.T) {
	stored := testutil.ToFloat64(metrics.EventsIngested)

	b := &fakeBatch{payloads: [][]byte{[]byte(`{"user":"alice","category":"auth","action":"login"}`)}}
	err := newTestConsumer(&fakeStore{err: errors.New("down")}).HandleBatch(context.Background(), b)

	require.Error(t, err)
	assert.Equal(t, stored, testutil.ToFloat64(metrics.EventsIngested))
}
