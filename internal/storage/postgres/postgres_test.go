package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/telhawk-systems/eventlogs/internal/models"
)

// setupTestDatabase starts PostgreSQL in a container, applies the embedded
// migrations and returns both stores.
func setupTestDatabase(t *testing.T) (*EventStore, *SettingsStore) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:17-alpine",
		tcpostgres.WithDatabase("eventlogs_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, Migrate(connStr))

	pool, err := NewPool(ctx, connStr, 4)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return NewEventStore(pool), NewSettingsStore(pool)
}

func event(user string, ts time.Time) models.Event {
	return models.Event{
		Timestamp: ts,
		User:      user,
		Category:  "auth",
		Action:    "login",
	}
}

func TestEventStore_Integration(t *testing.T) {
	store, settings := setupTestDatabase(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("empty add is a no-op", func(t *testing.T) {
		require.NoError(t, store.Add(ctx, nil))
		require.NoError(t, store.Add(ctx, []models.Event{}))
	})

	t.Run("ingest then search by user", func(t *testing.T) {
		ev, err := models.ParseEvent([]byte(`{"timestamp":"2024-01-01T00:00:00Z","user":"alice","category":"auth","action":"login",
			"details":{"ipAddress":"10.1.1.1","changes":[{"field":"a","oldValue":"1","newValue":"2"}]}}`))
		require.NoError(t, err)
		require.NoError(t, store.Add(ctx, []models.Event{ev}))

		q := models.NewQuery()
		q.User = "alice"
		page, err := store.Search(ctx, q)
		require.NoError(t, err)
		require.Equal(t, int64(1), page.Total)
		require.Len(t, page.Items, 1)

		got := page.Items[0]
		assert.Equal(t, "alice", got.User)
		assert.NotEmpty(t, got.ID)
		assert.Equal(t, "10.1.1.1", got.IPAddress())
		require.Len(t, got.Details.Changes, 1)
		assert.Equal(t, "2", got.Details.Changes[0].NewValue)
	})

	t.Run("redelivered batch does not fail or duplicate", func(t *testing.T) {
		id := uuid.NewString()
		ev := event("redelivery", now)
		ev.ID = id

		require.NoError(t, store.Add(ctx, []models.Event{ev}))
		require.NoError(t, store.Add(ctx, []models.Event{ev}))

		q := models.NewQuery()
		q.User = "redelivery"
		n, err := store.Count(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("invalid id is replaced", func(t *testing.T) {
		ev := event("badid", now)
		ev.ID = "not-a-uuid"
		require.NoError(t, store.Add(ctx, []models.Event{ev}))

		q := models.NewQuery()
		q.User = "badid"
		page, err := store.Search(ctx, q)
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		_, err = uuid.Parse(page.Items[0].ID)
		assert.NoError(t, err)
	})

	t.Run("pagination and sort", func(t *testing.T) {
		var batch []models.Event
		for i := 0; i < 5; i++ {
			batch = append(batch, event("pager", now.Add(time.Duration(i)*time.Minute)))
		}
		require.NoError(t, store.Add(ctx, batch))

		q := models.NewQuery()
		q.User = "pager"
		q.Size = 2
		q.Page = 1
		q.SortOrder = "ASC"
		page, err := store.Search(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, int64(5), page.Total)
		require.Len(t, page.Items, 2)
		assert.True(t, page.Items[0].Timestamp.Equal(now.Add(2*time.Minute)))
		assert.True(t, page.Items[1].Timestamp.Equal(now.Add(3*time.Minute)))

		q.SortOrder = "desc"
		q.Page = 0
		page, err = store.Search(ctx, q)
		require.NoError(t, err)
		assert.True(t, page.Items[0].Timestamp.Equal(now.Add(4*time.Minute)))
	})

	t.Run("no filters matches everything", func(t *testing.T) {
		q := models.NewQuery()
		q.Size = 1000
		page, err := store.Search(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, page.Total, int64(len(page.Items)))
		assert.GreaterOrEqual(t, page.Total, int64(8))
	})

	t.Run("settings absent then saved", func(t *testing.T) {
		st, err := settings.Get(ctx)
		require.NoError(t, err)
		assert.Nil(t, st)

		require.NoError(t, settings.Save(ctx, models.Settings{RetentionPeriodDays: 30, UpdatedAt: now, UpdatedBy: "api-user"}))
		require.NoError(t, settings.Save(ctx, models.Settings{RetentionPeriodDays: 45, UpdatedAt: now, UpdatedBy: "api-user"}))

		st, err = settings.Get(ctx)
		require.NoError(t, err)
		require.NotNil(t, st)
		assert.Equal(t, models.SettingsID, st.ID)
		assert.Equal(t, 45, st.RetentionPeriodDays)
		assert.Equal(t, "api-user", st.UpdatedBy)
	})
}

func TestEventStore_DeleteOlderThan(t *testing.T) {
	store, _ := setupTestDatabase(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	day := 24 * time.Hour

	var batch []models.Event
	for _, age := range []int{40, 35, 25, 10, 0} {
		batch = append(batch, event("retention", now.Add(-time.Duration(age)*day)))
	}
	cutoff := now.Add(-30 * day)
	batch = append(batch, event("boundary", cutoff))
	require.NoError(t, store.Add(ctx, batch))

	deleted, err := store.DeleteOlderThan(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	q := models.NewQuery()
	q.User = "retention"
	n, err := store.Count(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	q.User = "boundary"
	n, err = store.Count(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "record exactly at the cutoff is retained")
}
