// Package seeder generates realistic audit events and publishes them to the
// inbound stream for local development and load testing.
package seeder

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/telhawk-systems/eventlogs/internal/models"
)

// WireEvent is the producer-side message shape.
type WireEvent struct {
	ID            string          `json:"id,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	User          string          `json:"user,omitempty"`
	Category      string          `json:"category,omitempty"`
	Action        string          `json:"action,omitempty"`
	DocumentName  string          `json:"documentName,omitempty"`
	Project       string          `json:"project,omitempty"`
	Environment   string          `json:"environment,omitempty"`
	Tenant        string          `json:"tenant,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
	TraceID       string          `json:"traceId,omitempty"`
	Details       *models.Details `json:"details,omitempty"`
}

var actionsByCategory = map[string][]string{
	"auth":     {"login", "logout", "password_reset", "mfa_challenge"},
	"document": {"create", "view", "edit", "delete", "share"},
	"project":  {"create", "archive", "rename", "add_member", "remove_member"},
	"settings": {"update", "reset"},
	"billing":  {"invoice_view", "plan_change", "payment_method_update"},
}

var (
	categories   = []string{"auth", "document", "project", "settings", "billing"}
	environments = []string{"production", "staging", "development"}
	tenants      = []string{"acme", "globex", "initech", "umbrella"}
)

// Generator produces events spread over [now-spread, now].
type Generator struct {
	faker  *gofakeit.Faker
	spread time.Duration
	now    func() time.Time
}

// NewGenerator returns a Generator. A seed of 0 picks a random one; any
// other seed makes the sequence reproducible.
func NewGenerator(seed int64, spread time.Duration) *Generator {
	return &Generator{
		faker:  gofakeit.New(seed),
		spread: spread,
		now:    time.Now,
	}
}

func (g *Generator) timestamp() time.Time {
	now := g.now().UTC()
	if g.spread <= 0 {
		return now
	}
	return g.faker.DateRange(now.Add(-g.spread), now).UTC()
}

// Event returns one valid event.
func (g *Generator) Event() WireEvent {
	f := g.faker
	category := f.RandomString(categories)
	ev := WireEvent{
		ID:            f.UUID(),
		Timestamp:     g.timestamp(),
		User:          f.Username(),
		Category:      category,
		Action:        f.RandomString(actionsByCategory[category]),
		Project:       f.AppName(),
		Environment:   f.RandomString(environments),
		Tenant:        f.RandomString(tenants),
		CorrelationID: f.UUID(),
		TraceID:       fmt.Sprintf("%032x", f.Uint64()),
		Details: &models.Details{
			IPAddress: f.IPv4Address(),
			UserAgent: f.UserAgent(),
		},
	}

	switch category {
	case "document":
		ev.DocumentName = f.Word() + ".md"
		if ev.Action == "edit" {
			ev.Details.Changes = []models.Change{
				{Field: "title", OldValue: f.Sentence(3), NewValue: f.Sentence(3)},
			}
		}
	case "settings":
		ev.Details.AdditionalInfo = f.Sentence(6)
	}
	return ev
}

// Payload returns a serialized message. With probability invalidRatio the
// message is unusable: either truncated JSON or missing a required field.
func (g *Generator) Payload(invalidRatio float64) ([]byte, bool, error) {
	ev := g.Event()
	invalid := invalidRatio > 0 && g.faker.Float64() < invalidRatio
	if invalid && g.faker.Bool() {
		ev.Action = ""
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return nil, false, fmt.Errorf("marshal event: %w", err)
	}
	if invalid && ev.Action != "" {
		data = data[:len(data)/2]
	}
	return data, invalid, nil
}
