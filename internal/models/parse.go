package models

import (
	"encoding/json"
	"strings"
	"time"
)

// inboundEvent is the wire shape published by producers. The document
// reference arrives as documentName; document is accepted as well.
type inboundEvent struct {
	ID            string     `json:"id"`
	Timestamp     *time.Time `json:"timestamp"`
	User          string     `json:"user"`
	Category      string     `json:"category"`
	Action        string     `json:"action"`
	DocumentName  string     `json:"documentName"`
	Document      string     `json:"document"`
	Project       string     `json:"project"`
	Environment   string     `json:"environment"`
	Tenant        string     `json:"tenant"`
	CorrelationID string     `json:"correlationId"`
	TraceID       string     `json:"traceId"`
	Details       *Details   `json:"details"`
}

// Parser turns raw inbound messages into events.
type Parser struct {
	// Now supplies the timestamp for events that arrive without one.
	Now func() time.Time
}

// DefaultParser stamps missing timestamps with the wall clock.
var DefaultParser = Parser{Now: time.Now}

// ParseEvent parses raw with DefaultParser.
func ParseEvent(raw []byte) (Event, error) {
	return DefaultParser.Parse(raw)
}

// Parse decodes one JSON object into an Event. Unknown fields are ignored.
// A missing timestamp is filled in here, at parse time; user, category and
// action must be non-blank.
func (p Parser) Parse(raw []byte) (Event, error) {
	var in inboundEvent
	if err := json.Unmarshal(raw, &in); err != nil {
		return Event{}, &ParseError{Reason: "malformed JSON", Err: err}
	}

	var missing []string
	if strings.TrimSpace(in.User) == "" {
		missing = append(missing, "user")
	}
	if strings.TrimSpace(in.Category) == "" {
		missing = append(missing, "category")
	}
	if strings.TrimSpace(in.Action) == "" {
		missing = append(missing, "action")
	}
	if len(missing) > 0 {
		return Event{}, &ParseError{Reason: "missing required field(s): " + strings.Join(missing, ", ")}
	}

	ev := Event{
		ID:            in.ID,
		User:          in.User,
		Category:      in.Category,
		Action:        in.Action,
		Document:      in.DocumentName,
		Project:       in.Project,
		Environment:   in.Environment,
		Tenant:        in.Tenant,
		CorrelationID: in.CorrelationID,
		TraceID:       in.TraceID,
		Details:       in.Details,
	}
	if ev.Document == "" {
		ev.Document = in.Document
	}

	if in.Timestamp != nil && !in.Timestamp.IsZero() {
		ev.Timestamp = in.Timestamp.UTC()
	} else {
		now := time.Now
		if p.Now != nil {
			now = p.Now
		}
		ev.Timestamp = now().UTC()
	}

	return ev, nil
}
