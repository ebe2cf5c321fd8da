// Package models defines the event record, query specification, settings
// record and error taxonomy shared by every eventlogs component.
package models

import "time"

// Event is a single audit record. Once stored, an event is never updated;
// it leaves storage only through the retention sweep.
type Event struct {
	ID            string    `json:"id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	User          string    `json:"user"`
	Category      string    `json:"category"`
	Action        string    `json:"action"`
	Document      string    `json:"document,omitempty"`
	Project       string    `json:"project,omitempty"`
	Environment   string    `json:"environment,omitempty"`
	Tenant        string    `json:"tenant,omitempty"`
	CorrelationID string    `json:"correlationId,omitempty"`
	TraceID       string    `json:"traceId,omitempty"`
	Details       *Details  `json:"details,omitempty"`
}

// Details holds the free-form context attached to an event.
type Details struct {
	Changes        []Change `json:"changes,omitempty"`
	IPAddress      string   `json:"ipAddress,omitempty"`
	UserAgent      string   `json:"userAgent,omitempty"`
	AdditionalInfo string   `json:"additionalInfo,omitempty"`
}

// Change records one field transition; order within Details.Changes is preserved.
type Change struct {
	Field    string `json:"field"`
	OldValue string `json:"oldValue,omitempty"`
	NewValue string `json:"newValue,omitempty"`
}

// IPAddress returns the detail IP or "".
func (e Event) IPAddress() string {
	if e.Details == nil {
		return ""
	}
	return e.Details.IPAddress
}

// UserAgent returns the detail user agent or "".
func (e Event) UserAgent() string {
	if e.Details == nil {
		return ""
	}
	return e.Details.UserAgent
}

// AdditionalInfo returns the detail free text or "".
func (e Event) AdditionalInfo() string {
	if e.Details == nil {
		return ""
	}
	return e.Details.AdditionalInfo
}
