// Package export serializes events as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/telhawk-systems/eventlogs/internal/models"
)

// Header is the fixed column order. Details.Changes has no column.
var Header = []string{
	"ID", "Timestamp", "User", "Category", "Action", "Document",
	"Project", "Environment", "Tenant", "Correlation ID", "Trace ID",
	"IP Address", "User Agent", "Additional Info",
}

// Row flattens ev into Header's column order.
func Row(ev models.Event) []string {
	ts := ""
	if !ev.Timestamp.IsZero() {
		ts = ev.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	return []string{
		ev.ID,
		ts,
		ev.User,
		ev.Category,
		ev.Action,
		ev.Document,
		ev.Project,
		ev.Environment,
		ev.Tenant,
		ev.CorrelationID,
		ev.TraceID,
		ev.IPAddress(),
		ev.UserAgent(),
		ev.AdditionalInfo(),
	}
}

// WriteCSV writes the header and one row per event, then flushes.
func WriteCSV(w io.Writer, events []models.Event) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, ev := range events {
		if err := cw.Write(Row(ev)); err != nil {
			return fmt.Errorf("write csv row %s: %w", ev.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
