package postgres

import (
	"fmt"
	"strings"

	"github.com/telhawk-systems/eventlogs/internal/models"
)

// columns maps record fields to event table columns. Only these names
// ever reach generated SQL.
var columns = map[models.Field]string{
	models.FieldID:            "id",
	models.FieldTimestamp:     "timestamp",
	models.FieldUser:          "user_name",
	models.FieldCategory:      "category",
	models.FieldAction:        "action",
	models.FieldDocument:      "document_name",
	models.FieldProject:       "project",
	models.FieldEnvironment:   "environment",
	models.FieldTenant:        "tenant",
	models.FieldCorrelationID: "correlation_id",
	models.FieldTraceID:       "trace_id",
}

// predicate is a parameterized WHERE clause.
type predicate struct {
	clause string
	args   []any
}

// buildPredicate ANDs one equality term per non-blank filter and an
// inclusive timestamp range. With no terms it matches every row.
func buildPredicate(q models.Query) predicate {
	var terms []string
	var args []any

	for _, f := range q.Filters() {
		args = append(args, f.Value)
		terms = append(terms, fmt.Sprintf("%s = $%d", columns[f.Field], len(args)))
	}
	if q.StartDate != nil {
		args = append(args, q.StartDate.UTC())
		terms = append(terms, fmt.Sprintf("timestamp >= $%d", len(args)))
	}
	if q.EndDate != nil {
		args = append(args, q.EndDate.UTC())
		terms = append(terms, fmt.Sprintf("timestamp <= $%d", len(args)))
	}

	if len(terms) == 0 {
		return predicate{}
	}
	return predicate{clause: " WHERE " + strings.Join(terms, " AND "), args: args}
}

// orderBy sorts on the requested column with id as a stable tie-break.
func orderBy(q models.Query) string {
	dir := "DESC"
	if q.Ascending() {
		dir = "ASC"
	}
	col := columns[q.SortField()]
	if col == "id" {
		return fmt.Sprintf(" ORDER BY id %s", dir)
	}
	return fmt.Sprintf(" ORDER BY %s %s, id %s", col, dir, dir)
}
