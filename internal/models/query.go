package models

import (
	"math"
	"strings"
	"time"
)

// Query defaults.
const (
	DefaultSortBy    = "timestamp"
	DefaultSortOrder = "desc"
	DefaultPageSize  = 20
)

// Field names a filterable or sortable attribute of an event, using the
// JSON name of the stored record.
type Field string

const (
	FieldID            Field = "id"
	FieldTimestamp     Field = "timestamp"
	FieldUser          Field = "user"
	FieldCategory      Field = "category"
	FieldAction        Field = "action"
	FieldDocument      Field = "document"
	FieldProject       Field = "project"
	FieldEnvironment   Field = "environment"
	FieldTenant        Field = "tenant"
	FieldCorrelationID Field = "correlationId"
	FieldTraceID       Field = "traceId"
)

var sortableFields = map[Field]bool{
	FieldID: true, FieldTimestamp: true, FieldUser: true, FieldCategory: true,
	FieldAction: true, FieldDocument: true, FieldProject: true, FieldEnvironment: true,
	FieldTenant: true, FieldCorrelationID: true, FieldTraceID: true,
}

// Query is the backend-independent filter, sort and page request.
// Blank filter values place no constraint on their field.
type Query struct {
	User          string     `json:"user,omitempty"`
	Category      string     `json:"category,omitempty"`
	Action        string     `json:"action,omitempty"`
	Document      string     `json:"document,omitempty"`
	Project       string     `json:"project,omitempty"`
	Environment   string     `json:"environment,omitempty"`
	Tenant        string     `json:"tenant,omitempty"`
	CorrelationID string     `json:"correlationId,omitempty"`
	TraceID       string     `json:"traceId,omitempty"`
	StartDate     *time.Time `json:"startDate,omitempty"`
	EndDate       *time.Time `json:"endDate,omitempty"`
	SortBy        string     `json:"sortBy,omitempty"`
	SortOrder     string     `json:"sortOrder,omitempty"`
	Page          int        `json:"page"`
	Size          int        `json:"size"`
}

// NewQuery returns a Query carrying the default sort and page size.
func NewQuery() Query {
	return Query{
		SortBy:    DefaultSortBy,
		SortOrder: DefaultSortOrder,
		Size:      DefaultPageSize,
	}
}

// Filter is one equality constraint.
type Filter struct {
	Field Field
	Value string
}

// Filters returns the non-blank equality constraints in a fixed order.
func (q Query) Filters() []Filter {
	candidates := []Filter{
		{FieldUser, q.User},
		{FieldCategory, q.Category},
		{FieldAction, q.Action},
		{FieldDocument, q.Document},
		{FieldProject, q.Project},
		{FieldEnvironment, q.Environment},
		{FieldTenant, q.Tenant},
		{FieldCorrelationID, q.CorrelationID},
		{FieldTraceID, q.TraceID},
	}
	filters := make([]Filter, 0, len(candidates))
	for _, f := range candidates {
		if strings.TrimSpace(f.Value) != "" {
			filters = append(filters, f)
		}
	}
	return filters
}

// HasTimeRange reports whether either bound is set.
func (q Query) HasTimeRange() bool {
	return q.StartDate != nil || q.EndDate != nil
}

// Ascending is true only for a sortOrder of "asc" in any letter case.
func (q Query) Ascending() bool {
	return strings.EqualFold(q.SortOrder, "asc")
}

// SortField returns the field to order by, falling back to timestamp for
// blank or unknown names.
func (q Query) SortField() Field {
	f := Field(q.SortBy)
	if sortableFields[f] {
		return f
	}
	return FieldTimestamp
}

// Limit is the page size, defaulted when unset.
func (q Query) Limit() int {
	if q.Size <= 0 {
		return DefaultPageSize
	}
	return q.Size
}

// Offset is the zero-based index of the first record on the page.
func (q Query) Offset() int {
	if q.Page <= 0 {
		return 0
	}
	return q.Page * q.Limit()
}

// Validate checks the paging bounds accepted from callers.
func (q Query) Validate() error {
	fields := map[string]string{}
	if q.Page < 0 {
		fields["page"] = "Page must be >= 0"
	}
	if q.Size < 1 {
		fields["size"] = "Size must be >= 1"
	}
	if q.Page > 0 && q.Size > 0 && q.Page > math.MaxInt32/q.Size {
		fields["page"] = "Page * size must not exceed 2147483647"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Page is one page of search results plus the total match count.
type Page struct {
	Items []Event
	Total int64
}

// QueryResult is the query API response body.
type QueryResult struct {
	Items      []Event `json:"items"`
	Total      int64   `json:"total"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
	TotalPages int     `json:"totalPages"`
}

// NewQueryResult builds the response for page p of query q.
func NewQueryResult(p Page, q Query) QueryResult {
	items := p.Items
	if items == nil {
		items = []Event{}
	}
	return QueryResult{
		Items:      items,
		Total:      p.Total,
		Page:       q.Page,
		PageSize:   q.Size,
		TotalPages: TotalPages(p.Total, q.Size),
	}
}

// TotalPages is ceil(total/pageSize), or 0 when pageSize is not positive.
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
