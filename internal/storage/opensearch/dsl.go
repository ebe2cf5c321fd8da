package opensearch

import (
	"time"

	"github.com/telhawk-systems/eventlogs/internal/models"
)

// buildQuery translates the filters into a bool/filter query: one term
// clause per non-blank filter plus a timestamp range. With nothing set it
// is match_all.
func buildQuery(q models.Query) map[string]interface{} {
	var filters []interface{}

	for _, f := range q.Filters() {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{string(f.Field): f.Value},
		})
	}

	if q.HasTimeRange() {
		bounds := map[string]interface{}{}
		if q.StartDate != nil {
			bounds["gte"] = q.StartDate.UTC().Format(time.RFC3339Nano)
		}
		if q.EndDate != nil {
			bounds["lte"] = q.EndDate.UTC().Format(time.RFC3339Nano)
		}
		filters = append(filters, map[string]interface{}{
			"range": map[string]interface{}{"timestamp": bounds},
		})
	}

	if len(filters) == 0 {
		return map[string]interface{}{"match_all": map[string]interface{}{}}
	}
	return map[string]interface{}{
		"bool": map[string]interface{}{"filter": filters},
	}
}

// sortField maps the requested field to an indexed one. Document ids are
// not a sortable field here, so id falls back to timestamp.
func sortField(q models.Query) string {
	f := q.SortField()
	if f == models.FieldID {
		return string(models.FieldTimestamp)
	}
	return string(f)
}

func buildSearchBody(q models.Query) map[string]interface{} {
	order := "desc"
	if q.Ascending() {
		order = "asc"
	}
	return map[string]interface{}{
		"query": buildQuery(q),
		"from":  q.Offset(),
		"size":  q.Limit(),
		"sort": []interface{}{
			map[string]interface{}{sortField(q): map[string]interface{}{"order": order}},
		},
	}
}

func buildDeleteBody(cutoff time.Time) map[string]interface{} {
	return map[string]interface{}{
		"query": map[string]interface{}{
			"range": map[string]interface{}{
				"timestamp": map[string]interface{}{"lt": cutoff.UTC().Format(time.RFC3339Nano)},
			},
		},
	}
}
