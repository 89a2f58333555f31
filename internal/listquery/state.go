// Package listquery manages the paging, filter and sort state behind a list
// screen and keeps it in step with the fetched data.
package listquery

import (
	"net/url"
	"strconv"

	"github.com/ammerola/erp-admin/internal/core/domain"
)

// Status is the fetch lifecycle of a list
type Status string

// Status constants
const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// Field names a filter
type Field string

// Filter fields
const (
	FieldSearch     Field = "search"
	FieldStatus     Field = "status"
	FieldPriority   Field = "priority"
	FieldAssignedTo Field = "assignedTo"
)

// Filters narrows a list. Empty values do not filter.
type Filters struct {
	Search     string
	Status     string
	Priority   string
	AssignedTo string
}

// get returns the value of f and whether f is a known field
func (f Filters) get(field Field) (string, bool) {
	switch field {
	case FieldSearch:
		return f.Search, true
	case FieldStatus:
		return f.Status, true
	case FieldPriority:
		return f.Priority, true
	case FieldAssignedTo:
		return f.AssignedTo, true
	}
	return "", false
}

func (f *Filters) set(field Field, value string) {
	switch field {
	case FieldSearch:
		f.Search = value
	case FieldStatus:
		f.Status = value
	case FieldPriority:
		f.Priority = value
	case FieldAssignedTo:
		f.AssignedTo = value
	}
}

// State is the complete list state. Status and Err describe the latest
// fetch; everything else is mirrored into the request query.
type State struct {
	Page      int
	Limit     int
	Total     int64
	Filters   Filters
	SortBy    string
	SortOrder domain.SortOrder
	Status    Status
	Err       error
}

// NewState returns page one with the default page size
func NewState() State {
	return State{
		Page:   domain.DefaultPage,
		Limit:  domain.DefaultLimit,
		Status: StatusIdle,
	}
}

// PageCount is ceil(total/limit), never less than one. A non-positive limit
// counts as the default page size.
func PageCount(total int64, limit int) int {
	return domain.PageCount(total, limit)
}

// PageCount returns the number of pages for the current total
func (s State) PageCount() int {
	return PageCount(s.Total, s.Limit)
}

// Query renders the state as list endpoint query parameters
func (s State) Query() url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(s.Page))
	q.Set("limit", strconv.Itoa(s.Limit))

	for _, field := range []Field{FieldSearch, FieldStatus, FieldPriority, FieldAssignedTo} {
		if v, _ := s.Filters.get(field); v != "" {
			q.Set(string(field), v)
		}
	}
	if s.SortBy != "" {
		q.Set("sortBy", s.SortBy)
		if s.SortOrder != "" {
			q.Set("sortOrder", string(s.SortOrder))
		}
	}
	return q
}

// queryKey identifies the part of the state that determines what is fetched
func (s State) queryKey() string {
	return s.Query().Encode()
}
