package listquery

import (
	"strings"

	"github.com/ammerola/erp-admin/internal/core/domain"
)

// Action is a state transition
type Action interface {
	reduce(State) State
}

// SetPage moves to a page, clamped to [1, PageCount]. Before the first
// fetch the total is unknown and only the lower bound applies.
type SetPage struct{ Page int }

// SetLimit changes the page size and returns to page one
type SetLimit struct{ Limit int }

// SetFilter changes one filter and returns to page one, even when the value
// is unchanged
type SetFilter struct {
	Field Field
	Value string
}

// SetFilters replaces every filter and returns to page one
type SetFilters struct{ Filters Filters }

// ResetFilters clears every filter and returns to page one
type ResetFilters struct{}

// ToggleSort flips the order of the active column or sorts ascending by a
// new one.
type ToggleSort struct{ Column string }

// FetchStarted marks a fetch in flight
type FetchStarted struct{}

// FetchSucceeded records the total reported by a completed fetch
type FetchSucceeded struct{ Total int64 }

// FetchFailed records a fetch error
type FetchFailed struct{ Err error }

// Reduce applies a to s.
func Reduce(s State, a Action) State {
	if a == nil {
		return s
	}
	return a.reduce(s)
}

func (a SetPage) reduce(s State) State {
	page := a.Page
	if page < 1 {
		page = 1
	}
	if s.Status != StatusIdle {
		if last := s.PageCount(); page > last {
			page = last
		}
	}
	s.Page = page
	return s
}

func (a SetLimit) reduce(s State) State {
	limit := a.Limit
	if limit < 1 {
		limit = domain.DefaultLimit
	}
	if limit > domain.MaxLimit {
		limit = domain.MaxLimit
	}
	if limit == s.Limit {
		return s
	}
	s.Limit = limit
	s.Page = 1
	return s
}

func (a SetFilter) reduce(s State) State {
	value := strings.TrimSpace(a.Value)
	current, ok := s.Filters.get(a.Field)
	if !ok {
		return s
	}
	if current != value {
		s.Filters.set(a.Field, value)
	}
	s.Page = 1
	return s
}

func (a SetFilters) reduce(s State) State {
	f := a.Filters
	f.Search = strings.TrimSpace(f.Search)
	s.Filters = f
	s.Page = 1
	return s
}

func (ResetFilters) reduce(s State) State {
	s.Filters = Filters{}
	s.Page = 1
	return s
}

func (a ToggleSort) reduce(s State) State {
	if a.Column == "" {
		return s
	}
	if s.SortBy == a.Column {
		if s.SortOrder == domain.SortAsc {
			s.SortOrder = domain.SortDesc
		} else {
			s.SortOrder = domain.SortAsc
		}
		return s
	}
	s.SortBy = a.Column
	s.SortOrder = domain.SortAsc
	return s
}

func (FetchStarted) reduce(s State) State {
	s.Status = StatusLoading
	s.Err = nil
	return s
}

func (a FetchSucceeded) reduce(s State) State {
	s.Total = a.Total
	if s.Total < 0 {
		s.Total = 0
	}
	s.Status = StatusReady
	s.Err = nil
	return s
}

func (a FetchFailed) reduce(s State) State {
	s.Status = StatusError
	s.Err = a.Err
	return s
}
