// internal/core/domain/lead.go
package domain

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LeadStatus is the position of a lead in the sales pipeline
type LeadStatus string

// Lead status constants
const (
	LeadStatusNew       LeadStatus = "New"
	LeadStatusContacted LeadStatus = "Contacted"
	LeadStatusConverted LeadStatus = "Converted"
	LeadStatusLost      LeadStatus = "Lost"
)

// LeadStatuses lists statuses in pipeline order
var LeadStatuses = []LeadStatus{LeadStatusNew, LeadStatusContacted, LeadStatusConverted, LeadStatusLost}

// IsValid reports whether s is a known lead status
func (s LeadStatus) IsValid() bool {
	for _, v := range LeadStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// LeadPriority ranks how urgently a lead should be worked
type LeadPriority string

// Lead priority constants
const (
	LeadPriorityLow    LeadPriority = "Low"
	LeadPriorityMedium LeadPriority = "Medium"
	LeadPriorityHigh   LeadPriority = "High"
)

// LeadPriorities lists priorities from lowest to highest
var LeadPriorities = []LeadPriority{LeadPriorityLow, LeadPriorityMedium, LeadPriorityHigh}

// IsValid reports whether p is a known priority
func (p LeadPriority) IsValid() bool {
	for _, v := range LeadPriorities {
		if v == p {
			return true
		}
	}
	return false
}

// Lead represents a prospective sales contact
type Lead struct {
	ID             uuid.UUID       `json:"id"`
	Company        string          `json:"company"`
	ContactName    string          `json:"contact_name,omitempty"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone,omitempty"`
	Status         LeadStatus      `json:"status"`
	Priority       LeadPriority    `json:"priority"`
	AssignedTo     *uuid.UUID      `json:"assigned_to,omitempty"`
	AssigneeName   string          `json:"assignee_name,omitempty"`
	LastContact    *time.Time      `json:"last_contact,omitempty"`
	Source         string          `json:"source,omitempty"`
	EstimatedValue decimal.Decimal `json:"estimated_value"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	DeletedAt      *time.Time      `json:"deleted_at,omitempty"`
}

// Validate performs domain validation on the lead and applies defaults
func (l *Lead) Validate() error {
	l.Company = strings.TrimSpace(l.Company)
	l.Email = strings.TrimSpace(l.Email)
	if l.Company == "" {
		return ValidationError("company is required")
	}
	if l.Email == "" {
		return ValidationError("email is required")
	}
	if _, err := mail.ParseAddress(l.Email); err != nil {
		return ValidationError("email %q is invalid", l.Email)
	}
	if l.Status == "" {
		l.Status = LeadStatusNew
	}
	if !l.Status.IsValid() {
		return ValidationError("invalid status %q", l.Status)
	}
	if l.Priority == "" {
		l.Priority = LeadPriorityMedium
	}
	if !l.Priority.IsValid() {
		return ValidationError("invalid priority %q", l.Priority)
	}
	if l.EstimatedValue.IsNegative() {
		return ValidationError("estimated_value cannot be negative")
	}
	return nil
}

// PrepareForStorage prepares the lead for database storage
func (l *Lead) PrepareForStorage() {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	l.EstimatedValue = RoundMoney(l.EstimatedValue)

	now := time.Now().UTC()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now
}

// LeadFilter narrows lead list queries
type LeadFilter struct {
	Search     string
	Status     LeadStatus
	Priority   LeadPriority
	AssignedTo *uuid.UUID
}

// LeadStats summarizes the lead pipeline
type LeadStats struct {
	Total               int64                  `json:"total"`
	ByStatus            map[LeadStatus]int64   `json:"by_status"`
	ByPriority          map[LeadPriority]int64 `json:"by_priority"`
	TotalEstimatedValue decimal.Decimal        `json:"total_estimated_value"`
	ConvertedValue      decimal.Decimal        `json:"converted_value"`
	ConversionRate      decimal.Decimal        `json:"conversion_rate"`
	GeneratedAt         time.Time              `json:"generated_at"`
}

// NewLeadStats returns stats with every status and priority present
func NewLeadStats() *LeadStats {
	stats := &LeadStats{
		ByStatus:            make(map[LeadStatus]int64, len(LeadStatuses)),
		ByPriority:          make(map[LeadPriority]int64, len(LeadPriorities)),
		TotalEstimatedValue: decimal.Zero,
		ConvertedValue:      decimal.Zero,
		ConversionRate:      decimal.Zero,
	}
	for _, s := range LeadStatuses {
		stats.ByStatus[s] = 0
	}
	for _, p := range LeadPriorities {
		stats.ByPriority[p] = 0
	}
	return stats
}

// ComputeConversionRate sets ConversionRate as a percentage of closed leads
// (converted or lost) that converted.
func (s *LeadStats) ComputeConversionRate() {
	closed := s.ByStatus[LeadStatusConverted] + s.ByStatus[LeadStatusLost]
	if closed == 0 {
		s.ConversionRate = decimal.Zero
		return
	}
	s.ConversionRate = decimal.NewFromInt(s.ByStatus[LeadStatusConverted]).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(closed)).
		Round(2)
}

// Employee is a staff member leads can be assigned to
type Employee struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Department string    `json:"department,omitempty"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}
