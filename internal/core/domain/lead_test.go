package domain_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/erp-admin/internal/core/domain"
)

func TestLead_Validate(t *testing.T) {
	tests := []struct {
		name     string
		lead     domain.Lead
		wantErr  bool
		errorMsg string
	}{
		{
			name: "valid_lead_gets_defaults",
			lead: domain.Lead{Company: "Globex", Email: "sales@globex.test"},
		},
		{
			name:     "missing_company",
			lead:     domain.Lead{Email: "sales@globex.test"},
			wantErr:  true,
			errorMsg: "company is required",
		},
		{
			name:     "missing_email",
			lead:     domain.Lead{Company: "Globex"},
			wantErr:  true,
			errorMsg: "email is required",
		},
		{
			name:     "invalid_email",
			lead:     domain.Lead{Company: "Globex", Email: "not-an-email"},
			wantErr:  true,
			errorMsg: "is invalid",
		},
		{
			name:     "unknown_status",
			lead:     domain.Lead{Company: "Globex", Email: "a@b.test", Status: "Won"},
			wantErr:  true,
			errorMsg: "invalid status",
		},
		{
			name:     "unknown_priority",
			lead:     domain.Lead{Company: "Globex", Email: "a@b.test", Priority: "Urgent"},
			wantErr:  true,
			errorMsg: "invalid priority",
		},
		{
			name:     "negative_estimated_value",
			lead:     domain.Lead{Company: "Globex", Email: "a@b.test", EstimatedValue: d("-10")},
			wantErr:  true,
			errorMsg: "estimated_value cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lead := tt.lead
			err := lead.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, domain.ErrValidation))
				assert.Contains(t, err.Error(), tt.errorMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.LeadStatusNew, lead.Status)
			assert.Equal(t, domain.LeadPriorityMedium, lead.Priority)
		})
	}
}

func TestLeadStats_ComputeConversionRate(t *testing.T) {
	stats := domain.NewLeadStats()
	stats.ComputeConversionRate()
	assert.True(t, stats.ConversionRate.IsZero())
	assert.Len(t, stats.ByStatus, len(domain.LeadStatuses))

	stats.ByStatus[domain.LeadStatusConverted] = 1
	stats.ByStatus[domain.LeadStatusLost] = 2
	stats.ByStatus[domain.LeadStatusNew] = 10
	stats.ComputeConversionRate()
	assert.Equal(t, "33.33", stats.ConversionRate.String())
}
