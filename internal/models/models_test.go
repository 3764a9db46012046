package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_Loan_EffectiveStatus(t *testing.T) {
	due := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		status LoanStatus
		now    time.Time
		want   LoanStatus
	}{
		{"active_before_due_stays_active", LoanStatusActive, due.Add(-time.Hour), LoanStatusActive},
		{"active_at_due_stays_active", LoanStatusActive, due, LoanStatusActive},
		{"active_past_due_reads_overdue", LoanStatusActive, due.Add(time.Minute), LoanStatusOverdue},
		{"closed_past_due_stays_closed", LoanStatusClosed, due.AddDate(0, 0, 7), LoanStatusClosed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			loan := Loan{DueAt: due, Status: tc.status}
			assert.Equal(t, tc.want, loan.EffectiveStatus(tc.now))
		})
	}
}
