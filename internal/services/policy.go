package services

import (
	"time"

	"github.com/KOUADIODANIEL/BIBLOTHEQUE/internal/models"
)

// RolePolicy holds the circulation limits for one member role.
type RolePolicy struct {
	// LoanDays is the loan duration, also the extension granted per renewal.
	LoanDays int
	// MaxLoans caps concurrent active loans.
	MaxLoans int
	// MaxRenewals caps renewals per loan.
	MaxRenewals int
}

// Policies is the static business configuration injected into the services at
// construction. It is treated as immutable after startup.
type Policies struct {
	Roles map[models.MemberRole]RolePolicy

	// DailyFineCents is charged per calendar day a return is overdue.
	DailyFineCents int64

	// NotifyWindow is how long a notified reservation stays collectible.
	NotifyWindow time.Duration
}

// DefaultPolicies returns the standard school-library configuration:
// students borrow for 14 days (3 loans, 1 renewal), teachers for 28 days
// (5 loans, 2 renewals), fines run 50 cents per day, pickups expire in 48h.
func DefaultPolicies() Policies {
	return Policies{
		Roles: map[models.MemberRole]RolePolicy{
			models.MemberRoleStudent: {LoanDays: 14, MaxLoans: 3, MaxRenewals: 1},
			models.MemberRoleTeacher: {LoanDays: 28, MaxLoans: 5, MaxRenewals: 2},
		},
		DailyFineCents: 50,
		NotifyWindow:   48 * time.Hour,
	}
}

// ForRole resolves the policy for a role, falling back to the student policy
// for unknown roles.
func (p Policies) ForRole(role models.MemberRole) RolePolicy {
	if rp, ok := p.Roles[role]; ok {
		return rp
	}
	return p.Roles[models.MemberRoleStudent]
}
