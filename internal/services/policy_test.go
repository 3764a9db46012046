package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/KOUADIODANIEL/BIBLOTHEQUE/internal/models"
)

func Test_DefaultPolicies(t *testing.T) {
	p := DefaultPolicies()

	student := p.ForRole(models.MemberRoleStudent)
	assert.Equal(t, RolePolicy{LoanDays: 14, MaxLoans: 3, MaxRenewals: 1}, student)

	teacher := p.ForRole(models.MemberRoleTeacher)
	assert.Equal(t, RolePolicy{LoanDays: 28, MaxLoans: 5, MaxRenewals: 2}, teacher)

	assert.Equal(t, int64(50), p.DailyFineCents)
	assert.Equal(t, 48*time.Hour, p.NotifyWindow)
}

func Test_ForRole_UnknownRoleFallsBackToStudent(t *testing.T) {
	p := DefaultPolicies()
	assert.Equal(t, p.ForRole(models.MemberRoleStudent), p.ForRole(models.MemberRole("INTERN")))
}
