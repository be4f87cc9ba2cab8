package authz

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

func TestCan(t *testing.T) {
	t.Parallel()

	admin := &models.User{ID: 1, CompanyID: 10, Role: models.RoleAdmin, IsActive: true}
	manager := &models.User{ID: 2, CompanyID: 10, Role: models.RoleManager, IsActive: true}
	employee := &models.User{ID: 3, CompanyID: 10, Role: models.RoleEmployee, IsActive: true}
	inactiveAdmin := &models.User{ID: 4, CompanyID: 10, Role: models.RoleAdmin}
	outsider := &models.User{ID: 5, CompanyID: 20, Role: models.RoleAdmin, IsActive: true}

	tests := []struct {
		name   string
		user   *models.User
		action Action
		res    Resource
		want   bool
	}{
		{"employee submits own expense", employee, ActionSubmitExpense, Owned(10, 3), true},
		{"employee cannot submit for others", employee, ActionSubmitExpense, Owned(10, 2), false},
		{"employee views own expense", employee, ActionViewExpense, Owned(10, 3), true},
		{"employee cannot view others", employee, ActionViewExpense, Owned(10, 2), false},
		{"manager views any expense", manager, ActionViewExpense, Owned(10, 3), true},
		{"employee cannot list company", employee, ActionListExpenses, Company(10), false},
		{"manager lists company", manager, ActionListExpenses, Company(10), true},
		{"admin overrides", admin, ActionOverride, Owned(10, 3), true},
		{"manager cannot override", manager, ActionOverride, Owned(10, 3), false},
		{"admin manages rules", admin, ActionManageRules, Company(10), true},
		{"manager cannot manage rules", manager, ActionManageRules, Company(10), false},
		{"manager views rules", manager, ActionViewRules, Company(10), true},
		{"employee cannot view rules", employee, ActionViewRules, Company(10), false},
		{"pending list is self only", manager, ActionViewPending, Owned(10, 1), false},
		{"own pending list", manager, ActionViewPending, Owned(10, 2), true},
		{"employee may attempt decision", employee, ActionDecide, Owned(10, 2), true},
		{"inactive admin denied", inactiveAdmin, ActionOverride, Owned(10, 3), false},
		{"cross tenant denied", outsider, ActionViewExpense, Owned(10, 3), false},
		{"nil user denied", nil, ActionParseReceipt, Company(10), false},
		{"unknown action denied", admin, Action("expense:delete"), Company(10), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, Can(tt.user, tt.action, tt.res))
		})
	}
}

func TestRequire(t *testing.T) {
	t.Parallel()

	admin := &models.User{ID: 1, CompanyID: 10, Role: models.RoleAdmin, IsActive: true}
	employee := &models.User{ID: 3, CompanyID: 10, Role: models.RoleEmployee, IsActive: true}

	require.NoError(t, Require(admin, ActionManageRules, Company(10)))

	err := Require(employee, ActionManageRules, Company(10))
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrForbidden))
	require.Contains(t, err.Error(), "user 3 may not rules:manage")

	err = Require(nil, ActionViewRules, Company(10))
	require.ErrorIs(t, err, ErrForbidden)
}
