// Package authz holds the single capability check used by every surface.
package authz

import (
	"errors"
	"fmt"

	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

// ErrForbidden is returned by Require when the capability check fails.
var ErrForbidden = errors.New("forbidden")

// Action is something a user may attempt.
type Action string

// Actions checked across the HTTP API and the bot.
const (
	ActionSubmitExpense Action = "expense:submit"
	ActionViewExpense   Action = "expense:view"
	ActionListExpenses  Action = "expense:list"
	ActionDecide        Action = "expense:decide"
	ActionOverride      Action = "expense:override"
	ActionViewPending   Action = "approvals:view_pending"
	ActionViewRules     Action = "rules:view"
	ActionManageRules   Action = "rules:manage"
	ActionParseReceipt  Action = "receipt:parse"
	ActionViewReports   Action = "reports:view"
)

// Resource describes what an action targets. OwnerID is the user that owns the
// resource, zero when the resource is company-wide.
type Resource struct {
	CompanyID int64
	OwnerID   int64
}

// Company returns a company-wide resource.
func Company(companyID int64) Resource {
	return Resource{CompanyID: companyID}
}

// Owned returns a resource owned by a single user.
func Owned(companyID, ownerID int64) Resource {
	return Resource{CompanyID: companyID, OwnerID: ownerID}
}

// Can reports whether user may perform action on res.
func Can(user *models.User, action Action, res Resource) bool {
	if user == nil || !user.IsActive || user.CompanyID != res.CompanyID {
		return false
	}

	isSelf := res.OwnerID != 0 && res.OwnerID == user.ID
	switch action {
	case ActionSubmitExpense:
		return isSelf
	case ActionViewExpense, ActionListExpenses:
		return isSelf || user.IsApprover()
	case ActionDecide, ActionParseReceipt:
		// Any active member of the tenant may attempt a decision; the ledger
		// then settles whether a pending row is assigned to them.
		return true
	case ActionViewPending:
		return isSelf
	case ActionViewRules, ActionViewReports:
		return user.IsApprover()
	case ActionOverride, ActionManageRules:
		return user.Role == models.RoleAdmin
	}
	return false
}

// Require is Can returning an error wrapping ErrForbidden.
func Require(user *models.User, action Action, res Resource) error {
	if Can(user, action, res) {
		return nil
	}
	if user == nil {
		return fmt.Errorf("%w: %s requires an authenticated user", ErrForbidden, action)
	}
	return fmt.Errorf("%w: user %d may not %s", ErrForbidden, user.ID, action)
}
