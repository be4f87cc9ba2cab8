// Package models defines the domain entities for the expense approval service.
package models

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is the base currency used when a company has none configured.
const DefaultCurrency = "SGD"

// MaxRuleNameLength is the maximum allowed length for approval rule names.
const MaxRuleNameLength = 100

// SupportedCurrencies lists all supported currency codes.
var SupportedCurrencies = map[string]string{
	"SGD": "S$",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CNY": "¥",
	"MYR": "RM",
	"THB": "฿",
	"IDR": "Rp",
	"PHP": "₱",
	"VND": "₫",
	"KRW": "₩",
	"INR": "₹",
	"AUD": "A$",
	"NZD": "NZ$",
	"HKD": "HK$",
	"TWD": "NT$",
}

// Role is a user's role within their company.
type Role string

// User roles.
const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleEmployee:
		return true
	}
	return false
}

// Company is the tenant root. Every other entity is scoped to one company.
type Company struct {
	ID           int64
	Name         string
	BaseCurrency string
	CreatedAt    time.Time
}

// User is a member of a company.
type User struct {
	ID         int64
	CompanyID  int64
	Name       string
	Email      string
	Role       Role
	ManagerID  *int64
	IsActive   bool
	TelegramID *int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsApprover reports whether the user can appear in percentage approver pools.
func (u *User) IsApprover() bool {
	return u.IsActive && (u.Role == RoleManager || u.Role == RoleAdmin)
}

// RuleType selects the workflow construction and completion strategy of a rule.
type RuleType string

// Rule types.
const (
	RuleTypeSequential       RuleType = "sequential"
	RuleTypePercentage       RuleType = "percentage"
	RuleTypeSpecificApprover RuleType = "specific_approver"
	RuleTypeHybrid           RuleType = "hybrid"
)

// Valid reports whether t is a known rule type.
func (t RuleType) Valid() bool {
	switch t {
	case RuleTypeSequential, RuleTypePercentage, RuleTypeSpecificApprover, RuleTypeHybrid:
		return true
	}
	return false
}

// ApproverRole identifies how a sequential step resolves its approver.
type ApproverRole string

// Approver roles for sequential steps.
const (
	ApproverRoleManager      ApproverRole = "manager"
	ApproverRoleAdmin        ApproverRole = "admin"
	ApproverRoleSpecificUser ApproverRole = "specific_user"
)

// Valid reports whether r is a known approver role.
func (r ApproverRole) Valid() bool {
	switch r {
	case ApproverRoleManager, ApproverRoleAdmin, ApproverRoleSpecificUser:
		return true
	}
	return false
}

// ApprovalRule is a company-configured approval policy for an amount range.
// MaxAmount nil means unbounded above.
type ApprovalRule struct {
	ID                 int64
	CompanyID          int64
	Name               string
	RuleType           RuleType
	MinAmount          decimal.Decimal
	MaxAmount          *decimal.Decimal
	PercentageRequired *int
	SpecificApproverID *int64
	SequenceOrder      int
	IsActive           bool
	Steps              []ApprovalRuleStep
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Matches reports whether amount falls inside the rule's inclusive range.
func (r *ApprovalRule) Matches(amount decimal.Decimal) bool {
	if amount.LessThan(r.MinAmount) {
		return false
	}
	if r.MaxAmount != nil && amount.GreaterThan(*r.MaxAmount) {
		return false
	}
	return true
}

// ApprovalRuleStep is one ordered step of a sequential rule.
type ApprovalRuleStep struct {
	ID           int64
	RuleID       int64
	StepOrder    int
	ApproverRole ApproverRole
	ApproverID   *int64
	IsRequired   bool
}

// ExpenseStatus is the lifecycle status of an expense.
type ExpenseStatus string

// Expense statuses. Processing is reserved and never set by the engine.
const (
	ExpenseStatusPending    ExpenseStatus = "pending"
	ExpenseStatusProcessing ExpenseStatus = "processing"
	ExpenseStatusApproved   ExpenseStatus = "approved"
	ExpenseStatusRejected   ExpenseStatus = "rejected"
)

// ExpenseStatuses lists every status in lifecycle order.
var ExpenseStatuses = []ExpenseStatus{
	ExpenseStatusPending,
	ExpenseStatusProcessing,
	ExpenseStatusApproved,
	ExpenseStatusRejected,
}

// Valid reports whether s is a known status.
func (s ExpenseStatus) Valid() bool {
	return slices.Contains(ExpenseStatuses, s)
}

// IsTerminal reports whether no further transitions are permitted.
func (s ExpenseStatus) IsTerminal() bool {
	return s == ExpenseStatusApproved || s == ExpenseStatusRejected
}

// Expense is a single submitted expense.
type Expense struct {
	ID              int64
	CompanyID       int64
	EmployeeID      int64
	Amount          decimal.Decimal
	Currency        string
	ConvertedAmount decimal.Decimal
	Description     string
	Category        string
	ExpenseDate     time.Time
	ReceiptRef      string
	Status          ExpenseStatus
	ApprovalRuleID  *int64

	// Completion policy copied from the rule at submission. Later edits to
	// or deletion of the rule do not change how this expense closes.
	RuleType               RuleType
	RulePercentage         *int
	RuleSpecificApproverID *int64
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// CapturePolicy links the expense to rule and records its completion policy.
func (e *Expense) CapturePolicy(rule *ApprovalRule) {
	e.ApprovalRuleID = &rule.ID
	e.RuleType = rule.RuleType
	e.RulePercentage = nil
	e.RuleSpecificApproverID = nil
	if rule.PercentageRequired != nil {
		p := *rule.PercentageRequired
		e.RulePercentage = &p
	}
	if rule.SpecificApproverID != nil {
		id := *rule.SpecificApproverID
		e.RuleSpecificApproverID = &id
	}
}

// Policy returns the completion policy captured at submission, or nil when
// none was recorded.
func (e *Expense) Policy() *ApprovalRule {
	if e.RuleType == "" {
		return nil
	}
	return &ApprovalRule{
		RuleType:           e.RuleType,
		PercentageRequired: e.RulePercentage,
		SpecificApproverID: e.RuleSpecificApproverID,
	}
}

// ApprovalStatus is the status of a single ledger entry.
type ApprovalStatus string

// Ledger entry statuses.
const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

// Valid reports whether s is a known ledger status.
func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalStatusPending, ApprovalStatusApproved, ApprovalStatusRejected:
		return true
	}
	return false
}

// ExpenseStatus maps a decision onto the terminal expense status it forces.
func (s ApprovalStatus) ExpenseStatus() ExpenseStatus {
	if s == ApprovalStatusRejected {
		return ExpenseStatusRejected
	}
	return ExpenseStatusApproved
}

// ApprovalEntry is one approver's assignment for one expense (expense_approvals).
type ApprovalEntry struct {
	ID         int64
	ExpenseID  int64
	ApproverID int64
	StepOrder  int
	IsRequired bool
	Status     ApprovalStatus
	Comments   string
	DecidedAt  *time.Time
	CreatedAt  time.Time
}

// Notification types.
const (
	NotificationApprovalRequested   = "approval_requested"
	NotificationExpenseApproved     = "expense_approved"
	NotificationExpenseRejected     = "expense_rejected"
	NotificationExpenseAutoApproved = "expense_auto_approved"
	NotificationExpenseOverridden   = "expense_overridden"
)

// Notification is an outbox row awaiting delivery to a user.
type Notification struct {
	ID          int64
	UserID      int64
	ExpenseID   int64
	Type        string
	Title       string
	Message     string
	Attempts    int
	LastError   string
	DeliveredAt *time.Time
	CreatedAt   time.Time
}

// AuditActionAdminOverride is the audit action recorded for administrative overrides.
const AuditActionAdminOverride = "admin_override"

// AuditLog is an append-only record of an administrative action.
type AuditLog struct {
	ID        int64
	EventID   string
	UserID    int64
	ExpenseID int64
	Action    string
	Payload   map[string]any
	CreatedAt time.Time
}
