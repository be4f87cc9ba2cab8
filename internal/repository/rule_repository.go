package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"gitlab.com/yelinaung/expense-approvals/internal/approval"
	"gitlab.com/yelinaung/expense-approvals/internal/database"
	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

// RuleRepository handles approval rule and step database operations.
type RuleRepository struct {
	db database.Querier
}

// NewRuleRepository creates a new RuleRepository.
func NewRuleRepository(db database.Querier) *RuleRepository {
	return &RuleRepository{db: db}
}

const ruleColumns = `id, company_id, name, rule_type, min_amount, max_amount, percentage_required,
	specific_approver_id, sequence_order, is_active, created_at, updated_at`

func scanRule(row pgx.Row) (*models.ApprovalRule, error) {
	var r models.ApprovalRule
	err := row.Scan(&r.ID, &r.CompanyID, &r.Name, &r.RuleType, &r.MinAmount, &r.MaxAmount,
		&r.PercentageRequired, &r.SpecificApproverID, &r.SequenceOrder, &r.IsActive, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListActiveRules returns the company's active rules with their steps.
func (r *RuleRepository) ListActiveRules(ctx context.Context, companyID int64) ([]models.ApprovalRule, error) {
	return r.listRules(ctx, `
		SELECT `+ruleColumns+`
		FROM approval_rules
		WHERE company_id = $1 AND is_active
		ORDER BY sequence_order, id
	`, companyID)
}

// ListRules returns all of the company's rules with their steps.
func (r *RuleRepository) ListRules(ctx context.Context, companyID int64) ([]models.ApprovalRule, error) {
	return r.listRules(ctx, `
		SELECT `+ruleColumns+`
		FROM approval_rules
		WHERE company_id = $1
		ORDER BY sequence_order, id
	`, companyID)
}

func (r *RuleRepository) listRules(ctx context.Context, query string, args ...any) ([]models.ApprovalRule, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query approval rules: %w", err)
	}
	defer rows.Close()

	var rules []models.ApprovalRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating approval rules: %w", err)
	}
	rows.Close()

	if len(rules) == 0 {
		return rules, nil
	}
	ids := make([]int64, len(rules))
	for i := range rules {
		ids[i] = rules[i].ID
	}
	steps, err := r.stepsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range rules {
		rules[i].Steps = steps[rules[i].ID]
	}
	return rules, nil
}

// GetRule retrieves a rule with its steps.
func (r *RuleRepository) GetRule(ctx context.Context, id int64) (*models.ApprovalRule, error) {
	rule, err := scanRule(r.db.QueryRow(ctx, `SELECT `+ruleColumns+` FROM approval_rules WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, approval.NotFound("approval rule", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get approval rule: %w", err)
	}
	steps, err := r.stepsFor(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	rule.Steps = steps[id]
	return rule, nil
}

func (r *RuleRepository) stepsFor(ctx context.Context, ruleIDs []int64) (map[int64][]models.ApprovalRuleStep, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, rule_id, step_order, approver_role, approver_id, is_required
		FROM approval_rule_steps
		WHERE rule_id = ANY($1)
		ORDER BY rule_id, step_order, id
	`, ruleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query rule steps: %w", err)
	}
	defer rows.Close()

	steps := make(map[int64][]models.ApprovalRuleStep)
	for rows.Next() {
		var s models.ApprovalRuleStep
		if err := rows.Scan(&s.ID, &s.RuleID, &s.StepOrder, &s.ApproverRole, &s.ApproverID, &s.IsRequired); err != nil {
			return nil, fmt.Errorf("failed to scan rule step: %w", err)
		}
		steps[s.RuleID] = append(steps[s.RuleID], s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rule steps: %w", err)
	}
	return steps, nil
}

// CreateRule inserts a rule and its steps.
func (r *RuleRepository) CreateRule(ctx context.Context, rule *models.ApprovalRule) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO approval_rules (company_id, name, rule_type, min_amount, max_amount, percentage_required,
			specific_approver_id, sequence_order, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`, rule.CompanyID, rule.Name, rule.RuleType, rule.MinAmount, rule.MaxAmount, rule.PercentageRequired,
		rule.SpecificApproverID, rule.SequenceOrder, rule.IsActive,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create approval rule: %w", err)
	}
	return r.insertSteps(ctx, rule)
}

// UpdateRule rewrites a rule and replaces its whole step set.
func (r *RuleRepository) UpdateRule(ctx context.Context, rule *models.ApprovalRule) error {
	err := r.db.QueryRow(ctx, `
		UPDATE approval_rules SET
			name = $2,
			rule_type = $3,
			min_amount = $4,
			max_amount = $5,
			percentage_required = $6,
			specific_approver_id = $7,
			sequence_order = $8,
			is_active = $9,
			updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`, rule.ID, rule.Name, rule.RuleType, rule.MinAmount, rule.MaxAmount, rule.PercentageRequired,
		rule.SpecificApproverID, rule.SequenceOrder, rule.IsActive,
	).Scan(&rule.CreatedAt, &rule.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return approval.NotFound("approval rule", rule.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update approval rule: %w", err)
	}

	if _, err := r.db.Exec(ctx, `DELETE FROM approval_rule_steps WHERE rule_id = $1`, rule.ID); err != nil {
		return fmt.Errorf("failed to clear rule steps: %w", err)
	}
	return r.insertSteps(ctx, rule)
}

func (r *RuleRepository) insertSteps(ctx context.Context, rule *models.ApprovalRule) error {
	for i := range rule.Steps {
		step := &rule.Steps[i]
		step.RuleID = rule.ID
		err := r.db.QueryRow(ctx, `
			INSERT INTO approval_rule_steps (rule_id, step_order, approver_role, approver_id, is_required)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, rule.ID, step.StepOrder, step.ApproverRole, step.ApproverID, step.IsRequired).Scan(&step.ID)
		if err != nil {
			return fmt.Errorf("failed to create rule step %d: %w", step.StepOrder, err)
		}
	}
	return nil
}

// DeleteRule removes a rule. Steps cascade; expenses keep a null rule reference.
func (r *RuleRepository) DeleteRule(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM approval_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete approval rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return approval.NotFound("approval rule", id)
	}
	return nil
}
