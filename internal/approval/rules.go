package approval

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"gitlab.com/yelinaung/expense-approvals/internal/authz"
	"gitlab.com/yelinaung/expense-approvals/internal/logger"
	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

// RuleService administers a company's approval rules. Configuration problems
// are reported here, at definition time, as ConfigurationError.
type RuleService struct {
	store Store
	log   zerolog.Logger
}

// NewRuleService creates a RuleService over store.
func NewRuleService(store Store) *RuleService {
	return &RuleService{store: store, log: logger.WithComponent("rules")}
}

// List returns all rules of the actor's company, active or not.
func (s *RuleService) List(ctx context.Context, actor *models.User) ([]models.ApprovalRule, error) {
	if err := authz.Require(actor, authz.ActionViewRules, authz.Company(companyOf(actor))); err != nil {
		return nil, err
	}
	var rules []models.ApprovalRule
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		rules, err = tx.ListRules(ctx, actor.CompanyID)
		return err
	})
	return rules, err
}

// Get returns one rule of the actor's company.
func (s *RuleService) Get(ctx context.Context, actor *models.User, id int64) (*models.ApprovalRule, error) {
	if err := authz.Require(actor, authz.ActionViewRules, authz.Company(companyOf(actor))); err != nil {
		return nil, err
	}
	var rule *models.ApprovalRule
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		rule, err = companyRule(ctx, tx, actor.CompanyID, id)
		return err
	})
	return rule, err
}

// Create validates and stores a new rule for the actor's company.
func (s *RuleService) Create(ctx context.Context, actor *models.User, rule models.ApprovalRule) (*models.ApprovalRule, error) {
	if err := authz.Require(actor, authz.ActionManageRules, authz.Company(companyOf(actor))); err != nil {
		return nil, err
	}
	rule.ID = 0
	rule.CompanyID = actor.CompanyID
	prepareRule(&rule)

	if err := ValidateRule(&rule); err != nil {
		return nil, err
	}
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := ValidateRuleApprovers(ctx, tx, &rule); err != nil {
			return err
		}
		return tx.CreateRule(ctx, &rule)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Int64("rule_id", rule.ID).Str("rule_type", string(rule.RuleType)).Msg("Approval rule created")
	return &rule, nil
}

// Update replaces a rule's definition, including its whole step set.
// Expenses already in flight keep the ledger rows and the completion policy
// they were submitted with.
func (s *RuleService) Update(ctx context.Context, actor *models.User, rule models.ApprovalRule) (*models.ApprovalRule, error) {
	if err := authz.Require(actor, authz.ActionManageRules, authz.Company(companyOf(actor))); err != nil {
		return nil, err
	}
	rule.CompanyID = actor.CompanyID
	prepareRule(&rule)

	if err := ValidateRule(&rule); err != nil {
		return nil, err
	}
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := companyRule(ctx, tx, actor.CompanyID, rule.ID); err != nil {
			return err
		}
		if err := ValidateRuleApprovers(ctx, tx, &rule); err != nil {
			return err
		}
		return tx.UpdateRule(ctx, &rule)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Int64("rule_id", rule.ID).Msg("Approval rule updated")
	return &rule, nil
}

// Delete removes a rule and its steps. Pending expenses that used it lose
// the rule reference but still close under their captured policy.
func (s *RuleService) Delete(ctx context.Context, actor *models.User, id int64) error {
	if err := authz.Require(actor, authz.ActionManageRules, authz.Company(companyOf(actor))); err != nil {
		return err
	}
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := companyRule(ctx, tx, actor.CompanyID, id); err != nil {
			return err
		}
		return tx.DeleteRule(ctx, id)
	})
	if err != nil {
		return err
	}
	s.log.Info().Int64("rule_id", id).Msg("Approval rule deleted")
	return nil
}

func companyRule(ctx context.Context, tx Tx, companyID, id int64) (*models.ApprovalRule, error) {
	rule, err := tx.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}
	// Rules of other tenants are indistinguishable from missing ones.
	if rule.CompanyID != companyID {
		return nil, NotFound("approval rule", id)
	}
	return rule, nil
}

func prepareRule(rule *models.ApprovalRule) {
	rule.Name = strings.TrimSpace(rule.Name)
	for i := range rule.Steps {
		rule.Steps[i].ID = 0
		rule.Steps[i].RuleID = rule.ID
	}
	sort.SliceStable(rule.Steps, func(i, j int) bool { return rule.Steps[i].StepOrder < rule.Steps[j].StepOrder })
}

func companyOf(u *models.User) int64 {
	if u == nil {
		return 0
	}
	return u.CompanyID
}
