// Package repository implements PostgreSQL persistence for the approval engine.
package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"gitlab.com/yelinaung/expense-approvals/internal/approval"
	"gitlab.com/yelinaung/expense-approvals/internal/database"
	"gitlab.com/yelinaung/expense-approvals/internal/notify"
)

// Store runs approval units of work in PostgreSQL transactions.
type Store struct {
	db      database.TxBeginner
	timeout time.Duration
}

var (
	_ approval.Store = (*Store)(nil)
	_ notify.Source  = (*Store)(nil)
)

// NewStore creates a Store. timeout bounds units of work whose context has no deadline.
func NewStore(db database.TxBeginner, timeout time.Duration) *Store {
	return &Store{db: db, timeout: timeout}
}

// RunInTx runs fn in one transaction; fn's error rolls everything back.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx approval.Tx) error) error {
	return database.RunInTx(ctx, s.db, s.timeout, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, NewTx(tx))
	})
}

// Batch runs one notification dispatch batch in a transaction. Claimed rows
// stay locked until fn returns.
func (s *Store) Batch(ctx context.Context, fn func(ctx context.Context, box notify.Outbox) error) error {
	return database.RunInTx(ctx, s.db, s.timeout, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, NewNotificationRepository(tx))
	})
}

// Tx bundles every repository over one database handle.
type Tx struct {
	*RuleRepository
	*ExpenseRepository
	*ApprovalRepository
	*UserRepository
	*NotificationRepository
	*AuditRepository
}

var _ approval.Tx = (*Tx)(nil)

// NewTx builds the repositories over db, usually a pgx.Tx.
func NewTx(db database.Querier) *Tx {
	return &Tx{
		RuleRepository:         NewRuleRepository(db),
		ExpenseRepository:      NewExpenseRepository(db),
		ApprovalRepository:     NewApprovalRepository(db),
		UserRepository:         NewUserRepository(db),
		NotificationRepository: NewNotificationRepository(db),
		AuditRepository:        NewAuditRepository(db),
	}
}
