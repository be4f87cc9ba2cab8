package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"gitlab.com/yelinaung/expense-approvals/internal/database"
	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

// AuditRepository handles the append-only audit log.
type AuditRepository struct {
	db database.Querier
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db database.Querier) *AuditRepository {
	return &AuditRepository{db: db}
}

// InsertAudit appends an audit row. A missing event id is generated.
func (r *AuditRepository) InsertAudit(ctx context.Context, entry *models.AuditLog) error {
	if entry.EventID == "" {
		entry.EventID = uuid.NewString()
	}
	eventID, err := uuid.Parse(entry.EventID)
	if err != nil {
		return fmt.Errorf("invalid audit event id %q: %w", entry.EventID, err)
	}
	payload := entry.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	err = r.db.QueryRow(ctx, `
		INSERT INTO audit_logs (event_id, user_id, expense_id, action, payload)
		VALUES ($1::uuid, $2, $3, $4, $5)
		RETURNING id, created_at
	`, eventID.String(), entry.UserID, entry.ExpenseID, entry.Action, payload).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// ListByExpense returns the audit trail of one expense, oldest first.
func (r *AuditRepository) ListByExpense(ctx context.Context, expenseID int64) ([]models.AuditLog, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, event_id::text, user_id, expense_id, action, payload, created_at
		FROM audit_logs
		WHERE expense_id = $1
		ORDER BY created_at, id
	`, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var out []models.AuditLog
	for rows.Next() {
		var a models.AuditLog
		if err := rows.Scan(&a.ID, &a.EventID, &a.UserID, &a.ExpenseID, &a.Action, &a.Payload, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit logs: %w", err)
	}
	return out, nil
}
