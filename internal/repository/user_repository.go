package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"gitlab.com/yelinaung/expense-approvals/internal/approval"
	"gitlab.com/yelinaung/expense-approvals/internal/database"
	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

// UserRepository handles company and user directory operations.
type UserRepository struct {
	db database.Querier
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db database.Querier) *UserRepository {
	return &UserRepository{db: db}
}

var userColumnList = []string{
	"id", "company_id", "name", "email", "role", "manager_id", "is_active", "telegram_id", "created_at", "updated_at",
}

func prefixedUserColumns(alias string) string {
	cols := make([]string, len(userColumnList))
	for i, c := range userColumnList {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

var userColumns = strings.Join(userColumnList, ", ")

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.CompanyID, &u.Name, &u.Email, &u.Role, &u.ManagerID, &u.IsActive,
		&u.TelegramID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateCompany inserts a company.
func (r *UserRepository) CreateCompany(ctx context.Context, company *models.Company) error {
	if company.BaseCurrency == "" {
		company.BaseCurrency = models.DefaultCurrency
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO companies (name, base_currency) VALUES ($1, $2)
		RETURNING id, created_at
	`, company.Name, company.BaseCurrency).Scan(&company.ID, &company.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create company: %w", err)
	}
	return nil
}

// GetCompany retrieves a company by ID.
func (r *UserRepository) GetCompany(ctx context.Context, id int64) (*models.Company, error) {
	var c models.Company
	err := r.db.QueryRow(ctx, `
		SELECT id, name, base_currency, created_at FROM companies WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.BaseCurrency, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, approval.NotFound("company", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return &c, nil
}

// CreateUser inserts a user.
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (company_id, name, email, role, manager_id, is_active, telegram_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, user.CompanyID, user.Name, user.Email, user.Role, user.ManagerID, user.IsActive, user.TelegramID,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// SetActive activates or deactivates a user.
func (r *UserRepository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return approval.NotFound("user", id)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (r *UserRepository) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, approval.NotFound("user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetUserByTelegramID retrieves the user linked to a Telegram account.
func (r *UserRepository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, telegramID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, approval.NotFound("telegram user", telegramID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by telegram id: %w", err)
	}
	return u, nil
}

// ActiveApprovers returns active managers and admins of a company ordered by id.
func (r *UserRepository) ActiveApprovers(ctx context.Context, companyID int64) ([]models.User, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE company_id = $1 AND is_active AND role IN ('manager', 'admin')
		ORDER BY id
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query approvers: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// LowestActiveAdmin returns the company's active admin with the lowest id, or nil.
func (r *UserRepository) LowestActiveAdmin(ctx context.Context, companyID int64) (*models.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE company_id = $1 AND is_active AND role = 'admin'
		ORDER BY id
		LIMIT 1
	`, companyID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}
	return u, nil
}
