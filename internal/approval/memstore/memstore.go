// Package memstore is an in-memory approval.Store. Units of work are
// serialised by a single mutex and rolled back by restoring a snapshot.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"gitlab.com/yelinaung/expense-approvals/internal/approval"
	"gitlab.com/yelinaung/expense-approvals/internal/models"
	"gitlab.com/yelinaung/expense-approvals/internal/notify"
)

type state struct {
	companies     map[int64]models.Company
	users         map[int64]models.User
	rules         map[int64]models.ApprovalRule
	expenses      map[int64]models.Expense
	entries       map[int64]models.ApprovalEntry
	notifications []models.Notification
	audits        []models.AuditLog
	nextID        int64
}

func (s *state) clone() *state {
	c := &state{
		companies:     maps.Clone(s.companies),
		users:         maps.Clone(s.users),
		rules:         make(map[int64]models.ApprovalRule, len(s.rules)),
		expenses:      maps.Clone(s.expenses),
		entries:       maps.Clone(s.entries),
		notifications: slices.Clone(s.notifications),
		audits:        slices.Clone(s.audits),
		nextID:        s.nextID,
	}
	for id, r := range s.rules {
		r.Steps = slices.Clone(r.Steps)
		c.rules[id] = r
	}
	return c
}

// Store is an in-memory approval.Store.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

var (
	_ approval.Store = (*Store)(nil)
	_ notify.Source  = (*Store)(nil)
)

// New returns an empty Store.
func New() *Store {
	return &Store{
		st: &state{
			companies: make(map[int64]models.Company),
			users:     make(map[int64]models.User),
			rules:     make(map[int64]models.ApprovalRule),
			expenses:  make(map[int64]models.Expense),
			entries:   make(map[int64]models.ApprovalEntry),
		},
		now: time.Now,
	}
}

// RunInTx runs fn with exclusive access. Any error or panic restores the
// state from before fn ran.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx approval.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	defer func() {
		if p := recover(); p != nil {
			s.st = snapshot
			panic(p)
		}
		if err != nil {
			s.st = snapshot
		}
	}()

	return fn(ctx, &tx{s: s})
}

func (st *state) id() int64 {
	st.nextID++
	return st.nextID
}

// AddCompany stores a company and returns it with its id set.
func (s *Store) AddCompany(c models.Company) models.Company {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.st.id()
	}
	if c.BaseCurrency == "" {
		c.BaseCurrency = models.DefaultCurrency
	}
	c.CreatedAt = s.now()
	s.st.companies[c.ID] = c
	return c
}

// AddUser stores a user and returns it with its id set.
func (s *Store) AddUser(u models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.st.id()
	}
	u.CreatedAt = s.now()
	u.UpdatedAt = u.CreatedAt
	s.st.users[u.ID] = u
	return u
}

// SetUserActive toggles a user's active flag.
func (s *Store) SetUserActive(id int64, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.st.users[id]; ok {
		u.IsActive = active
		s.st.users[id] = u
	}
}

// Expense returns a copy of a stored expense.
func (s *Store) Expense(id int64) (models.Expense, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.st.expenses[id]
	return e, ok
}

// Entries returns the ledger of an expense ordered by step and id.
func (s *Store) Entries(expenseID int64) []models.ApprovalEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.entriesOf(expenseID)
}

// Notifications returns every queued notification in insertion order.
func (s *Store) Notifications() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.notifications)
}

// AuditLogs returns every audit row in insertion order.
func (s *Store) AuditLogs() []models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.audits)
}

// Batch runs one notification dispatch batch against the store.
func (s *Store) Batch(ctx context.Context, fn func(ctx context.Context, box notify.Outbox) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, s)
}

// PendingNotifications returns undelivered rows with fewer than maxAttempts attempts.
func (s *Store) PendingNotifications(ctx context.Context, limit, maxAttempts int) ([]models.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.st.notifications {
		if n.DeliveredAt != nil || n.Attempts >= maxAttempts {
			continue
		}
		out = append(out, n)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// MarkDelivered records a successful delivery.
func (s *Store) MarkDelivered(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.st.notifications {
		if s.st.notifications[i].ID == id {
			now := s.now()
			s.st.notifications[i].DeliveredAt = &now
			s.st.notifications[i].Attempts++
			return nil
		}
	}
	return approval.NotFound("notification", id)
}

// MarkFailed records a failed delivery attempt.
func (s *Store) MarkFailed(ctx context.Context, id int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.st.notifications {
		if s.st.notifications[i].ID == id {
			s.st.notifications[i].Attempts++
			s.st.notifications[i].LastError = reason
			return nil
		}
	}
	return approval.NotFound("notification", id)
}

func (st *state) entriesOf(expenseID int64) []models.ApprovalEntry {
	var out []models.ApprovalEntry
	for _, e := range st.entries {
		if e.ExpenseID == expenseID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StepOrder != out[j].StepOrder {
			return out[i].StepOrder < out[j].StepOrder
		}
		return out[i].ID < out[j].ID
	})
	return out
}
