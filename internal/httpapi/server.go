// Package httpapi exposes the approval engine over a JSON REST API.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"gitlab.com/yelinaung/expense-approvals/internal/approval"
	"gitlab.com/yelinaung/expense-approvals/internal/gemini"
	"gitlab.com/yelinaung/expense-approvals/internal/logger"
	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

const (
	// UserHeader carries the caller's user id. Authentication happens upstream.
	UserHeader = "X-User-ID"
	// RequestTimeout bounds a single request.
	RequestTimeout = 30 * time.Second
	// MaxBodyBytes bounds JSON request bodies.
	MaxBodyBytes = 1 << 20
	// MaxReceiptBytes bounds uploaded receipt images.
	MaxReceiptBytes = 10 << 20
)

// Engine is the part of approval.Engine the API drives.
type Engine interface {
	User(ctx context.Context, id int64) (*models.User, error)
	SubmitExpense(ctx context.Context, in approval.SubmitInput) (approval.SubmitResult, error)
	RecordDecision(ctx context.Context, in approval.DecisionInput) (approval.DecisionResult, error)
	OverrideExpense(ctx context.Context, in approval.OverrideInput) (approval.OverrideResult, error)
	ExpenseWithLedger(ctx context.Context, viewer *models.User, expenseID int64) (*approval.ExpenseDetail, error)
	ListExpenses(ctx context.Context, viewer *models.User, filter approval.ExpenseFilter) ([]models.Expense, error)
	PendingForApprover(ctx context.Context, approverID int64) ([]approval.PendingApproval, error)
	StatusCounts(ctx context.Context, viewer *models.User) (map[models.ExpenseStatus]int, error)
}

// Rules is the rule administration service.
type Rules interface {
	List(ctx context.Context, actor *models.User) ([]models.ApprovalRule, error)
	Get(ctx context.Context, actor *models.User, id int64) (*models.ApprovalRule, error)
	Create(ctx context.Context, actor *models.User, rule models.ApprovalRule) (*models.ApprovalRule, error)
	Update(ctx context.Context, actor *models.User, rule models.ApprovalRule) (*models.ApprovalRule, error)
	Delete(ctx context.Context, actor *models.User, id int64) error
}

// ReceiptParser extracts a submission draft from a receipt image.
type ReceiptParser interface {
	ParseReceipt(ctx context.Context, image []byte, mimeType string) (*gemini.ReceiptDraft, error)
}

var (
	_ Engine        = (*approval.Engine)(nil)
	_ Rules         = (*approval.RuleService)(nil)
	_ ReceiptParser = (*gemini.Client)(nil)
)

// Server holds the API dependencies.
type Server struct {
	engine   Engine
	rules    Rules
	receipts ReceiptParser
	log      zerolog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithReceiptParser enables POST /receipts/parse.
func WithReceiptParser(p ReceiptParser) Option {
	return func(s *Server) { s.receipts = p }
}

// New creates a Server.
func New(engine Engine, rules Rules, opts ...Option) *Server {
	s := &Server{
		engine: engine,
		rules:  rules,
		log:    logger.WithComponent("http"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(RequestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Route("/expenses", func(r chi.Router) {
			r.Post("/", s.handleSubmitExpense)
			r.Get("/", s.handleListExpenses)
			r.Get("/{id}", s.handleGetExpense)
			r.Post("/{id}/decision", s.handleDecision)
			r.Post("/{id}/override", s.handleOverride)
		})

		r.Get("/approvals/pending", s.handlePendingApprovals)
		r.Get("/reports/status", s.handleStatusCounts)

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", s.handleListRules)
			r.Post("/", s.handleCreateRule)
			r.Get("/{id}", s.handleGetRule)
			r.Put("/{id}", s.handleUpdateRule)
			r.Delete("/{id}", s.handleDeleteRule)
		})

		r.Post("/receipts/parse", s.handleParseReceipt)
	})

	return otelhttp.NewHandler(r, "expense-approvals",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "HTTP " + r.Method
		}),
	)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		event := s.log.Info()
		if ww.Status() >= http.StatusInternalServerError {
			event = s.log.Error()
		}
		event.
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
