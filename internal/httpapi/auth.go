package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"gitlab.com/yelinaung/expense-approvals/internal/approval"
	"gitlab.com/yelinaung/expense-approvals/internal/logger"
	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

type userKey struct{}

// authenticate resolves the caller from UserHeader. Unknown and inactive users
// are rejected before any handler runs.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(UserHeader))
		id, err := strconv.ParseInt(raw, 10, 64)
		if raw == "" || err != nil || id <= 0 {
			writeProblem(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid "+UserHeader+" header")
			return
		}

		user, err := s.engine.User(r.Context(), id)
		if err != nil {
			if errors.Is(err, approval.ErrNotFound) {
				writeProblem(w, http.StatusUnauthorized, "unauthenticated", "unknown user")
				return
			}
			s.writeError(w, r, err)
			return
		}
		if !user.IsActive {
			s.log.Warn().Str("user_hash", logger.HashUserID(user.ID)).Msg("Inactive user rejected")
			writeProblem(w, http.StatusForbidden, "forbidden", "user is inactive")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	})
}

// currentUser returns the authenticated caller. It is only called behind authenticate.
func currentUser(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey{}).(*models.User)
	return u
}
