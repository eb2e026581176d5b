package user

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/clubops/platform/internal"
	"github.com/clubops/platform/internal/transport"
	"github.com/clubops/platform/pkg/logger"
)

type ServiceAPI interface {
	GetProfile(ctx context.Context, userID int64) (*Profile, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

// GetCurrentUser handles GET /users/me
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	p, ok := internal.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	profile, err := h.Service.GetProfile(r.Context(), p.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.WriteAppError(w, internal.NewNotFoundError("user not found", internal.ErrCodeUserNotFound))
			return
		}
		h.Logger.ErrorContext(r.Context(), "get profile failed", "user_id", p.UserID, "error", err)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.WriteJSON(w, http.StatusOK, profile)
}
