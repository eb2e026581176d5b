package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/clubops/platform/internal"
	"github.com/clubops/platform/internal/transport"
	"github.com/clubops/platform/pkg/logger"
)

// ServiceAPI is the slice of the session core the HTTP layer depends on.
type ServiceAPI interface {
	Authenticate(ctx context.Context, dto LoginDTO) (*LoginResult, error)
	VerifyOtp(ctx context.Context, dto VerifyOtpDTO) (*Tokens, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*Tokens, error)
	Logout(ctx context.Context, p *internal.Principal) error
	LogoutAll(ctx context.Context, userID int64) error
	RevokeTrustedDevice(ctx context.Context, userID int64, deviceID string) error
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

// deviceIDHeader carries the caller's opaque device identifier. It is only a
// TrustedDevice lookup key, never proof of identity by itself.
const deviceIDHeader = "X-Device-ID"

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if dto.DeviceID == "" {
		dto.DeviceID = r.Header.Get(deviceIDHeader)
	}

	result, err := h.Service.Authenticate(r.Context(), dto)
	if err != nil {
		h.writeAuthError(w, r, "authentication failed", err)
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) VerifyOtp(w http.ResponseWriter, r *http.Request) {
	var dto VerifyOtpDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if dto.DeviceID == "" {
		dto.DeviceID = r.Header.Get(deviceIDHeader)
	}

	tokens, err := h.Service.VerifyOtp(r.Context(), dto)
	if err != nil {
		h.writeAuthError(w, r, "otp verification failed", err)
		return
	}

	h.WriteJSON(w, http.StatusOK, tokens)
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var dto RefreshTokenDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	tokens, err := h.Service.RefreshAccessToken(r.Context(), dto.RefreshToken)
	if err != nil {
		h.writeAuthError(w, r, "token refresh failed", err)
		return
	}

	h.WriteJSON(w, http.StatusOK, tokens)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	p, ok := internal.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.Service.Logout(r.Context(), p); err != nil {
		h.writeAuthError(w, r, "logout failed", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	p, ok := internal.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.Service.LogoutAll(r.Context(), p.UserID); err != nil {
		h.writeAuthError(w, r, "logout all failed", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RevokeDevice(w http.ResponseWriter, r *http.Request) {
	p, ok := internal.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	deviceID := r.Header.Get(deviceIDHeader)
	if deviceID == "" {
		h.WriteError(w, http.StatusBadRequest, "device id is required")
		return
	}

	if err := h.Service.RevokeTrustedDevice(r.Context(), p.UserID, deviceID); err != nil {
		h.writeAuthError(w, r, "device revoke failed", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeAuthError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.Logger.WarnContext(r.Context(), msg, "error", err)

	var vErr ValidationError
	if errors.As(err, &vErr) {
		h.WriteError(w, http.StatusBadRequest, vErr.Error())
		return
	}
	if appErr, ok := internal.IsAppError(err); ok {
		status, body := appErr.ToHTTPResponse()
		h.WriteJSON(w, status, body)
		return
	}
	h.WriteError(w, http.StatusInternalServerError, "internal server error")
}
