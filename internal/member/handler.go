package member

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"

	"github.com/clubops/platform/internal"
	"github.com/clubops/platform/internal/transport"
	"github.com/clubops/platform/pkg/logger"
)

type ServiceAPI interface {
	Enroll(ctx context.Context, tenantID int64, dto CreateMemberDTO) (*Member, error)
	GetMember(ctx context.Context, tenantID, id int64) (*Member, error)
	ListMembers(ctx context.Context, tenantID int64, limit, offset int) ([]*Member, error)
	UpdateDetails(ctx context.Context, tenantID, id int64, dto UpdateMemberDTO) (*Member, error)
	ChangeStatus(ctx context.Context, tenantID, id int64, dto UpdateMemberStatusDTO) error
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

func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromContext(w, r)
	if !ok {
		return
	}

	var dto CreateMemberDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := h.Service.Enroll(r.Context(), tenantID, dto)
	if err != nil {
		h.writeMemberError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, m)
}

func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromContext(w, r)
	if !ok {
		return
	}
	id, ok := h.memberID(w, r)
	if !ok {
		return
	}

	m, err := h.Service.GetMember(r.Context(), tenantID, id)
	if err != nil {
		h.writeMemberError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromContext(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	members, err := h.Service.ListMembers(r.Context(), tenantID, limit, offset)
	if err != nil {
		h.writeMemberError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"members": members,
		"count":   len(members),
	})
}

func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromContext(w, r)
	if !ok {
		return
	}
	id, ok := h.memberID(w, r)
	if !ok {
		return
	}

	var dto UpdateMemberDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := h.Service.UpdateDetails(r.Context(), tenantID, id, dto)
	if err != nil {
		h.writeMemberError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) UpdateMemberStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromContext(w, r)
	if !ok {
		return
	}
	id, ok := h.memberID(w, r)
	if !ok {
		return
	}

	var dto UpdateMemberStatusDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Service.ChangeStatus(r.Context(), tenantID, id, dto); err != nil {
		h.writeMemberError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{
		"status":     dto.Status,
		"updated_at": time.Now().Format(time.RFC3339),
	})
}

// tenantFromContext requires a tenant-bound principal; platform-level
// accounts must act through tenant administration endpoints instead.
func (h *Handler) tenantFromContext(w http.ResponseWriter, r *http.Request) (int64, bool) {
	p, ok := internal.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "authentication required")
		return 0, false
	}
	if p.TenantID == nil {
		h.WriteError(w, http.StatusForbidden, "a tenant context is required")
		return 0, false
	}
	return *p.TenantID, true
}

func (h *Handler) memberID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid member id")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeMemberError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrMemberNotFound):
		h.WriteAppError(w, internal.NewNotFoundError("member not found", internal.ErrCodeMemberNotFound))
	case errors.Is(err, ErrInvalidStatus):
		h.WriteError(w, http.StatusConflict, err.Error())
	default:
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}
