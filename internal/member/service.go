package member

import (
	"context"
	"log/slog"
	"time"
)

// Repository defines the data access methods for members. Every read is
// tenant-scoped; the ID-only lookup exists for cross-checking ownership.
type Repository interface {
	Create(ctx context.Context, m *Member) error
	GetByID(ctx context.Context, tenantID, id int64) (*Member, error)
	ListByTenant(ctx context.Context, tenantID int64, limit, offset int) ([]*Member, error)
	Update(ctx context.Context, m *Member) error
	UpdateStatus(ctx context.Context, tenantID, id int64, status string, leftAt *time.Time) error
}

// Service handles member business logic
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// Enroll registers a new member for the tenant.
func (s *Service) Enroll(ctx context.Context, tenantID int64, dto CreateMemberDTO) (*Member, error) {
	if err := dto.Validate(); err != nil {
		s.logger.WarnContext(ctx, "member validation failed", "error", err, "tenant_id", tenantID)
		return nil, err
	}

	m := NewMember(tenantID, dto)
	if err := s.repo.Create(ctx, m); err != nil {
		s.logger.ErrorContext(ctx, "failed to create member", "error", err, "tenant_id", tenantID)
		return nil, err
	}

	s.logger.InfoContext(ctx, "member enrolled",
		"member_id", m.ID,
		"tenant_id", tenantID)

	return m, nil
}

func (s *Service) GetMember(ctx context.Context, tenantID, id int64) (*Member, error) {
	m, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) ListMembers(ctx context.Context, tenantID int64, limit, offset int) ([]*Member, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	members, err := s.repo.ListByTenant(ctx, tenantID, limit, offset)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list members", "error", err, "tenant_id", tenantID)
		return nil, err
	}
	return members, nil
}

// UpdateDetails changes a member's mutable profile fields.
func (s *Service) UpdateDetails(ctx context.Context, tenantID, id int64, dto UpdateMemberDTO) (*Member, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	m, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if dto.FullName != nil {
		m.FullName = *dto.FullName
	}
	if dto.Phone != nil {
		m.Phone = dto.Phone
	}
	m.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, m); err != nil {
		s.logger.ErrorContext(ctx, "failed to update member", "error", err, "member_id", id)
		return nil, err
	}

	return m, nil
}

// ChangeStatus applies a status transition after validating it against the
// member's current state.
func (s *Service) ChangeStatus(ctx context.Context, tenantID, id int64, dto UpdateMemberStatusDTO) error {
	if err := dto.Validate(); err != nil {
		return err
	}

	m, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}

	switch dto.Status {
	case StatusSuspended:
		if !m.CanBeSuspended() {
			return ErrInvalidStatus
		}
		m.Suspend()
	case StatusActive:
		if !m.CanBeReactivated() {
			return ErrInvalidStatus
		}
		m.Reactivate()
	case StatusCancelled:
		if m.Status == StatusCancelled {
			return ErrInvalidStatus
		}
		m.Cancel()
	}

	if err := s.repo.UpdateStatus(ctx, tenantID, id, m.Status, m.LeftAt); err != nil {
		s.logger.ErrorContext(ctx, "failed to update member status", "error", err, "member_id", id)
		return err
	}

	s.logger.InfoContext(ctx, "member status changed",
		"member_id", id,
		"tenant_id", tenantID,
		"status", m.Status)

	return nil
}
