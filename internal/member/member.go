package member

import (
	"errors"
	"time"
)

// Member is a person enrolled with one tenant business. Members are data,
// not accounts: they never authenticate, staff manage them.
type Member struct {
	ID        int64      `json:"id" gorm:"primaryKey"`
	TenantID  int64      `json:"tenant_id"`
	Email     string     `json:"email"`
	FullName  string     `json:"full_name"`
	Phone     *string    `json:"phone,omitempty"`
	Status    string     `json:"status"`
	JoinedAt  time.Time  `json:"joined_at"`
	LeftAt    *time.Time `json:"left_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Member) TableName() string { return "members" }

const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusCancelled = "cancelled"
)

var (
	ErrMemberNotFound = errors.New("member not found")
	ErrInvalidStatus  = errors.New("invalid member status transition")
)

func (m *Member) CanBeSuspended() bool {
	return m.Status == StatusActive
}

func (m *Member) CanBeReactivated() bool {
	return m.Status == StatusSuspended
}

func (m *Member) Suspend() {
	m.Status = StatusSuspended
	m.UpdatedAt = time.Now()
}

func (m *Member) Reactivate() {
	m.Status = StatusActive
	m.UpdatedAt = time.Now()
}

func (m *Member) Cancel() {
	now := time.Now()
	m.Status = StatusCancelled
	m.LeftAt = &now
	m.UpdatedAt = now
}

func NewMember(tenantID int64, dto CreateMemberDTO) *Member {
	now := time.Now()
	return &Member{
		TenantID:  tenantID,
		Email:     dto.Email,
		FullName:  dto.FullName,
		Phone:     dto.Phone,
		Status:    StatusActive,
		JoinedAt:  now,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
