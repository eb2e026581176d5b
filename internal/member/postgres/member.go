package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/clubops/platform/internal/member"
)

// MemberRepository implements the member.Repository interface using GORM
type MemberRepository struct {
	db *gorm.DB
}

func NewMemberRepository(db *gorm.DB) member.Repository {
	return &MemberRepository{db: db}
}

func (r *MemberRepository) Create(ctx context.Context, m *member.Member) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// GetByID retrieves a member within the tenant's scope. A member belonging
// to another tenant is indistinguishable from a missing one.
func (r *MemberRepository) GetByID(ctx context.Context, tenantID, id int64) (*member.Member, error) {
	var m member.Member
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, member.ErrMemberNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *MemberRepository) ListByTenant(ctx context.Context, tenantID int64, limit, offset int) ([]*member.Member, error) {
	var members []*member.Member
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("joined_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&members).Error
	return members, err
}

func (r *MemberRepository) Update(ctx context.Context, m *member.Member) error {
	m.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(m).Error
}

func (r *MemberRepository) UpdateStatus(ctx context.Context, tenantID, id int64, status string, leftAt *time.Time) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if leftAt != nil {
		updates["left_at"] = *leftAt
	}

	result := r.db.WithContext(ctx).Model(&member.Member{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return member.ErrMemberNotFound
	}
	return nil
}
