package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/clubops/platform/internal/auth"
)

// CredentialRepository reads identity records from the users table.
type CredentialRepository struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

const credentialQuery = `SELECT id, tenant_id, role_level, email, password_hash, is_active FROM users WHERE `

func (r *CredentialRepository) GetByEmail(ctx context.Context, email string) (*auth.Credential, error) {
	return r.scanCredential(r.db.WithContext(ctx).Raw(credentialQuery+`email = ?`, email))
}

func (r *CredentialRepository) GetByID(ctx context.Context, userID int64) (*auth.Credential, error) {
	return r.scanCredential(r.db.WithContext(ctx).Raw(credentialQuery+`id = ?`, userID))
}

func (r *CredentialRepository) scanCredential(tx *gorm.DB) (*auth.Credential, error) {
	var cred auth.Credential
	row := tx.Row()
	if err := row.Scan(&cred.UserID, &cred.TenantID, &cred.RoleLevel, &cred.Email, &cred.PasswordHash, &cred.IsActive); err != nil {
		return nil, err
	}
	return &cred, nil
}

// OtpRepository owns otp_challenges rows.
type OtpRepository struct {
	db *gorm.DB
}

func NewOtpRepository(db *gorm.DB) *OtpRepository {
	return &OtpRepository{db: db}
}

func (r *OtpRepository) Create(ctx context.Context, challenge *auth.OtpChallenge) error {
	return r.db.WithContext(ctx).Create(challenge).Error
}

func (r *OtpRepository) Get(ctx context.Context, id string) (*auth.OtpChallenge, error) {
	var challenge auth.OtpChallenge
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&challenge).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &challenge, nil
}

// Consume flips is_used under a guard so exactly one concurrent caller wins.
func (r *OtpRepository) Consume(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&auth.OtpChallenge{}).
		Where("id = ? AND is_used = ?", id, false).
		Update("is_used", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// TrustedDeviceRepository owns trusted_devices rows.
type TrustedDeviceRepository struct {
	db *gorm.DB
}

func NewTrustedDeviceRepository(db *gorm.DB) *TrustedDeviceRepository {
	return &TrustedDeviceRepository{db: db}
}

func (r *TrustedDeviceRepository) IsTrusted(ctx context.Context, userID int64, deviceID string) (bool, error) {
	if deviceID == "" {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&auth.TrustedDevice{}).
		Where("user_id = ? AND device_id = ?", userID, deviceID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *TrustedDeviceRepository) Save(ctx context.Context, device *auth.TrustedDevice) error {
	if device.CreatedAt.IsZero() {
		device.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(device).Error
}

func (r *TrustedDeviceRepository) Revoke(ctx context.Context, userID int64, deviceID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND device_id = ?", userID, deviceID).
		Delete(&auth.TrustedDevice{}).Error
}

// SessionRepository owns refresh_sessions rows.
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *auth.RefreshSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *SessionRepository) Get(ctx context.Context, tokenID string) (*auth.RefreshSession, error) {
	var session auth.RefreshSession
	err := r.db.WithContext(ctx).Where("token_id = ?", tokenID).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// Rotate swaps the stored secret hash iff it still matches oldHash and the
// session has not been revoked. A concurrent replay loses the update.
func (r *SessionRepository) Rotate(ctx context.Context, tokenID, oldHash, newHash string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&auth.RefreshSession{}).
		Where("token_id = ? AND secret_hash = ? AND revoked_at IS NULL", tokenID, oldHash).
		Update("secret_hash", newHash)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Revoke sets revoked_at once; already-revoked rows are untouched so the
// operation is idempotent.
func (r *SessionRepository) Revoke(ctx context.Context, tokenID string) error {
	return r.db.WithContext(ctx).
		Model(&auth.RefreshSession{}).
		Where("token_id = ? AND revoked_at IS NULL", tokenID).
		Update("revoked_at", time.Now()).Error
}

func (r *SessionRepository) RevokeAll(ctx context.Context, userID int64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&auth.RefreshSession{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", time.Now())
	return result.RowsAffected, result.Error
}

func (r *SessionRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", cutoff).
		Delete(&auth.RefreshSession{})
	return result.RowsAffected, result.Error
}
