package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/clubops/platform/internal"
)

// Credential is the stored identity record the session core authenticates
// against. TenantID is nil for platform-level users.
type Credential struct {
	UserID       int64
	TenantID     *int64
	RoleLevel    int
	Email        string
	PasswordHash string
	IsActive     bool
}

// OtpChallenge is a one-time step-up challenge created at login when the
// device is not yet trusted. Consumed exactly once via a compare-and-set on
// IsUsed.
type OtpChallenge struct {
	ID        string    `gorm:"primaryKey;column:id"`
	UserID    int64     `gorm:"column:user_id"`
	CodeHash  string    `gorm:"column:code_hash"`
	Purpose   string    `gorm:"column:purpose"`
	DeviceID  string    `gorm:"column:device_id"`
	ExpiresAt time.Time `gorm:"column:expires_at"`
	IsUsed    bool      `gorm:"column:is_used"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (OtpChallenge) TableName() string { return "otp_challenges" }

// TrustedDevice lets a (user, device) pair skip the OTP step on later logins.
// Never expires on its own; removed only by explicit revoke.
type TrustedDevice struct {
	ID         int64     `gorm:"primaryKey;column:id"`
	UserID     int64     `gorm:"column:user_id"`
	DeviceID   string    `gorm:"column:device_id"`
	DeviceName string    `gorm:"column:device_name"`
	IPAddress  string    `gorm:"column:ip_address"`
	UserAgent  string    `gorm:"column:user_agent"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (TrustedDevice) TableName() string { return "trusted_devices" }

// RefreshSession is one row per issued refresh token. The refresh token
// itself is opaque ("<tokenID>.<secret>"); only the SHA-256 of the secret is
// stored. A revoked or expired row can never mint a new access token.
type RefreshSession struct {
	TokenID    string     `gorm:"primaryKey;column:token_id"`
	UserID     int64      `gorm:"column:user_id"`
	SecretHash string     `gorm:"column:secret_hash"`
	IssuedAt   time.Time  `gorm:"column:issued_at"`
	ExpiresAt  time.Time  `gorm:"column:expires_at"`
	RevokedAt  *time.Time `gorm:"column:revoked_at"`
}

func (RefreshSession) TableName() string { return "refresh_sessions" }

// Claims are the access token claims. Access tokens are short-lived and
// carry only what the pipeline needs to build a Principal.
type Claims struct {
	UserID    int64  `json:"user_id"`
	TenantID  *int64 `json:"tenant_id,omitempty"`
	RoleLevel int    `json:"role_level"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// LoginResult is returned by Authenticate: either tokens directly (trusted
// device) or a step-up challenge to complete first.
type LoginResult struct {
	RequiresOtp bool    `json:"requires_otp"`
	ChallengeID string  `json:"challenge_id,omitempty"`
	Tokens      *Tokens `json:"tokens,omitempty"`
}

// TokenGenerator creates and verifies access tokens.
type TokenGenerator interface {
	GenerateAccessToken(p *internal.Principal) (string, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
}

// CredentialStore reads user identity records.
type CredentialStore interface {
	GetByEmail(ctx context.Context, email string) (*Credential, error)
	GetByID(ctx context.Context, userID int64) (*Credential, error)
}

// OtpStore owns OtpChallenge rows.
type OtpStore interface {
	Create(ctx context.Context, challenge *OtpChallenge) error
	Get(ctx context.Context, id string) (*OtpChallenge, error)
	// Consume flips IsUsed exactly once; the bool reports whether this call
	// won the flip.
	Consume(ctx context.Context, id string) (bool, error)
}

// TrustedDeviceStore owns TrustedDevice rows.
type TrustedDeviceStore interface {
	IsTrusted(ctx context.Context, userID int64, deviceID string) (bool, error)
	Save(ctx context.Context, device *TrustedDevice) error
	Revoke(ctx context.Context, userID int64, deviceID string) error
}

// SessionStore owns RefreshSession rows.
type SessionStore interface {
	Create(ctx context.Context, session *RefreshSession) error
	Get(ctx context.Context, tokenID string) (*RefreshSession, error)
	// Rotate swaps the secret hash iff the stored hash still matches
	// oldHash and the session is not revoked.
	Rotate(ctx context.Context, tokenID, oldHash, newHash string) (bool, error)
	Revoke(ctx context.Context, tokenID string) error
	RevokeAll(ctx context.Context, userID int64) (int64, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// OtpSender delivers the one-time code. Fire-and-forget: delivery failures
// are logged, never surfaced to the login attempt.
type OtpSender interface {
	SendOtpEmail(ctx context.Context, email, code string) error
}

// LoginLimiter throttles repeated failed logins per identifier.
type LoginLimiter interface {
	Check(ctx context.Context, identifier string) error
	RecordFailure(ctx context.Context, identifier string) error
	Reset(ctx context.Context, identifier string) error
}
