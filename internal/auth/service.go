package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/clubops/platform/internal"
	"github.com/clubops/platform/internal/core/events"
	"github.com/clubops/platform/internal/obs"
)

const (
	otpCodeDigits    = 6
	otpPurposeLogin  = "login"
	refreshSecretLen = 32
)

// Options tunes the session core. Zero values fall back to the defaults in
// internal/config.go.
type Options struct {
	OtpTTL           time.Duration
	RefreshTTL       time.Duration
	SessionRetention time.Duration
	BCryptCost       int
}

// Service is the credential & session core: password verification, OTP
// step-up, trusted devices, refresh session lifecycle, and access token
// resolution.
type Service struct {
	creds    CredentialStore
	otps     OtpStore
	devices  TrustedDeviceStore
	sessions SessionStore
	tokenGen TokenGenerator
	mailer   OtpSender
	limiter  LoginLimiter
	bus      *events.EventBus
	logger   *slog.Logger

	otpTTL     time.Duration
	refreshTTL time.Duration
	retention  time.Duration
	bcryptCost int
}

func NewService(
	creds CredentialStore,
	otps OtpStore,
	devices TrustedDeviceStore,
	sessions SessionStore,
	tokenGen TokenGenerator,
	mailer OtpSender,
	limiter LoginLimiter,
	bus *events.EventBus,
	logger *slog.Logger,
	opts Options,
) *Service {
	if opts.OtpTTL <= 0 {
		opts.OtpTTL = internal.DefaultOtpTTL
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = internal.DefaultRefreshTTL
	}
	if opts.SessionRetention <= 0 {
		opts.SessionRetention = 30 * 24 * time.Hour
	}
	if opts.BCryptCost <= 0 {
		opts.BCryptCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		creds:      creds,
		otps:       otps,
		devices:    devices,
		sessions:   sessions,
		tokenGen:   tokenGen,
		mailer:     mailer,
		limiter:    limiter,
		bus:        bus,
		logger:     logger,
		otpTTL:     opts.OtpTTL,
		refreshTTL: opts.RefreshTTL,
		retention:  opts.SessionRetention,
		bcryptCost: opts.BCryptCost,
	}
}

// Authenticate verifies credentials. If the device is not trusted it creates
// an OTP challenge and mails the code; otherwise it issues tokens directly.
// Credential mismatches never reveal which of email/password was wrong.
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO) (*LoginResult, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	if s.limiter != nil {
		if err := s.limiter.Check(ctx, dto.Email); err != nil {
			return nil, err
		}
	}

	cred, err := s.creds.GetByEmail(ctx, dto.Email)
	if err != nil || cred == nil || !cred.IsActive {
		s.recordLoginFailure(ctx, dto.Email, "unknown_or_inactive_user")
		return nil, internal.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(dto.Password)); err != nil {
		s.recordLoginFailure(ctx, dto.Email, "password_mismatch")
		return nil, internal.ErrInvalidCredentials
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, dto.Email); err != nil {
			s.logger.Warn("login limiter reset failed", "error", err)
		}
	}

	trusted, err := s.devices.IsTrusted(ctx, cred.UserID, dto.DeviceID)
	if err != nil {
		return nil, internal.ErrDependencyUnavailable.WithCause(err)
	}

	if trusted {
		tokens, err := s.issueTokens(ctx, cred)
		if err != nil {
			return nil, err
		}
		obs.RecordLogin("success")
		return &LoginResult{RequiresOtp: false, Tokens: tokens}, nil
	}

	challengeID, err := s.createOtpChallenge(ctx, cred, dto.DeviceID)
	if err != nil {
		return nil, err
	}

	obs.RecordLogin("otp_challenge")
	return &LoginResult{RequiresOtp: true, ChallengeID: challengeID}, nil
}

// VerifyOtp consumes a step-up challenge exactly once and issues tokens.
// A concurrent duplicate verification loses the compare-and-set and gets
// ErrOtpAlreadyUsed.
func (s *Service) VerifyOtp(ctx context.Context, dto VerifyOtpDTO) (*Tokens, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	challenge, err := s.otps.Get(ctx, dto.ChallengeID)
	if err != nil {
		return nil, internal.ErrDependencyUnavailable.WithCause(err)
	}
	if challenge == nil {
		return nil, internal.ErrOtpNotFound
	}
	if challenge.IsUsed {
		return nil, internal.ErrOtpAlreadyUsed
	}
	if time.Now().After(challenge.ExpiresAt) {
		return nil, internal.ErrOtpExpired
	}

	if !codeMatches(challenge.CodeHash, dto.Code) {
		return nil, internal.ErrOtpMismatch
	}

	won, err := s.otps.Consume(ctx, challenge.ID)
	if err != nil {
		return nil, internal.ErrDependencyUnavailable.WithCause(err)
	}
	if !won {
		return nil, internal.ErrOtpAlreadyUsed
	}

	cred, err := s.creds.GetByID(ctx, challenge.UserID)
	if err != nil || cred == nil {
		return nil, internal.ErrDependencyUnavailable.WithCause(err)
	}

	if dto.RememberDevice {
		device := &TrustedDevice{
			UserID:     cred.UserID,
			DeviceID:   dto.DeviceID,
			DeviceName: dto.DeviceName,
			CreatedAt:  time.Now(),
		}
		if err := s.devices.Save(ctx, device); err != nil {
			// Tokens are still issued; the user just gets asked for OTP
			// again next time.
			s.logger.Warn("trusted device save failed", "user_id", cred.UserID, "error", err)
		}
	}

	tokens, err := s.issueTokens(ctx, cred)
	if err != nil {
		return nil, err
	}
	obs.RecordLogin("success")
	return tokens, nil
}

// RefreshAccessToken validates the opaque refresh token against its stored
// session row and rotates the secret on every use.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshToken string) (*Tokens, error) {
	tokenID, secret, err := decodeRefreshToken(refreshToken)
	if err != nil {
		return nil, internal.ErrUnauthenticated
	}

	session, err := s.sessions.Get(ctx, tokenID)
	if err != nil {
		return nil, internal.ErrDependencyUnavailable.WithCause(err)
	}
	if session == nil || session.RevokedAt != nil {
		return nil, internal.ErrSessionRevoked
	}
	if time.Now().After(session.ExpiresAt) {
		return nil, internal.ErrSessionExpired
	}

	providedHash := hashSecret(secret)
	if subtle.ConstantTimeCompare([]byte(providedHash), []byte(session.SecretHash)) != 1 {
		// Presented secret does not match the stored one: either a stale
		// token after rotation or a replay. Revoke the session outright.
		if revokeErr := s.sessions.Revoke(ctx, tokenID); revokeErr != nil {
			s.logger.Warn("session revoke after hash mismatch failed", "session_id", tokenID, "error", revokeErr)
		}
		return nil, internal.ErrSessionRevoked
	}

	newSecret, err := newRefreshSecret()
	if err != nil {
		return nil, internal.NewInternalError("failed to rotate refresh secret", err)
	}
	rotated, err := s.sessions.Rotate(ctx, tokenID, providedHash, hashSecret(newSecret))
	if err != nil {
		return nil, internal.ErrDependencyUnavailable.WithCause(err)
	}
	if !rotated {
		// Lost a concurrent rotation or the row was revoked in between.
		return nil, internal.ErrSessionRevoked
	}

	cred, err := s.creds.GetByID(ctx, session.UserID)
	if err != nil || cred == nil || !cred.IsActive {
		return nil, internal.ErrSessionRevoked
	}

	accessToken, err := s.tokenGen.GenerateAccessToken(principalFor(cred, tokenID))
	if err != nil {
		return nil, internal.NewInternalError("failed to sign access token", err)
	}

	return &Tokens{
		AccessToken:  accessToken,
		RefreshToken: encodeRefreshToken(tokenID, newSecret),
	}, nil
}

// Logout revokes a single refresh session. Idempotent: revoking an already
// revoked session succeeds.
func (s *Service) Logout(ctx context.Context, p *internal.Principal) error {
	if err := s.sessions.Revoke(ctx, p.SessionID); err != nil {
		return internal.ErrDependencyUnavailable.WithCause(err)
	}
	s.publish(ctx, events.NewSessionRevokedEvent(p.UserID, p.SessionID, false))
	return nil
}

// LogoutAll revokes every refresh session for the user. Any previously valid
// refresh token fails with ErrSessionRevoked afterwards.
func (s *Service) LogoutAll(ctx context.Context, userID int64) error {
	revoked, err := s.sessions.RevokeAll(ctx, userID)
	if err != nil {
		return internal.ErrDependencyUnavailable.WithCause(err)
	}
	s.logger.Info("revoked all sessions", "user_id", userID, "count", revoked)
	s.publish(ctx, events.NewSessionRevokedEvent(userID, "", true))
	return nil
}

// Resolve is the identity resolver: pure verification and decode of an
// access token into a Principal. No I/O.
func (s *Service) Resolve(rawToken string) (*internal.Principal, error) {
	if rawToken == "" {
		return nil, internal.ErrUnauthenticated
	}
	claims, err := s.tokenGen.ValidateAccessToken(rawToken)
	if err != nil {
		return nil, internal.ErrUnauthenticated
	}
	return &internal.Principal{
		UserID:    claims.UserID,
		TenantID:  claims.TenantID,
		RoleLevel: claims.RoleLevel,
		SessionID: claims.SessionID,
	}, nil
}

// RevokeTrustedDevice removes a remembered device so the next login from it
// requires OTP again.
func (s *Service) RevokeTrustedDevice(ctx context.Context, userID int64, deviceID string) error {
	if err := s.devices.Revoke(ctx, userID, deviceID); err != nil {
		return internal.ErrDependencyUnavailable.WithCause(err)
	}
	return nil
}

// SweepExpiredSessions deletes refresh session rows past the retention
// window. Best-effort housekeeping: expired rows are already rejected at
// validation time.
func (s *Service) SweepExpiredSessions(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.retention)
	return s.sessions.DeleteExpiredBefore(ctx, cutoff)
}

// RunSessionSweeper runs the retention sweep until ctx is cancelled.
func (s *Service) RunSessionSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.SweepExpiredSessions(ctx)
			if err != nil {
				s.logger.Warn("session sweep failed", "error", err)
				continue
			}
			if deleted > 0 {
				s.logger.Info("session sweep", "deleted", deleted)
			}
		}
	}
}

// HashPassword creates a bcrypt hash of the password.
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *Service) createOtpChallenge(ctx context.Context, cred *Credential, deviceID string) (string, error) {
	code, err := generateOtpCode()
	if err != nil {
		return "", internal.NewInternalError("failed to generate otp code", err)
	}

	challenge := &OtpChallenge{
		ID:        uuid.NewString(),
		UserID:    cred.UserID,
		CodeHash:  hashSecret([]byte(code)),
		Purpose:   otpPurposeLogin,
		DeviceID:  deviceID,
		ExpiresAt: time.Now().Add(s.otpTTL),
		CreatedAt: time.Now(),
	}
	if err := s.otps.Create(ctx, challenge); err != nil {
		return "", internal.ErrDependencyUnavailable.WithCause(err)
	}

	if s.mailer != nil {
		email := cred.Email
		go func() {
			// Detached from the request: a slow or failing mail server must
			// not fail the login attempt.
			sendCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.mailer.SendOtpEmail(sendCtx, email, code); err != nil {
				s.logger.Error("otp email send failed", "error", err)
			}
		}()
	}

	return challenge.ID, nil
}

func (s *Service) issueTokens(ctx context.Context, cred *Credential) (*Tokens, error) {
	tokenID := uuid.NewString()
	secret, err := newRefreshSecret()
	if err != nil {
		return nil, internal.NewInternalError("failed to generate refresh secret", err)
	}

	session := &RefreshSession{
		TokenID:    tokenID,
		UserID:     cred.UserID,
		SecretHash: hashSecret(secret),
		IssuedAt:   time.Now(),
		ExpiresAt:  time.Now().Add(s.refreshTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, internal.ErrDependencyUnavailable.WithCause(err)
	}

	accessToken, err := s.tokenGen.GenerateAccessToken(principalFor(cred, tokenID))
	if err != nil {
		return nil, internal.NewInternalError("failed to sign access token", err)
	}

	return &Tokens{
		AccessToken:  accessToken,
		RefreshToken: encodeRefreshToken(tokenID, secret),
	}, nil
}

func (s *Service) recordLoginFailure(ctx context.Context, email, reason string) {
	obs.RecordLogin("failure")
	if s.limiter != nil {
		if err := s.limiter.RecordFailure(ctx, email); err != nil {
			s.logger.Warn("login limiter record failed", "error", err)
		}
	}
	s.publish(ctx, events.NewLoginFailedEvent(email, reason))
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus != nil {
		s.bus.Publish(ctx, event)
	}
}

func principalFor(cred *Credential, sessionID string) *internal.Principal {
	return &internal.Principal{
		UserID:    cred.UserID,
		TenantID:  cred.TenantID,
		RoleLevel: cred.RoleLevel,
		SessionID: sessionID,
	}
}

// --- token helpers ---

// JWTTokenGenerator signs short-lived access tokens with HS256.
type JWTTokenGenerator struct {
	Secret         []byte
	AccessTokenTTL time.Duration
}

func NewJWTTokenGenerator(secret string, accessTTL time.Duration) *JWTTokenGenerator {
	if accessTTL <= 0 {
		accessTTL = internal.DefaultAccessTokenTTL
	}
	return &JWTTokenGenerator{
		Secret:         []byte(secret),
		AccessTokenTTL: accessTTL,
	}
}

func (j *JWTTokenGenerator) GenerateAccessToken(p *internal.Principal) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:    p.UserID,
		TenantID:  p.TenantID,
		RoleLevel: p.RoleLevel,
		SessionID: p.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(j.AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   strconv.FormatInt(p.UserID, 10),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.Secret)
}

func (j *JWTTokenGenerator) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.Secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

func decodeRefreshToken(raw string) (tokenID string, secret []byte, err error) {
	parts := strings.SplitN(raw, ".", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", nil, errors.New("malformed refresh token")
	}
	secret, err = hex.DecodeString(parts[1])
	if err != nil || len(secret) != refreshSecretLen {
		return "", nil, errors.New("malformed refresh token")
	}
	return parts[0], secret, nil
}

func encodeRefreshToken(tokenID string, secret []byte) string {
	return tokenID + "." + hex.EncodeToString(secret)
}

func newRefreshSecret() ([]byte, error) {
	secret := make([]byte, refreshSecretLen)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return secret, nil
}

func hashSecret(secret []byte) string {
	sum := sha256.Sum256(secret)
	return hex.EncodeToString(sum[:])
}

func codeMatches(storedHash, code string) bool {
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(hashSecret([]byte(code)))) == 1
}

func generateOtpCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < otpCodeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpCodeDigits, n), nil
}
