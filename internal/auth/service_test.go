package auth_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	"github.com/clubops/platform/internal"
	"github.com/clubops/platform/internal/auth"
	"github.com/clubops/platform/internal/core/events"
)

// Mock credential store for testing
type mockCredentialStore struct {
	byEmail map[string]*auth.Credential
	byID    map[int64]*auth.Credential
	getErr  error
}

func newMockCredentialStore() *mockCredentialStore {
	return &mockCredentialStore{
		byEmail: make(map[string]*auth.Credential),
		byID:    make(map[int64]*auth.Credential),
	}
}

func (m *mockCredentialStore) add(cred *auth.Credential) {
	m.byEmail[cred.Email] = cred
	m.byID[cred.UserID] = cred
}

func (m *mockCredentialStore) GetByEmail(_ context.Context, email string) (*auth.Credential, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.byEmail[email], nil
}

func (m *mockCredentialStore) GetByID(_ context.Context, userID int64) (*auth.Credential, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.byID[userID], nil
}

// Mock OTP store with a CAS consume like the real repository
type mockOtpStore struct {
	mu         sync.Mutex
	challenges map[string]*auth.OtpChallenge
	createErr  error
}

func newMockOtpStore() *mockOtpStore {
	return &mockOtpStore{challenges: make(map[string]*auth.OtpChallenge)}
}

func (m *mockOtpStore) Create(_ context.Context, challenge *auth.OtpChallenge) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *challenge
	m.challenges[challenge.ID] = &copied
	return nil
}

func (m *mockOtpStore) Get(_ context.Context, id string) (*auth.OtpChallenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	challenge, ok := m.challenges[id]
	if !ok {
		return nil, nil
	}
	copied := *challenge
	return &copied, nil
}

func (m *mockOtpStore) Consume(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	challenge, ok := m.challenges[id]
	if !ok || challenge.IsUsed {
		return false, nil
	}
	challenge.IsUsed = true
	return true, nil
}

// Mock trusted device store
type mockDeviceStore struct {
	mu      sync.Mutex
	trusted map[string]bool
	saveErr error
}

func newMockDeviceStore() *mockDeviceStore {
	return &mockDeviceStore{trusted: make(map[string]bool)}
}

func deviceKey(userID int64, deviceID string) string {
	return fmt.Sprintf("%d/%s", userID, deviceID)
}

func (m *mockDeviceStore) IsTrusted(_ context.Context, userID int64, deviceID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trusted[deviceKey(userID, deviceID)], nil
}

func (m *mockDeviceStore) Save(_ context.Context, device *auth.TrustedDevice) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trusted[deviceKey(device.UserID, device.DeviceID)] = true
	return nil
}

func (m *mockDeviceStore) Revoke(_ context.Context, userID int64, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.trusted, deviceKey(userID, deviceID))
	return nil
}

// Mock session store with a CAS rotate like the real repository
type mockSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*auth.RefreshSession
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{sessions: make(map[string]*auth.RefreshSession)}
}

func (m *mockSessionStore) Create(_ context.Context, session *auth.RefreshSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *session
	m.sessions[session.TokenID] = &copied
	return nil
}

func (m *mockSessionStore) Get(_ context.Context, tokenID string) (*auth.RefreshSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[tokenID]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (m *mockSessionStore) Rotate(_ context.Context, tokenID, oldHash, newHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[tokenID]
	if !ok || session.RevokedAt != nil || session.SecretHash != oldHash {
		return false, nil
	}
	session.SecretHash = newHash
	return true, nil
}

func (m *mockSessionStore) Revoke(_ context.Context, tokenID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[tokenID]; ok && session.RevokedAt == nil {
		now := time.Now()
		session.RevokedAt = &now
	}
	return nil
}

func (m *mockSessionStore) RevokeAll(_ context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	now := time.Now()
	for _, session := range m.sessions {
		if session.UserID == userID && session.RevokedAt == nil {
			session.RevokedAt = &now
			count++
		}
	}
	return count, nil
}

func (m *mockSessionStore) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for id, session := range m.sessions {
		if session.ExpiresAt.Before(cutoff) {
			delete(m.sessions, id)
			count++
		}
	}
	return count, nil
}

// Mock mailer capturing the sent code
type mockMailer struct {
	mu    sync.Mutex
	codes []string
}

func (m *mockMailer) SendOtpEmail(_ context.Context, _, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes = append(m.codes, code)
	return nil
}

func (m *mockMailer) lastCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.codes) == 0 {
		return ""
	}
	return m.codes[len(m.codes)-1]
}

// Mock login limiter
type mockLimiter struct {
	mu       sync.Mutex
	failures map[string]int
	blocked  map[string]bool
}

func newMockLimiter() *mockLimiter {
	return &mockLimiter{failures: make(map[string]int), blocked: make(map[string]bool)}
}

func (m *mockLimiter) Check(_ context.Context, identifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blocked[identifier] {
		return internal.ErrTooManyAttempts
	}
	return nil
}

func (m *mockLimiter) RecordFailure(_ context.Context, identifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[identifier]++
	return nil
}

func (m *mockLimiter) Reset(_ context.Context, identifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[identifier] = 0
	return nil
}

func (m *mockLimiter) failureCount(identifier string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures[identifier]
}

var _ = Describe("AuthService", func() {
	var (
		svc      *auth.Service
		creds    *mockCredentialStore
		otps     *mockOtpStore
		devices  *mockDeviceStore
		sessions *mockSessionStore
		mailer   *mockMailer
		limiter  *mockLimiter
		bus      *events.EventBus
		ctx      context.Context

		tenantID int64 = 7
	)

	newUser := func(id int64, email, password string, active bool) *auth.Credential {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		Expect(err).NotTo(HaveOccurred())
		return &auth.Credential{
			UserID:       id,
			TenantID:     &tenantID,
			RoleLevel:    3,
			Email:        email,
			PasswordHash: string(hash),
			IsActive:     active,
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		creds = newMockCredentialStore()
		otps = newMockOtpStore()
		devices = newMockDeviceStore()
		sessions = newMockSessionStore()
		mailer = &mockMailer{}
		limiter = newMockLimiter()
		bus = events.NewEventBus(slog.Default())
	})

	JustBeforeEach(func() {
		svc = auth.NewService(
			creds, otps, devices, sessions,
			auth.NewJWTTokenGenerator("test-secret-that-is-long-enough-123456", time.Minute),
			mailer, limiter, bus, nil,
			auth.Options{OtpTTL: time.Minute, RefreshTTL: time.Hour, BCryptCost: bcrypt.MinCost},
		)
	})

	Describe("Authenticate", func() {
		BeforeEach(func() {
			creds.add(newUser(1, "staff@club.test", "correct-horse", true))
		})

		It("rejects an unknown email with the generic credential error", func() {
			_, err := svc.Authenticate(ctx, auth.LoginDTO{Email: "nobody@club.test", Password: "x", DeviceID: "d1"})
			Expect(errors.Is(err, internal.ErrInvalidCredentials)).To(BeTrue())
			Expect(limiter.failureCount("nobody@club.test")).To(Equal(1))
		})

		It("rejects a wrong password with the same error as an unknown email", func() {
			_, unknownErr := svc.Authenticate(ctx, auth.LoginDTO{Email: "nobody@club.test", Password: "x", DeviceID: "d1"})
			_, wrongErr := svc.Authenticate(ctx, auth.LoginDTO{Email: "staff@club.test", Password: "wrong", DeviceID: "d1"})
			Expect(unknownErr).To(Equal(wrongErr))
		})

		It("rejects an inactive account", func() {
			creds.add(newUser(2, "gone@club.test", "correct-horse", false))
			_, err := svc.Authenticate(ctx, auth.LoginDTO{Email: "gone@club.test", Password: "correct-horse", DeviceID: "d1"})
			Expect(errors.Is(err, internal.ErrInvalidCredentials)).To(BeTrue())
		})

		It("blocks when the limiter says too many attempts", func() {
			limiter.blocked["staff@club.test"] = true
			_, err := svc.Authenticate(ctx, auth.LoginDTO{Email: "staff@club.test", Password: "correct-horse", DeviceID: "d1"})
			Expect(errors.Is(err, internal.ErrTooManyAttempts)).To(BeTrue())
		})

		It("creates an OTP challenge for an untrusted device", func() {
			result, err := svc.Authenticate(ctx, auth.LoginDTO{Email: "staff@club.test", Password: "correct-horse", DeviceID: "new-laptop"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.RequiresOtp).To(BeTrue())
			Expect(result.ChallengeID).NotTo(BeEmpty())
			Expect(result.Tokens).To(BeNil())

			Eventually(mailer.lastCode).Should(HaveLen(6))
		})

		It("issues tokens directly for a trusted device", func() {
			Expect(devices.Save(ctx, &auth.TrustedDevice{UserID: 1, DeviceID: "known-laptop"})).To(Succeed())

			result, err := svc.Authenticate(ctx, auth.LoginDTO{Email: "staff@club.test", Password: "correct-horse", DeviceID: "known-laptop"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.RequiresOtp).To(BeFalse())
			Expect(result.Tokens).NotTo(BeNil())
			Expect(result.Tokens.AccessToken).NotTo(BeEmpty())
			Expect(result.Tokens.RefreshToken).NotTo(BeEmpty())
		})

		It("resets the failure count after a successful password check", func() {
			limiter.failures["staff@club.test"] = 5
			_, err := svc.Authenticate(ctx, auth.LoginDTO{Email: "staff@club.test", Password: "correct-horse", DeviceID: "d1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(limiter.failureCount("staff@club.test")).To(Equal(0))
		})
	})

	Describe("VerifyOtp", func() {
		var challengeID string

		JustBeforeEach(func() {
			creds.add(newUser(1, "staff@club.test", "correct-horse", true))
			result, err := svc.Authenticate(ctx, auth.LoginDTO{Email: "staff@club.test", Password: "correct-horse", DeviceID: "new-laptop"})
			Expect(err).NotTo(HaveOccurred())
			challengeID = result.ChallengeID
			Eventually(mailer.lastCode).ShouldNot(BeEmpty())
		})

		It("issues tokens for the correct code", func() {
			tokens, err := svc.VerifyOtp(ctx, auth.VerifyOtpDTO{
				ChallengeID: challengeID,
				Code:        mailer.lastCode(),
				DeviceID:    "new-laptop",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(tokens.AccessToken).NotTo(BeEmpty())
		})

		It("rejects a wrong code without consuming the challenge", func() {
			_, err := svc.VerifyOtp(ctx, auth.VerifyOtpDTO{ChallengeID: challengeID, Code: "000000", DeviceID: "new-laptop"})
			Expect(errors.Is(err, internal.ErrOtpMismatch)).To(BeTrue())

			// The correct code still works afterwards.
			_, err = svc.VerifyOtp(ctx, auth.VerifyOtpDTO{ChallengeID: challengeID, Code: mailer.lastCode(), DeviceID: "new-laptop"})
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects an unknown challenge", func() {
			_, err := svc.VerifyOtp(ctx, auth.VerifyOtpDTO{ChallengeID: "missing", Code: "123456", DeviceID: "d"})
			Expect(errors.Is(err, internal.ErrOtpNotFound)).To(BeTrue())
		})

		It("rejects reuse of a consumed challenge", func() {
			code := mailer.lastCode()
			_, err := svc.VerifyOtp(ctx, auth.VerifyOtpDTO{ChallengeID: challengeID, Code: code, DeviceID: "new-laptop"})
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.VerifyOtp(ctx, auth.VerifyOtpDTO{ChallengeID: challengeID, Code: code, DeviceID: "new-laptop"})
			Expect(errors.Is(err, internal.ErrOtpAlreadyUsed)).To(BeTrue())
		})

		It("rejects an expired challenge", func() {
			otps.mu.Lock()
			for _, ch := range otps.challenges {
				ch.ExpiresAt = time.Now().Add(-time.Second)
			}
			otps.mu.Unlock()

			_, err := svc.VerifyOtp(ctx, auth.VerifyOtpDTO{ChallengeID: challengeID, Code: mailer.lastCode(), DeviceID: "new-laptop"})
			Expect(errors.Is(err, internal.ErrOtpExpired)).To(BeTrue())
		})

		It("lets exactly one of two concurrent verifications win", func() {
			code := mailer.lastCode()
			dto := auth.VerifyOtpDTO{ChallengeID: challengeID, Code: code, DeviceID: "new-laptop"}

			var wg sync.WaitGroup
			results := make([]error, 2)
			for i := 0; i < 2; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, results[i] = svc.VerifyOtp(ctx, dto)
				}(i)
			}
			wg.Wait()

			var successes, alreadyUsed int
			for _, err := range results {
				if err == nil {
					successes++
				} else if errors.Is(err, internal.ErrOtpAlreadyUsed) {
					alreadyUsed++
				}
			}
			Expect(successes).To(Equal(1))
			Expect(alreadyUsed).To(Equal(1))
		})

		It("remembers the device when asked, skipping OTP next time", func() {
			_, err := svc.VerifyOtp(ctx, auth.VerifyOtpDTO{
				ChallengeID:    challengeID,
				Code:           mailer.lastCode(),
				DeviceID:       "new-laptop",
				RememberDevice: true,
			})
			Expect(err).NotTo(HaveOccurred())

			result, err := svc.Authenticate(ctx, auth.LoginDTO{Email: "staff@club.test", Password: "correct-horse", DeviceID: "new-laptop"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.RequiresOtp).To(BeFalse())
			Expect(result.Tokens).NotTo(BeNil())
		})

		It("still issues tokens when remembering the device fails", func() {
			devices.saveErr = errors.New("db down")
			tokens, err := svc.VerifyOtp(ctx, auth.VerifyOtpDTO{
				ChallengeID:    challengeID,
				Code:           mailer.lastCode(),
				DeviceID:       "new-laptop",
				RememberDevice: true,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(tokens).NotTo(BeNil())
		})
	})

	Describe("RefreshAccessToken", func() {
		var refreshToken string

		JustBeforeEach(func() {
			creds.add(newUser(1, "staff@club.test", "correct-horse", true))
			Expect(devices.Save(ctx, &auth.TrustedDevice{UserID: 1, DeviceID: "laptop"})).To(Succeed())
			result, err := svc.Authenticate(ctx, auth.LoginDTO{Email: "staff@club.test", Password: "correct-horse", DeviceID: "laptop"})
			Expect(err).NotTo(HaveOccurred())
			refreshToken = result.Tokens.RefreshToken
		})

		It("rotates the refresh token on every use", func() {
			tokens, err := svc.RefreshAccessToken(ctx, refreshToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(tokens.RefreshToken).NotTo(Equal(refreshToken))
			Expect(tokens.AccessToken).NotTo(BeEmpty())
		})

		It("revokes the session when a rotated-out token is replayed", func() {
			_, err := svc.RefreshAccessToken(ctx, refreshToken)
			Expect(err).NotTo(HaveOccurred())

			// The old token no longer matches the stored hash; replaying it
			// must kill the whole session.
			_, err = svc.RefreshAccessToken(ctx, refreshToken)
			Expect(errors.Is(err, internal.ErrSessionRevoked)).To(BeTrue())
		})

		It("rejects a malformed token", func() {
			_, err := svc.RefreshAccessToken(ctx, "not-a-refresh-token")
			Expect(errors.Is(err, internal.ErrUnauthenticated)).To(BeTrue())
		})

		It("rejects an expired session", func() {
			sessions.mu.Lock()
			for _, session := range sessions.sessions {
				session.ExpiresAt = time.Now().Add(-time.Minute)
			}
			sessions.mu.Unlock()

			_, err := svc.RefreshAccessToken(ctx, refreshToken)
			Expect(errors.Is(err, internal.ErrSessionExpired)).To(BeTrue())
		})

		It("rejects a revoked session", func() {
			Expect(svc.LogoutAll(ctx, 1)).To(Succeed())

			_, err := svc.RefreshAccessToken(ctx, refreshToken)
			Expect(errors.Is(err, internal.ErrSessionRevoked)).To(BeTrue())
		})

		It("rejects refresh after the account is deactivated", func() {
			creds.byID[1].IsActive = false

			_, err := svc.RefreshAccessToken(ctx, refreshToken)
			Expect(errors.Is(err, internal.ErrSessionRevoked)).To(BeTrue())
		})
	})

	Describe("Logout", func() {
		It("is idempotent", func() {
			creds.add(newUser(1, "staff@club.test", "correct-horse", true))
			Expect(devices.Save(ctx, &auth.TrustedDevice{UserID: 1, DeviceID: "laptop"})).To(Succeed())
			result, err := svc.Authenticate(ctx, auth.LoginDTO{Email: "staff@club.test", Password: "correct-horse", DeviceID: "laptop"})
			Expect(err).NotTo(HaveOccurred())

			principal, err := svc.Resolve(result.Tokens.AccessToken)
			Expect(err).NotTo(HaveOccurred())

			Expect(svc.Logout(ctx, principal)).To(Succeed())
			Expect(svc.Logout(ctx, principal)).To(Succeed())
		})
	})

	Describe("Resolve", func() {
		It("rejects an empty token", func() {
			_, err := svc.Resolve("")
			Expect(errors.Is(err, internal.ErrUnauthenticated)).To(BeTrue())
		})

		It("rejects garbage", func() {
			_, err := svc.Resolve("eyJhbGciOi.invalid.token")
			Expect(errors.Is(err, internal.ErrUnauthenticated)).To(BeTrue())
		})

		It("round-trips principal fields through the access token", func() {
			creds.add(newUser(1, "staff@club.test", "correct-horse", true))
			Expect(devices.Save(ctx, &auth.TrustedDevice{UserID: 1, DeviceID: "laptop"})).To(Succeed())
			result, err := svc.Authenticate(ctx, auth.LoginDTO{Email: "staff@club.test", Password: "correct-horse", DeviceID: "laptop"})
			Expect(err).NotTo(HaveOccurred())

			principal, err := svc.Resolve(result.Tokens.AccessToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(principal.UserID).To(Equal(int64(1)))
			Expect(*principal.TenantID).To(Equal(tenantID))
			Expect(principal.RoleLevel).To(Equal(3))
			Expect(principal.SessionID).NotTo(BeEmpty())
		})
	})

	Describe("SweepExpiredSessions", func() {
		It("deletes only sessions past the retention window", func() {
			now := time.Now()
			Expect(sessions.Create(ctx, &auth.RefreshSession{TokenID: "old", UserID: 1, ExpiresAt: now.Add(-60 * 24 * time.Hour)})).To(Succeed())
			Expect(sessions.Create(ctx, &auth.RefreshSession{TokenID: "fresh", UserID: 1, ExpiresAt: now.Add(time.Hour)})).To(Succeed())

			deleted, err := svc.SweepExpiredSessions(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(Equal(int64(1)))

			remaining, err := sessions.Get(ctx, "fresh")
			Expect(err).NotTo(HaveOccurred())
			Expect(remaining).NotTo(BeNil())
		})
	})
})
