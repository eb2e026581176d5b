package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeLoginFailed    = "auth.login_failed"
	EventTypeAccessDenied   = "auth.access_denied"
	EventTypeSessionRevoked = "auth.session_revoked"
)

type LoginFailedEvent struct {
	BaseEvent
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

func NewLoginFailedEvent(email, reason string) *LoginFailedEvent {
	return &LoginFailedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeLoginFailed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"email":  email,
				"reason": reason,
			},
		},
		Email:  email,
		Reason: reason,
	}
}

// AccessDeniedEvent records a pipeline denial: which principal, which
// operation, and which stage rejected it. This is the audit record required
// for every denial; the HTTP response never carries the stage name.
type AccessDeniedEvent struct {
	BaseEvent
	UserID    int64  `json:"user_id"`
	Operation string `json:"operation"`
	Stage     string `json:"stage"`
}

func NewAccessDeniedEvent(userID int64, operation, stage string) *AccessDeniedEvent {
	return &AccessDeniedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeAccessDenied,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id":   userID,
				"operation": operation,
				"stage":     stage,
			},
		},
		UserID:    userID,
		Operation: operation,
		Stage:     stage,
	}
}

type SessionRevokedEvent struct {
	BaseEvent
	UserID    int64  `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
	All       bool   `json:"all"`
}

func NewSessionRevokedEvent(userID int64, sessionID string, all bool) *SessionRevokedEvent {
	return &SessionRevokedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeSessionRevoked,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id":    userID,
				"session_id": sessionID,
				"all":        all,
			},
		},
		UserID:    userID,
		SessionID: sessionID,
		All:       all,
	}
}
