package core

import (
	"context"
	"time"
)

type AuthEventType string

// Auth events, as emitted to the account's subscribers.
const (
	EventSignedIn         AuthEventType = "signed_in"
	EventSignedOut        AuthEventType = "signed_out"
	EventTokenRefreshed   AuthEventType = "token_refreshed"
	EventUserUpdated      AuthEventType = "user_updated"
	EventPasswordRecovery AuthEventType = "password_recovery"
)

type AuthEvent struct {
	Type   AuthEventType `json:"type"`
	UserID string        `json:"user_id"`
	At     time.Time     `json:"at"`
}

func NewAuthEvent(typ AuthEventType, userID string) AuthEvent {
	return AuthEvent{Type: typ, UserID: userID, At: time.Now().UTC()}
}

// EventBroker fans auth events out to every subscriber of the same account.
type EventBroker interface {
	Publish(ctx context.Context, evt AuthEvent) error
	// Subscribe streams the events of userID until ctx is done; the channel is then closed.
	Subscribe(ctx context.Context, userID string) (<-chan AuthEvent, error)
}
