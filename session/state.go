package session

import (
	"github.com/trezcool/tutorhub/core/profile"
	"github.com/trezcool/tutorhub/core/user"
)

type Status string

// Session statuses. Initializing and Authenticating are transient, every other status is settled.
const (
	StatusInitializing   Status = "initializing"
	StatusAnonymous      Status = "anonymous"
	StatusAuthenticating Status = "authenticating"
	StatusUnverified     Status = "unverified"
	StatusNoProfile      Status = "no_profile"
	StatusAuthenticated  Status = "authenticated"
)

// State is a snapshot of the session. User and Profile are never mutated once published.
type State struct {
	Status  Status
	Email   string // account being signed in, or awaiting its email confirmation
	Token   string
	User    *user.User
	Profile *profile.Profile
	Message string // user-facing reason of the last failed transition
}

func (s State) Settled() bool {
	return s.Status != StatusInitializing && s.Status != StatusAuthenticating
}

// SignedIn reports whether API calls can be made on behalf of the user.
func (s State) SignedIn() bool {
	return s.Token != "" && (s.Status == StatusAuthenticated || s.Status == StatusNoProfile)
}

func (s State) Role() string {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}
