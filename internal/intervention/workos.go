// Package intervention revokes WorkOS sessions. Adapted from the teacher's
// internal/service/auth.go session handling, narrowed from a full OAuth login flow to
// session revocation only. It does not authenticate or authorize mid-turn injections
// (CANCEL, REDIRECT, ADD_CONTEXT): those reach the InjectionManager without a session
// check.
package intervention

import (
	"context"
	"errors"
	"fmt"

	"github.com/workos/workos-go/v6/pkg/usermanagement"
)

var ErrSessionRevoked = errors.New("intervention rejected: session no longer active")

// SessionConfig mirrors the teacher's config.WorkOSConfig shape, narrowed to what
// session validation needs (no redirect/dashboard URLs, since this package never
// drives a login flow).
type SessionConfig struct {
	APIKey   string
	ClientID string
}

// Authenticator revokes a user's WorkOS session so the same access token can't be
// replayed. Only the intervention cancel endpoint calls it; a CANCEL injection does not
// revoke a session.
type Authenticator struct {
	clientID string
}

func NewAuthenticator(cfg SessionConfig) *Authenticator {
	usermanagement.SetAPIKey(cfg.APIKey)
	return &Authenticator{clientID: cfg.ClientID}
}

// Cancel revokes workosSessionID. It does not stop or touch an in-flight turn.
func (a *Authenticator) Cancel(ctx context.Context, workosSessionID string) error {
	if workosSessionID == "" {
		return ErrSessionRevoked
	}
	err := usermanagement.RevokeSession(ctx, usermanagement.RevokeSessionOpts{
		SessionID: workosSessionID,
	})
	if err != nil {
		return fmt.Errorf("revoking intervention session: %w", err)
	}
	return nil
}
