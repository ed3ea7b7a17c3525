// internal/session/session.go
package session

import "sync"

// Source exposes the authenticated/unauthenticated signal and the bearer
// credential owned by the app's session component. This subsystem only
// consumes it; absence of a credential short-circuits backend calls as
// local no-ops.
type Source interface {
	Authenticated() bool
	BearerToken() string
}

// Static is a Source backed by a settable token, used by the daemon and
// in tests.
type Static struct {
	mu    sync.RWMutex
	token string
}

func NewStatic(token string) *Static {
	return &Static{token: token}
}

func (s *Static) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

func (s *Static) BearerToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SetToken replaces the credential; an empty token means logged out.
func (s *Static) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}
