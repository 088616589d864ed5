// Package auth is the facade the rest of the app consults about the
// session. It derives its answer from the credential store and the cached
// validate query on every call: there is no second source of truth to
// drift from the server.
package auth

import (
	"context"

	"go.uber.org/zap"

	"github.com/poupafin/poupafin-go/internal/domain"
	"github.com/poupafin/poupafin-go/internal/port"
	"github.com/poupafin/poupafin-go/internal/repo"
)

// Status is the tri-state the UI branches on.
type Status int

const (
	// StatusLoading means a token is stored but no validation has resolved
	// yet. Guards must not redirect while in this state, or a slow validate
	// bounces a valid session through the login page.
	StatusLoading Status = iota
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "loading"
	}
}

// Facade exposes session state and the logout flow. It holds no state of
// its own: every answer is computed from the credential store plus the
// cached validate entry, so a 401 purge or a direct logout is visible on
// the very next call.
type Facade struct {
	sessions port.SessoesRepository
	creds    port.CredentialStore
	cache    port.QueryCache
	nav      port.Navigator
	logger   *zap.Logger
}

func New(sessions port.SessoesRepository, creds port.CredentialStore, cache port.QueryCache, nav port.Navigator, logger *zap.Logger) *Facade {
	return &Facade{
		sessions: sessions,
		creds:    creds,
		cache:    cache,
		nav:      nav,
		logger:   logger,
	}
}

// Resolve validates the session over the network and reports the outcome.
// Any validation failure, network errors included, lands on
// unauthenticated: an unreachable backend must not let a guard through.
func (f *Facade) Resolve(ctx context.Context) Status {
	if _, err := f.sessions.Validate(ctx); err != nil {
		return StatusUnauthenticated
	}
	return StatusAuthenticated
}

// Status derives the current state without touching the network: no token
// means unauthenticated, a token whose validate read has not resolved yet
// means loading, a cached validate means authenticated.
func (f *Facade) Status() Status {
	if f.creds.Token() == "" {
		return StatusUnauthenticated
	}
	if _, ok := f.cache.Peek(repo.KeySessaoValidar); ok {
		return StatusAuthenticated
	}
	return StatusLoading
}

// Session returns the validated session from the cache, nil unless
// authenticated.
func (f *Facade) Session() *domain.Sessao {
	if f.creds.Token() == "" {
		return nil
	}
	v, ok := f.cache.Peek(repo.KeySessaoValidar)
	if !ok {
		return nil
	}
	sessao, ok := v.(domain.Sessao)
	if !ok {
		return nil
	}
	return &sessao
}

// RequireAuth is the route guard: it resolves the session and redirects to
// the login page when the answer is anything but authenticated.
func (f *Facade) RequireAuth(ctx context.Context) bool {
	if f.Resolve(ctx) == StatusAuthenticated {
		return true
	}
	f.nav.NavigateTo("/login")
	return false
}

// Logout ends the session and navigates to the login page no matter what
// the server answered. The repository clears credentials and cache before
// returning, so the derived state is unauthenticated from here on.
func (f *Facade) Logout(ctx context.Context) {
	if err := f.sessions.Logout(ctx); err != nil {
		f.logger.Warn("logout encerrado com erro remoto", zap.Error(err))
	}
	f.nav.NavigateTo("/login")
}
