package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/poupafin/poupafin-go/internal/domain"
	"github.com/poupafin/poupafin-go/internal/infra/credstore"
	"github.com/poupafin/poupafin-go/internal/infra/observability"
	"github.com/poupafin/poupafin-go/internal/infra/querycache"
	"github.com/poupafin/poupafin-go/internal/infra/resilience"
	"github.com/poupafin/poupafin-go/internal/repo"
)

// fakeSessions mimics the repository's side effects on the shared stores:
// a successful validate lands in the cache, logout wipes credentials and
// cache no matter what the server answered.
type fakeSessions struct {
	creds     *credstore.MemStore
	cache     *querycache.Cache
	sessao    *domain.Sessao
	valErr    error
	logoutErr error
	logouts   int
}

func (f *fakeSessions) Login(context.Context, domain.Login) (*domain.Sessao, error) {
	return f.sessao, nil
}

func (f *fakeSessions) Logout(context.Context) error {
	f.logouts++
	f.creds.Clear()
	f.cache.Clear()
	return f.logoutErr
}

func (f *fakeSessions) Validate(context.Context) (*domain.Sessao, error) {
	if f.creds.Token() == "" {
		return nil, domain.ErrUnauthenticated
	}
	if f.valErr != nil {
		return nil, f.valErr
	}
	f.cache.Set(repo.KeySessaoValidar, *f.sessao, time.Minute)
	return f.sessao, nil
}

type fakeNav struct {
	paths []string
}

func (f *fakeNav) NavigateTo(path string) { f.paths = append(f.paths, path) }

func newFacade(t *testing.T, sessions *fakeSessions, nav *fakeNav) *Facade {
	t.Helper()
	sessions.creds = credstore.NewMemStore()
	sessions.cache = querycache.New(zap.NewNop(), observability.NewMetrics(), resilience.NewBulkhead(1), rate.NewLimiter(0, 0))
	return New(sessions, sessions.creds, sessions.cache, nav, zap.NewNop())
}

func saveToken(t *testing.T, creds *credstore.MemStore) {
	t.Helper()
	if err := creds.Save(domain.Credentials{AuthToken: "T", UserID: 3, SessionID: 7}); err != nil {
		t.Fatal(err)
	}
}

func TestStatusLoadingUntilValidateResolves(t *testing.T) {
	sessions := &fakeSessions{sessao: &domain.Sessao{ID: 7, PessoaID: 3}}
	f := newFacade(t, sessions, &fakeNav{})
	saveToken(t, sessions.creds)

	assert.Equal(t, StatusLoading, f.Status())
	assert.Nil(t, f.Session())
}

func TestStatusUnauthenticatedWithoutToken(t *testing.T) {
	f := newFacade(t, &fakeSessions{}, &fakeNav{})

	assert.Equal(t, StatusUnauthenticated, f.Status())
	assert.Nil(t, f.Session())
}

func TestResolveAuthenticated(t *testing.T) {
	sessao := &domain.Sessao{ID: 7, PessoaID: 3}
	sessions := &fakeSessions{sessao: sessao}
	f := newFacade(t, sessions, &fakeNav{})
	saveToken(t, sessions.creds)

	assert.Equal(t, StatusAuthenticated, f.Resolve(context.Background()))
	assert.Equal(t, StatusAuthenticated, f.Status())
	assert.Equal(t, sessao, f.Session())
}

func TestResolveUnauthenticatedOnError(t *testing.T) {
	for _, err := range []error{domain.ErrUnauthenticated, domain.ErrSessionExpired, errors.New("network down")} {
		sessions := &fakeSessions{valErr: err}
		f := newFacade(t, sessions, &fakeNav{})
		saveToken(t, sessions.creds)

		assert.Equal(t, StatusUnauthenticated, f.Resolve(context.Background()))
		assert.Nil(t, f.Session())
	}
}

func TestStatusSeesCredentialPurgeImmediately(t *testing.T) {
	sessions := &fakeSessions{sessao: &domain.Sessao{ID: 7, PessoaID: 3}}
	f := newFacade(t, sessions, &fakeNav{})
	saveToken(t, sessions.creds)
	f.Resolve(context.Background())
	assert.Equal(t, StatusAuthenticated, f.Status())

	// A 401 on any request purges the store and the session cache. The
	// facade must report that without waiting for another Resolve.
	sessions.creds.Clear()
	sessions.cache.Clear()

	assert.Equal(t, StatusUnauthenticated, f.Status())
	assert.Nil(t, f.Session())
}

func TestRequireAuthRedirects(t *testing.T) {
	nav := &fakeNav{}
	sessions := &fakeSessions{valErr: domain.ErrUnauthenticated}
	f := newFacade(t, sessions, nav)
	saveToken(t, sessions.creds)

	assert.False(t, f.RequireAuth(context.Background()))
	assert.Equal(t, []string{"/login"}, nav.paths)
}

func TestRequireAuthPassesWhenAuthenticated(t *testing.T) {
	nav := &fakeNav{}
	sessions := &fakeSessions{sessao: &domain.Sessao{ID: 1}}
	f := newFacade(t, sessions, nav)
	saveToken(t, sessions.creds)

	assert.True(t, f.RequireAuth(context.Background()))
	assert.Empty(t, nav.paths)
}

func TestLogoutAlwaysNavigates(t *testing.T) {
	nav := &fakeNav{}
	sessions := &fakeSessions{sessao: &domain.Sessao{ID: 1}, logoutErr: errors.New("500")}
	f := newFacade(t, sessions, nav)
	saveToken(t, sessions.creds)
	f.Resolve(context.Background())

	f.Logout(context.Background())

	assert.Equal(t, 1, sessions.logouts)
	assert.Equal(t, []string{"/login"}, nav.paths)
	assert.Equal(t, StatusUnauthenticated, f.Status())
	assert.Nil(t, f.Session())
}
