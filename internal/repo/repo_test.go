package repo

import (
	"context"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/poupafin/poupafin-go/internal/apitest"
	"github.com/poupafin/poupafin-go/internal/domain"
	"github.com/poupafin/poupafin-go/internal/infra/api"
	"github.com/poupafin/poupafin-go/internal/infra/credstore"
	"github.com/poupafin/poupafin-go/internal/infra/observability"
	"github.com/poupafin/poupafin-go/internal/infra/querycache"
	"github.com/poupafin/poupafin-go/internal/infra/resilience"
)

// harness wires a fake backend, a fresh cache and a logged-in client the
// way cmd/poupafin does, minus the process-wide singletons.
type harness struct {
	srv    *apitest.Server
	cache  *querycache.Cache
	client *api.Client
	creds  *credstore.MemStore
	pessoa domain.Pessoa
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := zap.NewNop()
	srv := apitest.NewServer(logger)
	t.Cleanup(srv.Close)

	// Zero-rate limiter: background refetches never fire, so request
	// counts observed by the fake backend stay deterministic.
	cache := querycache.New(logger, observability.NewMetrics(), resilience.NewBulkhead(4), rate.NewLimiter(0, 0))
	creds := credstore.NewMemStore()
	client := api.NewClient(http.DefaultClient, srv.URL, creds, logger)

	return &harness{srv: srv, cache: cache, client: client, creds: creds}
}

// login seeds a user and authenticates, leaving credentials in the store.
func (h *harness) login(t *testing.T) {
	t.Helper()

	h.pessoa = h.srv.SeedPessoa("Gabriel Andrade", "gabriel@poupafin.com", "segredo1")
	sessions := NewSessoes(h.client, h.cache, h.creds, 5*time.Minute, zap.NewNop())
	_, err := sessions.Login(context.Background(), domain.Login{
		Email: "gabriel@poupafin.com",
		Senha: "segredo1",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
}

func (h *harness) metas() *Metas {
	return NewMetas(h.client, h.cache, 5*time.Minute, 2*time.Minute, zap.NewNop())
}

func (h *harness) alertas() *Alertas {
	return NewAlertas(h.client, h.cache, 5*time.Minute, zap.NewNop())
}

func (h *harness) pessoas(sessions *Sessoes) *Pessoas {
	return NewPessoas(h.client, h.cache, sessions, 5*time.Minute, zap.NewNop())
}

func (h *harness) sessoes() *Sessoes {
	return NewSessoes(h.client, h.cache, h.creds, 5*time.Minute, zap.NewNop())
}

func (h *harness) contas() *Contas {
	cfg := resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond}
	return NewContas(h.client, h.cache, cfg, 5*time.Minute, 2*time.Minute, observability.NewMetrics(), zap.NewNop())
}
