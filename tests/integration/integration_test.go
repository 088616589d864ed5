package integration_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/poupafin/poupafin-go/internal/apitest"
	"github.com/poupafin/poupafin-go/internal/auth"
	"github.com/poupafin/poupafin-go/internal/domain"
	"github.com/poupafin/poupafin-go/internal/infra/api"
	"github.com/poupafin/poupafin-go/internal/infra/credstore"
	"github.com/poupafin/poupafin-go/internal/infra/observability"
	"github.com/poupafin/poupafin-go/internal/infra/querycache"
	"github.com/poupafin/poupafin-go/internal/infra/resilience"
	"github.com/poupafin/poupafin-go/internal/repo"
)

// recordingNavigator captures route changes triggered by the auth contract.
type recordingNavigator struct {
	mu     sync.Mutex
	routes []string
}

func (n *recordingNavigator) NavigateTo(route string) {
	n.mu.Lock()
	n.routes = append(n.routes, route)
	n.mu.Unlock()
}

func (n *recordingNavigator) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.routes) == 0 {
		return ""
	}
	return n.routes[len(n.routes)-1]
}

type stack struct {
	srv     *apitest.Server
	cache   *querycache.Cache
	creds   *credstore.MemStore
	nav     *recordingNavigator
	sessoes *repo.Sessoes
	pessoas *repo.Pessoas
	metas   *repo.Metas
	alertas *repo.Alertas
	contas  *repo.Contas
	auth    *auth.Facade
}

func newStack(t *testing.T) *stack {
	t.Helper()

	logger := zap.NewNop()
	srv := apitest.NewServer(logger)
	t.Cleanup(srv.Close)

	// Zero-rate limiter keeps background refetches off so request counts
	// stay deterministic.
	metrics := observability.NewMetrics()
	cache := querycache.New(logger, metrics, resilience.NewBulkhead(4), rate.NewLimiter(0, 0))
	creds := credstore.NewMemStore()
	nav := &recordingNavigator{}

	client := api.NewClient(&http.Client{Timeout: 5 * time.Second}, srv.URL, creds, logger,
		api.WithUnauthorizedHook(func() {
			nav.NavigateTo("/login")
		}),
	)

	retryCfg := resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond}
	sessoes := repo.NewSessoes(client, cache, creds, 5*time.Minute, logger)

	return &stack{
		srv:     srv,
		cache:   cache,
		creds:   creds,
		nav:     nav,
		sessoes: sessoes,
		pessoas: repo.NewPessoas(client, cache, sessoes, 5*time.Minute, logger),
		metas:   repo.NewMetas(client, cache, 5*time.Minute, 2*time.Minute, logger),
		alertas: repo.NewAlertas(client, cache, 5*time.Minute, logger),
		contas:  repo.NewContas(client, cache, retryCfg, 5*time.Minute, 2*time.Minute, metrics, logger),
		auth:    auth.New(sessoes, creds, cache, nav, logger),
	}
}

// TestFullLifecycle walks the whole sync layer end to end: registration,
// login, goal lifecycle with balance updates, alerts, open-finance reads
// and logout.
func TestFullLifecycle(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	// --- Registration + login ---
	pessoa, err := s.pessoas.Create(ctx, domain.CreatePessoa{
		Email:          "laura@poupafin.com",
		Nome:           "Laura Menezes",
		Senha:          "super-secreta",
		DataNascimento: "1994-07-12",
	})
	require.NoError(t, err)

	sessao, err := s.sessoes.Login(ctx, domain.Login{Email: "laura@poupafin.com", Senha: "super-secreta"})
	require.NoError(t, err)
	assert.Equal(t, pessoa.ID, sessao.PessoaID)
	assert.Equal(t, auth.StatusAuthenticated, s.auth.Resolve(ctx))

	current, err := s.pessoas.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Laura Menezes", current.Nome)

	// --- Goal lifecycle ---
	meta, err := s.metas.Create(ctx, domain.CreateMeta{
		Titulo:    "Reserva de emergência",
		Categoria: domain.CategoriaEmergencia,
		ValorAlvo: decimal.NewFromInt(1000),
		TerminaEm: "2027-12-31",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.MetaEmAndamento, meta.Status)

	meta, err = s.metas.AtualizarSaldo(ctx, meta.ID, domain.AtualizarSaldo{
		Acao:  domain.AcaoAdicionado,
		Valor: decimal.NewFromInt(400),
		Data:  "2026-08-10",
	})
	require.NoError(t, err)
	assert.True(t, meta.ValorAtual.Equal(decimal.NewFromInt(400)))

	meta, err = s.metas.AtualizarSaldo(ctx, meta.ID, domain.AtualizarSaldo{
		Acao:  domain.AcaoAdicionado,
		Valor: decimal.NewFromInt(600),
		Data:  "2026-08-11",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.MetaConcluida, meta.Status)

	movs, err := s.metas.Movimentacoes(ctx, meta.ID)
	require.NoError(t, err)
	assert.Len(t, movs, 2)

	metas, err := s.metas.List(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, domain.MetaConcluida, metas[0].Status)

	// --- Alerts ---
	alerta := s.srv.SeedAlerta(pessoa.ID, "Meta concluída: Reserva de emergência", false)
	unread, err := s.alertas.ListUnread(ctx)
	require.NoError(t, err)
	require.Len(t, unread, 1)

	_, err = s.alertas.MarkAsRead(ctx, alerta.ID)
	require.NoError(t, err)

	unread, err = s.alertas.ListUnread(ctx)
	require.NoError(t, err)
	assert.Empty(t, unread)

	// --- Open finance ---
	accounts, err := s.contas.Accounts(ctx, "item-1")
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	txs, err := s.contas.Transactions(ctx, accounts[0].ID, "2026-08-01", "2026-08-31")
	require.NoError(t, err)
	assert.Len(t, txs, 3)

	// --- Logout ---
	require.NoError(t, s.sessoes.Logout(ctx))
	assert.Empty(t, s.creds.Token())
	assert.Zero(t, s.cache.Size())

	_, err = s.sessoes.Validate(ctx)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

// TestExpiredSessionRedirectsToLogin kills the session server-side and
// checks the 401 contract: credentials wiped, caller redirected.
func TestExpiredSessionRedirectsToLogin(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	s.srv.SeedPessoa("Laura Menezes", "laura@poupafin.com", "super-secreta")
	_, err := s.sessoes.Login(ctx, domain.Login{Email: "laura@poupafin.com", Senha: "super-secreta"})
	require.NoError(t, err)

	s.srv.DropSessions()

	_, err = s.metas.List(ctx)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
	assert.Empty(t, s.creds.Token())
	assert.Equal(t, "/login", s.nav.last())

	// The facade derives its state from the purged store: the 401 is
	// visible before anything resolves the session again.
	assert.Equal(t, auth.StatusUnauthenticated, s.auth.Status())
	assert.Equal(t, auth.StatusUnauthenticated, s.auth.Resolve(ctx))
}

// TestBackendBlipDoesNotLogTheUserOut distinguishes a 5xx from a 401:
// only the latter may clear local credentials.
func TestBackendBlipDoesNotLogTheUserOut(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	s.srv.SeedPessoa("Laura Menezes", "laura@poupafin.com", "super-secreta")
	_, err := s.sessoes.Login(ctx, domain.Login{Email: "laura@poupafin.com", Senha: "super-secreta"})
	require.NoError(t, err)

	s.srv.FailNext("GET /metas", 1)

	_, err = s.metas.List(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrSessionExpired)
	assert.NotEmpty(t, s.creds.Token(), "um 500 não derruba a sessão")

	metas, err := s.metas.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, metas)
}
