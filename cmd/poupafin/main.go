package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/poupafin/poupafin-go/internal/auth"
	"github.com/poupafin/poupafin-go/internal/config"
	"github.com/poupafin/poupafin-go/internal/domain"
	"github.com/poupafin/poupafin-go/internal/infra/api"
	"github.com/poupafin/poupafin-go/internal/infra/credstore"
	"github.com/poupafin/poupafin-go/internal/infra/observability"
	"github.com/poupafin/poupafin-go/internal/infra/querycache"
	"github.com/poupafin/poupafin-go/internal/infra/resilience"
	"github.com/poupafin/poupafin-go/internal/openfinance"
	"github.com/poupafin/poupafin-go/internal/repo"
)

const usage = `uso: poupafin <comando> [flags]

comandos:
  login        -email -senha       autentica e grava as credenciais
  logout                           encerra a sessão e limpa o estado local
  status                           mostra o estado da sessão atual
  perfil                           mostra o perfil da pessoa logada
  dashboard                        resumo: perfil, metas e alertas
  metas list                       lista as metas
  metas create -titulo -valor -ate cria uma meta
  metas saldo  -id -acao -valor    adiciona/retira saldo de uma meta
  metas delete -id                 remove uma meta
  alertas      [-all]              lista alertas (não lidos por padrão)
  alertas read -id                 marca um alerta como lido
  alertas watch                    acompanha alertas em tempo real
  contas       -item               lista contas vinculadas de um item
  transacoes   -conta -de -ate     lista transações de uma conta
  connect-token                    emite um token do widget de conexão
`

// termNavigator satisfies the navigation port for a terminal frontend:
// route changes become log lines instead of page loads.
type termNavigator struct {
	logger *zap.Logger
}

func (n *termNavigator) NavigateTo(route string) {
	n.logger.Info("navegação", zap.String("rota", route))
}

type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	sessoes *repo.Sessoes
	pessoas *repo.Pessoas
	metas   *repo.Metas
	alertas *repo.Alertas
	contas  *repo.Contas
	auth    *auth.Facade
	creds   *credstore.FileStore
	metrics *observability.Metrics
}

func main() {
	// --- Load .env file (for local development) ---
	_ = godotenv.Load()

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "poupafin")
	if err != nil {
		logger.Warn("tracer indisponível", zap.Error(err))
	} else {
		defer shutdown(context.Background())
	}

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Credentials ---
	creds, err := credstore.NewFileStore(cfg.CredentialsFile)
	if err != nil {
		logger.Fatal("não foi possível abrir o arquivo de credenciais", zap.Error(err))
	}

	// --- Query cache ---
	cache := querycache.GetOrCreate(func() *querycache.Cache {
		return querycache.New(
			logger,
			metrics,
			resilience.NewBulkhead(cfg.MaxConcurrency),
			rate.NewLimiter(rate.Every(time.Second), cfg.MaxConcurrency),
		)
	})

	// --- HTTP client ---
	nav := &termNavigator{logger: logger}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	client := api.NewClient(httpClient, cfg.APIBaseURL, creds, logger,
		api.WithUnauthorizedHook(func() {
			nav.NavigateTo("/login")
		}),
	)

	// --- Repositories ---
	retryCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	sessoes := repo.NewSessoes(client, cache, creds, cfg.StaleTime, logger)

	a := &app{
		cfg:     cfg,
		logger:  logger,
		sessoes: sessoes,
		pessoas: repo.NewPessoas(client, cache, sessoes, cfg.StaleTime, logger),
		metas:   repo.NewMetas(client, cache, cfg.StaleTime, cfg.MovementsStaleTime, logger),
		alertas: repo.NewAlertas(client, cache, cfg.StaleTime, logger),
		contas:  repo.NewContas(client, cache, retryCfg, cfg.StaleTime, cfg.MovementsStaleTime, metrics, logger),
		auth:    auth.New(sessoes, creds, cache, nav, logger),
		creds:   creds,
		metrics: metrics,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.run(ctx, os.Args[1:]); err != nil {
		logger.Error("comando falhou", zap.Error(err))
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Print(usage)
		return nil
	}

	switch args[0] {
	case "login":
		return a.cmdLogin(ctx, args[1:])
	case "logout":
		a.auth.Logout(ctx)
		fmt.Println("sessão encerrada")
		return nil
	case "status":
		return a.cmdStatus(ctx)
	case "perfil":
		return a.cmdPerfil(ctx)
	case "dashboard":
		return a.cmdDashboard(ctx)
	case "metas":
		return a.cmdMetas(ctx, args[1:])
	case "alertas":
		return a.cmdAlertas(ctx, args[1:])
	case "contas":
		return a.cmdContas(ctx, args[1:])
	case "transacoes":
		return a.cmdTransacoes(ctx, args[1:])
	case "connect-token":
		token, err := a.contas.ConnectToken(ctx)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	default:
		fmt.Print(usage)
		return fmt.Errorf("comando desconhecido: %s", args[0])
	}
}

// ============================================================
// Sessão
// ============================================================

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "email da conta")
	senha := fs.String("senha", "", "senha")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sessao, err := a.sessoes.Login(ctx, domain.Login{Email: *email, Senha: *senha})
	if err != nil {
		return err
	}

	fmt.Printf("autenticado (sessão %d, expira em %s)\n", sessao.ID, sessao.ExpiraEm)
	return nil
}

func (a *app) cmdStatus(ctx context.Context) error {
	status := a.auth.Resolve(ctx)
	fmt.Println("sessão:", status)
	if sessao := a.auth.Session(); sessao != nil {
		fmt.Printf("pessoa %d, expira em %s\n", sessao.PessoaID, sessao.ExpiraEm)
	}
	return nil
}

func (a *app) cmdPerfil(ctx context.Context) error {
	if !a.auth.RequireAuth(ctx) {
		return domain.ErrUnauthenticated
	}

	pessoa, err := a.pessoas.Current(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s <%s>\n", pessoa.Nome, pessoa.Email)
	if pessoa.Cidade != "" {
		fmt.Printf("%s, %s\n", pessoa.Cidade, pessoa.Estado)
	}
	return nil
}

// cmdDashboard fans out the three reads the home screen needs. Each leg
// lands in the cache, so the individual commands that follow are free.
func (a *app) cmdDashboard(ctx context.Context) error {
	if !a.auth.RequireAuth(ctx) {
		return domain.ErrUnauthenticated
	}

	var (
		pessoa  *domain.Pessoa
		metas   []domain.Meta
		alertas []domain.Alerta
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pessoa, err = a.pessoas.Current(gCtx)
		return err
	})
	g.Go(func() error {
		var err error
		metas, err = a.metas.List(gCtx)
		return err
	})
	g.Go(func() error {
		var err error
		alertas, err = a.alertas.ListUnread(gCtx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Printf("olá, %s\n\n", pessoa.Nome)
	fmt.Printf("metas (%d):\n", len(metas))
	for _, m := range metas {
		printMeta(m)
	}
	fmt.Printf("\nalertas não lidos: %d\n", len(alertas))
	for _, al := range alertas {
		fmt.Printf("  [%s] %s\n", al.Data, al.Conteudo)
	}

	snap := a.metrics.GetCacheSnapshot("pessoas", "metas", "alertas", "sessoes")
	a.logger.Debug("cache do dashboard",
		zap.Float64("hits", snap.Hits),
		zap.Float64("misses", snap.Misses),
		zap.Float64("hit_rate", snap.HitRate),
	)
	return nil
}

// ============================================================
// Metas
// ============================================================

func (a *app) cmdMetas(ctx context.Context, args []string) error {
	if !a.auth.RequireAuth(ctx) {
		return domain.ErrUnauthenticated
	}
	if len(args) == 0 {
		args = []string{"list"}
	}

	switch args[0] {
	case "list":
		metas, err := a.metas.List(ctx)
		if err != nil {
			return err
		}
		for _, m := range metas {
			printMeta(m)
		}
		return nil

	case "create":
		fs := flag.NewFlagSet("metas create", flag.ExitOnError)
		titulo := fs.String("titulo", "", "título da meta")
		descricao := fs.String("descricao", "", "descrição")
		categoria := fs.String("categoria", "", "Viagem|Compras|Emergência|Outros")
		valor := fs.String("valor", "", "valor alvo")
		ate := fs.String("ate", "", "data limite (AAAA-MM-DD)")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		alvo, err := decimal.NewFromString(*valor)
		if err != nil {
			return fmt.Errorf("%w: valor alvo inválido", domain.ErrValidation)
		}
		meta, err := a.metas.Create(ctx, domain.CreateMeta{
			Titulo:    *titulo,
			Descricao: *descricao,
			Categoria: domain.MetaCategoria(*categoria),
			ValorAlvo: alvo,
			TerminaEm: *ate,
		})
		if err != nil {
			return err
		}
		fmt.Printf("meta %d criada\n", meta.ID)
		return nil

	case "saldo":
		fs := flag.NewFlagSet("metas saldo", flag.ExitOnError)
		id := fs.Int64("id", 0, "id da meta")
		acao := fs.String("acao", "adicionado", "adicionado|retirado")
		valor := fs.String("valor", "", "valor do movimento")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		v, err := decimal.NewFromString(*valor)
		if err != nil {
			return fmt.Errorf("%w: valor inválido", domain.ErrValidation)
		}
		meta, err := a.metas.AtualizarSaldo(ctx, *id, domain.AtualizarSaldo{
			Acao:  domain.MovimentoAcao(*acao),
			Valor: v,
			Data:  time.Now().Format("2006-01-02"),
		})
		if err != nil {
			return err
		}
		printMeta(*meta)
		return nil

	case "delete":
		fs := flag.NewFlagSet("metas delete", flag.ExitOnError)
		id := fs.Int64("id", 0, "id da meta")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if err := a.metas.Delete(ctx, *id); err != nil {
			return err
		}
		fmt.Printf("meta %d removida\n", *id)
		return nil

	default:
		return fmt.Errorf("subcomando de metas desconhecido: %s", args[0])
	}
}

func printMeta(m domain.Meta) {
	fmt.Printf("  #%d %-30s %s / %s  [%s]\n",
		m.ID, m.Titulo, m.ValorAtual.StringFixed(2), m.ValorAlvo.StringFixed(2), m.Status)
}

// ============================================================
// Alertas
// ============================================================

func (a *app) cmdAlertas(ctx context.Context, args []string) error {
	if !a.auth.RequireAuth(ctx) {
		return domain.ErrUnauthenticated
	}

	if len(args) > 0 && args[0] == "read" {
		fs := flag.NewFlagSet("alertas read", flag.ExitOnError)
		id := fs.Int64("id", 0, "id do alerta")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		alerta, err := a.alertas.MarkAsRead(ctx, *id)
		if err != nil {
			return err
		}
		fmt.Printf("alerta %d marcado como lido\n", alerta.ID)
		return nil
	}

	if len(args) > 0 && args[0] == "watch" {
		return a.watchAlertas(ctx)
	}

	fs := flag.NewFlagSet("alertas", flag.ExitOnError)
	all := fs.Bool("all", false, "inclui alertas já lidos")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		alertas []domain.Alerta
		err     error
	)
	if *all {
		alertas, err = a.alertas.List(ctx)
	} else {
		alertas, err = a.alertas.ListUnread(ctx)
	}
	if err != nil {
		return err
	}
	for _, al := range alertas {
		mark := " "
		if !al.Lida {
			mark = "*"
		}
		fmt.Printf("%s #%d [%s] %s\n", mark, al.ID, al.Data, al.Conteudo)
	}
	return nil
}

// watchAlertas runs the background poller in the foreground until the
// process is interrupted.
func (a *app) watchAlertas(ctx context.Context) error {
	poller := repo.NewAlertPoller(a.alertas, a.creds, a.cfg.AlertsPollInterval, func(alertas []domain.Alerta) {
		for _, al := range alertas {
			fmt.Printf("* #%d [%s] %s\n", al.ID, al.Data, al.Conteudo)
		}
	}, a.logger)

	fmt.Println("acompanhando alertas (ctrl-c para sair)")
	poller.Run(ctx)
	return nil
}

// ============================================================
// Open finance
// ============================================================

func (a *app) cmdContas(ctx context.Context, args []string) error {
	if !a.auth.RequireAuth(ctx) {
		return domain.ErrUnauthenticated
	}

	fs := flag.NewFlagSet("contas", flag.ExitOnError)
	item := fs.String("item", "", "id do item conectado")
	if err := fs.Parse(args); err != nil {
		return err
	}

	accounts, err := a.contas.Accounts(ctx, *item)
	if err != nil {
		return err
	}

	for _, banco := range openfinance.GroupAccountsByBank(accounts) {
		fmt.Printf("%s (%s)\n", banco.Name, banco.Initials)
		for _, conta := range banco.Accounts {
			status := ""
			if conta.Status == domain.AccountInactive {
				status = "  (inativa)"
			}
			fmt.Printf("  %s  %s%s\n", conta.ID, conta.Number, status)
		}
	}
	return nil
}

func (a *app) cmdTransacoes(ctx context.Context, args []string) error {
	if !a.auth.RequireAuth(ctx) {
		return domain.ErrUnauthenticated
	}

	fs := flag.NewFlagSet("transacoes", flag.ExitOnError)
	conta := fs.String("conta", "", "id da conta")
	de := fs.String("de", time.Now().AddDate(0, -1, 0).Format("2006-01-02"), "data inicial")
	ate := fs.String("ate", time.Now().Format("2006-01-02"), "data final")
	if err := fs.Parse(args); err != nil {
		return err
	}

	txs, err := a.contas.Transactions(ctx, *conta, *de, *ate)
	if err != nil {
		return err
	}

	for _, tx := range txs {
		sinal := "+"
		if tx.Tipo == domain.TipoSaida {
			sinal = "-"
		}
		fmt.Printf("%s  %s%9s  %-30s %s (%s)\n",
			tx.Data, sinal, tx.Valor.StringFixed(2), tx.Descricao, tx.Categoria, tx.OrigemPagamento)
	}
	return nil
}
