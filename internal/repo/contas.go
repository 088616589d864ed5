package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/poupafin/poupafin-go/internal/domain"
	"github.com/poupafin/poupafin-go/internal/infra/api"
	"github.com/poupafin/poupafin-go/internal/infra/observability"
	"github.com/poupafin/poupafin-go/internal/infra/querycache"
	"github.com/poupafin/poupafin-go/internal/infra/resilience"
	"github.com/poupafin/poupafin-go/internal/openfinance"
	"github.com/poupafin/poupafin-go/internal/port"
)

func accountsKey(itemID string) string {
	return querycache.Join("contas", "accounts", itemID)
}

func transactionsKey(accountID, from, to string) string {
	return querycache.Join("movimentacoes", "list", accountID, from, to)
}

// Contas proxies the open-finance aggregator. The provider sits outside
// the first-party backend, so unlike the rest of the repositories these
// calls go through the circuit breaker and retry with backoff.
type Contas struct {
	client            *api.Client
	cache             port.QueryCache
	breaker           *gobreaker.CircuitBreaker
	retry             resilience.Config
	staleTime         time.Duration
	transactionsStale time.Duration
	metrics           *observability.Metrics
	logger            *zap.Logger
}

func NewContas(client *api.Client, cache port.QueryCache, retry resilience.Config, staleTime, transactionsStale time.Duration, metrics *observability.Metrics, logger *zap.Logger) *Contas {
	return &Contas{
		client:            client,
		cache:             cache,
		breaker:           resilience.NewCircuitBreaker("openfinance"),
		retry:             retry,
		staleTime:         staleTime,
		transactionsStale: transactionsStale,
		metrics:           metrics,
		logger:            logger,
	}
}

// ConnectToken mints a fresh widget token. Tokens are single-use, so this
// never touches the cache.
func (r *Contas) ConnectToken(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "contas.connect_token")
	defer span.End()

	var token domain.ConnectToken
	err := r.execute(ctx, "contas.connect_token", func() error {
		return r.client.Post(ctx, api.OpenFinanceConnectToken(), nil, &token)
	})
	if err != nil {
		return "", err
	}
	return token.ConnectToken, nil
}

// Accounts lists the linked accounts of a connected item. Platinum card
// shadow accounts are an artifact of the provider and are filtered out
// before anything downstream sees them.
func (r *Contas) Accounts(ctx context.Context, itemID string) ([]domain.ExternalAccount, error) {
	if itemID == "" {
		return nil, fmt.Errorf("%w: item id vazio", domain.ErrValidation)
	}

	v, err := r.cache.Fetch(ctx, accountsKey(itemID), r.staleTime, func(ctx context.Context) (any, error) {
		var accounts []domain.ExternalAccount
		err := r.execute(ctx, "contas.accounts", func() error {
			return r.client.Get(ctx, api.OpenFinanceAccounts(itemID), &accounts)
		})
		if err != nil {
			return nil, err
		}

		out := make([]domain.ExternalAccount, 0, len(accounts))
		for _, a := range accounts {
			if strings.Contains(strings.ToLower(a.Name), "platinum") {
				continue
			}
			out = append(out, a)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.ExternalAccount), nil
}

// Transactions lists the transactions of one account in the given date
// window, already mapped to the dashboard shape.
func (r *Contas) Transactions(ctx context.Context, accountID, fromDate, toDate string) ([]domain.Transacao, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: account id vazio", domain.ErrValidation)
	}

	key := transactionsKey(accountID, fromDate, toDate)
	v, err := r.cache.Fetch(ctx, key, r.transactionsStale, func(ctx context.Context) (any, error) {
		url := api.BuildURL(api.OpenFinanceTransactions(accountID),
			api.Param{Key: "from_date", Value: fromDate},
			api.Param{Key: "to_date", Value: toDate},
		)

		var raw []domain.ExternalTransaction
		err := r.execute(ctx, "contas.transactions", func() error {
			return r.client.Get(ctx, url, &raw)
		})
		if err != nil {
			return nil, err
		}
		return openfinance.MapTransactions(raw), nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Transacao), nil
}

// execute wraps a provider call in the breaker and retry policy. Breaker
// rejections surface as ErrExternalService so callers can tell a tripped
// circuit apart from a backend failure.
func (r *Contas) execute(ctx context.Context, op string, fn func() error) error {
	start := time.Now()
	_, err := r.breaker.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, r.retry, fn)
	})
	r.metrics.RecordRequestDuration(op, time.Since(start))
	if err != nil {
		r.metrics.IncrExternalError("openfinance")
	}
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		r.logger.Warn("circuito open-finance aberto", zap.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrExternalService, err)
	}
	return err
}

var _ port.ContasRepository = (*Contas)(nil)
