package repo

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/poupafin/poupafin-go/internal/domain"
	"github.com/poupafin/poupafin-go/internal/port"
)

// AlertPoller keeps the unread-alert badge live: it refreshes the unread
// list on a fixed interval and hands each result to the callback. The
// limiter caps how often a refresh may actually hit the network, so
// external nudges via Poke cannot hammer the backend.
type AlertPoller struct {
	alertas  *Alertas
	creds    port.CredentialStore
	interval time.Duration
	limiter  *rate.Limiter
	onUpdate func([]domain.Alerta)
	logger   *zap.Logger

	poke chan struct{}
}

func NewAlertPoller(alertas *Alertas, creds port.CredentialStore, interval time.Duration, onUpdate func([]domain.Alerta), logger *zap.Logger) *AlertPoller {
	return &AlertPoller{
		alertas:  alertas,
		creds:    creds,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Every(interval/2), 1),
		onUpdate: onUpdate,
		logger:   logger,
		poke:     make(chan struct{}, 1),
	}
}

// Poke requests an immediate refresh, the equivalent of the dashboard
// regaining focus. It never blocks; a pending poke is enough.
func (p *AlertPoller) Poke() {
	select {
	case p.poke <- struct{}{}:
	default:
	}
}

// Run polls until ctx is cancelled. An unauthenticated session is not an
// error: the poller stays quiet and tries again next tick, picking up
// automatically once a login happens.
func (p *AlertPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		case <-p.poke:
			p.tick(ctx)
		}
	}
}

func (p *AlertPoller) tick(ctx context.Context) {
	if p.creds.Token() == "" {
		return
	}
	if !p.limiter.Allow() {
		return
	}

	alertas, err := p.alertas.Refresh(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthenticated) || errors.Is(err, domain.ErrSessionExpired) {
			return
		}
		p.logger.Warn("falha ao atualizar alertas", zap.Error(err))
		return
	}
	if p.onUpdate != nil {
		p.onUpdate(alertas)
	}
}
