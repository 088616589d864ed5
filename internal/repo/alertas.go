package repo

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/poupafin/poupafin-go/internal/domain"
	"github.com/poupafin/poupafin-go/internal/infra/api"
	"github.com/poupafin/poupafin-go/internal/infra/querycache"
	"github.com/poupafin/poupafin-go/internal/port"
)

const (
	keyAlertasList   = "alertas/list"
	keyAlertasUnread = "alertas/list/unread"
	keyAlertasAll    = "alertas/list/all"
)

func alertaDetailKey(id int64) string {
	return querycache.Join("alertas", "detail", fmt.Sprintf("%d", id))
}

// Alertas serves the notification bell. The unread list carries a zero
// stale window: every read returns the cached value immediately and
// refreshes in the background, so the badge never goes quiet for long.
type Alertas struct {
	client    *api.Client
	cache     port.QueryCache
	staleTime time.Duration
	logger    *zap.Logger
}

func NewAlertas(client *api.Client, cache port.QueryCache, staleTime time.Duration, logger *zap.Logger) *Alertas {
	return &Alertas{
		client:    client,
		cache:     cache,
		staleTime: staleTime,
		logger:    logger,
	}
}

func (r *Alertas) ListUnread(ctx context.Context) ([]domain.Alerta, error) {
	v, err := r.cache.Fetch(ctx, keyAlertasUnread, 0, r.fetchUnread)
	if err != nil {
		return nil, err
	}
	return v.([]domain.Alerta), nil
}

func (r *Alertas) List(ctx context.Context) ([]domain.Alerta, error) {
	v, err := r.cache.Fetch(ctx, keyAlertasAll, r.staleTime, func(ctx context.Context) (any, error) {
		var alertas []domain.Alerta
		url := api.BuildURL(api.AlertasList(), api.Param{Key: "lida", Value: "all"})
		if err := r.client.Get(ctx, url, &alertas); err != nil {
			return nil, err
		}
		return alertas, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Alerta), nil
}

// Refresh bypasses the stale window and fetches the unread list now,
// seeding the cache with the result. The poller uses it so a tick always
// reflects the server, not a cached copy.
func (r *Alertas) Refresh(ctx context.Context) ([]domain.Alerta, error) {
	v, err := r.fetchUnread(ctx)
	if err != nil {
		return nil, err
	}
	alertas := v.([]domain.Alerta)
	r.cache.Set(keyAlertasUnread, alertas, 0)
	return alertas, nil
}

func (r *Alertas) fetchUnread(ctx context.Context) (any, error) {
	var alertas []domain.Alerta
	if err := r.client.Get(ctx, api.AlertasList(), &alertas); err != nil {
		return nil, err
	}
	return alertas, nil
}

// MarkAsRead flips an alert to read and reconciles both list variants: the
// alert leaves the unread list and is upserted into the general one, so
// the bell badge and the history page agree without waiting for a refetch.
func (r *Alertas) MarkAsRead(ctx context.Context, id int64) (*domain.Alerta, error) {
	ctx, span := tracer.Start(ctx, "alertas.mark_as_read")
	defer span.End()

	if id <= 0 {
		return nil, fmt.Errorf("%w: id de alerta inválido", domain.ErrValidation)
	}

	var updated domain.Alerta
	body := domain.MarkAlertaRead{Lida: true}
	if err := r.client.Patch(ctx, api.AlertaMarkRead(id), body, &updated); err != nil {
		return nil, err
	}

	r.cache.Set(alertaDetailKey(updated.ID), updated, r.staleTime)
	if updated.Lida {
		r.cache.Update(keyAlertasUnread, func(old any) any {
			return filterOut(old, func(a domain.Alerta) bool { return a.ID == updated.ID })
		})
		r.cache.Update(keyAlertasAll, func(old any) any {
			list, ok := old.([]domain.Alerta)
			if !ok {
				return []domain.Alerta{updated}
			}
			for i, a := range list {
				if a.ID == updated.ID {
					out := make([]domain.Alerta, len(list))
					copy(out, list)
					out[i] = updated
					return out
				}
			}
			return append([]domain.Alerta{updated}, list...)
		})
	}
	r.cache.InvalidatePrefix(keyAlertasList)

	r.logger.Info("alerta marcado como lido", zap.Int64("alerta_id", updated.ID))
	return &updated, nil
}

var _ port.AlertasRepository = (*Alertas)(nil)
