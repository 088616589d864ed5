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

const keyMetasList = "metas/list"

func metaDetailKey(id int64) string {
	return querycache.Join("metas", "detail", fmt.Sprintf("%d", id))
}

func metasByPessoaKey(pessoaID int64) string {
	return querycache.Join("metas", "pessoa", fmt.Sprintf("%d", pessoaID))
}

func movimentacoesKey(metaID int64) string {
	return querycache.Join("metas", "movimentacoes", fmt.Sprintf("%d", metaID))
}

// Metas reads and mutates savings goals. Every mutation applies the same
// three-step reconciliation: write the authoritative record into the detail
// entry, patch every cached list that holds the record, then invalidate the
// list group so the next read refetches in the background.
type Metas struct {
	client         *api.Client
	cache          port.QueryCache
	staleTime      time.Duration
	movementsStale time.Duration
	logger         *zap.Logger
}

func NewMetas(client *api.Client, cache port.QueryCache, staleTime, movementsStale time.Duration, logger *zap.Logger) *Metas {
	return &Metas{
		client:         client,
		cache:          cache,
		staleTime:      staleTime,
		movementsStale: movementsStale,
		logger:         logger,
	}
}

func (r *Metas) List(ctx context.Context) ([]domain.Meta, error) {
	v, err := r.cache.Fetch(ctx, keyMetasList, r.staleTime, func(ctx context.Context) (any, error) {
		var metas []domain.Meta
		if err := r.client.Get(ctx, api.MetasList(), &metas); err != nil {
			return nil, err
		}
		return metas, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Meta), nil
}

func (r *Metas) Get(ctx context.Context, id int64) (*domain.Meta, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: id de meta inválido", domain.ErrValidation)
	}
	v, err := r.cache.Fetch(ctx, metaDetailKey(id), r.staleTime, func(ctx context.Context) (any, error) {
		var meta domain.Meta
		if err := r.client.Get(ctx, api.MetaByID(id), &meta); err != nil {
			return nil, err
		}
		return meta, nil
	})
	if err != nil {
		return nil, err
	}
	meta := v.(domain.Meta)
	return &meta, nil
}

// ListByPessoa is the parent-scoped variant of List. A non-positive pessoa
// id disables the query instead of issuing a request that can only 404.
func (r *Metas) ListByPessoa(ctx context.Context, pessoaID int64) ([]domain.Meta, error) {
	if pessoaID <= 0 {
		return nil, fmt.Errorf("%w: id de pessoa inválido", domain.ErrValidation)
	}
	v, err := r.cache.Fetch(ctx, metasByPessoaKey(pessoaID), r.staleTime, func(ctx context.Context) (any, error) {
		var metas []domain.Meta
		if err := r.client.Get(ctx, api.MetasByPessoa(pessoaID), &metas); err != nil {
			return nil, err
		}
		return metas, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Meta), nil
}

// Movimentacoes lists the movement ledger of a goal. Movements change more
// often than the goal itself, so they carry their own shorter stale window.
func (r *Metas) Movimentacoes(ctx context.Context, metaID int64) ([]domain.Movimentacao, error) {
	if metaID <= 0 {
		return nil, fmt.Errorf("%w: id de meta inválido", domain.ErrValidation)
	}
	v, err := r.cache.Fetch(ctx, movimentacoesKey(metaID), r.movementsStale, func(ctx context.Context) (any, error) {
		var movs []domain.Movimentacao
		if err := r.client.Get(ctx, api.MetaMovimentacoes(metaID), &movs); err != nil {
			return nil, err
		}
		return movs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Movimentacao), nil
}

// Create posts a new goal and makes it visible immediately: the server
// record is prepended to every cached goal list and seeded as its own
// detail entry, while the list group is marked stale for reconciliation.
func (r *Metas) Create(ctx context.Context, data domain.CreateMeta) (*domain.Meta, error) {
	ctx, span := tracer.Start(ctx, "metas.create")
	defer span.End()

	if err := validate.Struct(data); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var created domain.Meta
	if err := r.client.Post(ctx, api.MetasCreate(), data, &created); err != nil {
		return nil, err
	}

	r.cache.InvalidatePrefix(keyMetasList)
	r.cache.UpdatePrefix(keyMetasList, func(_ string, old any) any {
		return prepend(old, created)
	})
	r.cache.Set(metaDetailKey(created.ID), created, r.staleTime)

	r.logger.Info("meta criada", zap.Int64("meta_id", created.ID))
	return &created, nil
}

// Update patches a goal and overwrites every cached copy with the server's
// version, including the parent-scoped list of the owning pessoa.
func (r *Metas) Update(ctx context.Context, id int64, data domain.UpdateMeta) (*domain.Meta, error) {
	ctx, span := tracer.Start(ctx, "metas.update")
	defer span.End()

	if id <= 0 {
		return nil, fmt.Errorf("%w: id de meta inválido", domain.ErrValidation)
	}

	var updated domain.Meta
	if err := r.client.Patch(ctx, api.MetaByID(id), data, &updated); err != nil {
		return nil, err
	}

	r.reconcileMeta(updated)
	return &updated, nil
}

// Delete removes a goal. The parent-scoped list can only be patched when
// the detail entry was cached before the delete: the server response
// carries no body, so the cached copy is the only source of the owner id.
func (r *Metas) Delete(ctx context.Context, id int64) error {
	ctx, span := tracer.Start(ctx, "metas.delete")
	defer span.End()

	if id <= 0 {
		return fmt.Errorf("%w: id de meta inválido", domain.ErrValidation)
	}

	var owner int64
	if v, ok := r.cache.Peek(metaDetailKey(id)); ok {
		if meta, ok := v.(domain.Meta); ok {
			owner = meta.PessoaID
		}
	}

	if err := r.client.Delete(ctx, api.MetaByID(id), nil); err != nil {
		return err
	}

	r.cache.Remove(metaDetailKey(id))
	r.cache.Remove(movimentacoesKey(id))
	r.cache.UpdatePrefix(keyMetasList, func(_ string, old any) any {
		return filterOut(old, func(m domain.Meta) bool { return m.ID == id })
	})
	r.cache.InvalidatePrefix(keyMetasList)

	if owner > 0 {
		r.cache.Update(metasByPessoaKey(owner), func(old any) any {
			return filterOut(old, func(m domain.Meta) bool { return m.ID == id })
		})
		r.cache.Invalidate(metasByPessoaKey(owner))
	}

	r.logger.Info("meta removida", zap.Int64("meta_id", id))
	return nil
}

// AtualizarSaldo applies a deposit or withdrawal. The returned goal is
// authoritative: the server recomputes valor_atual and the status
// transitions, so the response overwrites the cached copies wholesale and
// the movement ledger is marked stale.
func (r *Metas) AtualizarSaldo(ctx context.Context, id int64, data domain.AtualizarSaldo) (*domain.Meta, error) {
	ctx, span := tracer.Start(ctx, "metas.atualizar_saldo")
	defer span.End()

	if id <= 0 {
		return nil, fmt.Errorf("%w: id de meta inválido", domain.ErrValidation)
	}
	if err := validate.Struct(data); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var updated domain.Meta
	if err := r.client.Post(ctx, api.MetaAtualizarSaldo(id), data, &updated); err != nil {
		return nil, err
	}

	r.reconcileMeta(updated)
	r.cache.Invalidate(movimentacoesKey(id))
	return &updated, nil
}

func (r *Metas) reconcileMeta(updated domain.Meta) {
	r.cache.Set(metaDetailKey(updated.ID), updated, r.staleTime)
	r.cache.UpdatePrefix(keyMetasList, func(_ string, old any) any {
		return replaceWhere(old, func(m domain.Meta) bool { return m.ID == updated.ID }, updated)
	})
	r.cache.InvalidatePrefix(keyMetasList)

	if updated.PessoaID > 0 {
		r.cache.Update(metasByPessoaKey(updated.PessoaID), func(old any) any {
			return replaceWhere(old, func(m domain.Meta) bool { return m.ID == updated.ID }, updated)
		})
		r.cache.Invalidate(metasByPessoaKey(updated.PessoaID))
	}
}

var _ port.MetasRepository = (*Metas)(nil)
