package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/poupafin/poupafin-go/internal/domain"
	"github.com/poupafin/poupafin-go/internal/infra/api"
	"github.com/poupafin/poupafin-go/internal/infra/querycache"
	"github.com/poupafin/poupafin-go/internal/port"
)

const keyPessoasList = "pessoas/list"

func pessoaDetailKey(id int64) string {
	return querycache.Join("pessoas", "detail", fmt.Sprintf("%d", id))
}

func pessoaByEmailKey(email string) string {
	return querycache.Join("pessoas", "email", email)
}

// Pessoas manages user profiles, including the composed "current profile"
// read that resolves the session first and the profile second.
type Pessoas struct {
	client    *api.Client
	cache     port.QueryCache
	sessions  port.SessoesRepository
	staleTime time.Duration
	logger    *zap.Logger
}

func NewPessoas(client *api.Client, cache port.QueryCache, sessions port.SessoesRepository, staleTime time.Duration, logger *zap.Logger) *Pessoas {
	return &Pessoas{
		client:    client,
		cache:     cache,
		sessions:  sessions,
		staleTime: staleTime,
		logger:    logger,
	}
}

func (r *Pessoas) List(ctx context.Context) ([]domain.Pessoa, error) {
	v, err := r.cache.Fetch(ctx, keyPessoasList, r.staleTime, func(ctx context.Context) (any, error) {
		var pessoas []domain.Pessoa
		if err := r.client.Get(ctx, api.PessoasList(), &pessoas); err != nil {
			return nil, err
		}
		return pessoas, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Pessoa), nil
}

func (r *Pessoas) Get(ctx context.Context, id int64) (*domain.Pessoa, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: id de pessoa inválido", domain.ErrValidation)
	}
	v, err := r.cache.Fetch(ctx, pessoaDetailKey(id), r.staleTime, func(ctx context.Context) (any, error) {
		var pessoa domain.Pessoa
		if err := r.client.Get(ctx, api.PessoaByID(id), &pessoa); err != nil {
			return nil, err
		}
		return pessoa, nil
	})
	if err != nil {
		return nil, err
	}
	pessoa := v.(domain.Pessoa)
	return &pessoa, nil
}

// GetByEmail only fires once the input looks like an address. Partial text
// from the lookup form must not reach the network.
func (r *Pessoas) GetByEmail(ctx context.Context, email string) (*domain.Pessoa, error) {
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email inválido", domain.ErrValidation)
	}
	v, err := r.cache.Fetch(ctx, pessoaByEmailKey(email), r.staleTime, func(ctx context.Context) (any, error) {
		var pessoa domain.Pessoa
		if err := r.client.Get(ctx, api.PessoaByEmail(email), &pessoa); err != nil {
			return nil, err
		}
		return pessoa, nil
	})
	if err != nil {
		return nil, err
	}
	pessoa := v.(domain.Pessoa)
	return &pessoa, nil
}

// Current resolves the logged-in profile: session first, then the profile
// it points at. Both legs go through the cache, so repeated calls within
// the stale window cost nothing.
func (r *Pessoas) Current(ctx context.Context) (*domain.Pessoa, error) {
	sessao, err := r.sessions.Validate(ctx)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, sessao.PessoaID)
}

func (r *Pessoas) Create(ctx context.Context, data domain.CreatePessoa) (*domain.Pessoa, error) {
	ctx, span := tracer.Start(ctx, "pessoas.create")
	defer span.End()

	if err := validate.Struct(data); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var created domain.Pessoa
	if err := r.client.Post(ctx, api.PessoasCreate(), data, &created); err != nil {
		return nil, err
	}

	r.cache.InvalidatePrefix(keyPessoasList)
	r.cache.UpdatePrefix(keyPessoasList, func(_ string, old any) any {
		return prepend(old, created)
	})
	r.cache.Set(pessoaDetailKey(created.ID), created, r.staleTime)

	r.logger.Info("pessoa criada", zap.Int64("pessoa_id", created.ID))
	return &created, nil
}

// Update overwrites the cached profile with the server's version. The
// email lookup entry is invalidated rather than patched: the address may
// have changed, and the old key must not keep serving the record.
func (r *Pessoas) Update(ctx context.Context, id int64, data domain.UpdatePessoa) (*domain.Pessoa, error) {
	ctx, span := tracer.Start(ctx, "pessoas.update")
	defer span.End()

	if id <= 0 {
		return nil, fmt.Errorf("%w: id de pessoa inválido", domain.ErrValidation)
	}

	var updated domain.Pessoa
	if err := r.client.Patch(ctx, api.PessoaByID(id), data, &updated); err != nil {
		return nil, err
	}

	r.cache.Set(pessoaDetailKey(updated.ID), updated, r.staleTime)
	r.cache.UpdatePrefix(keyPessoasList, func(_ string, old any) any {
		return replaceWhere(old, func(p domain.Pessoa) bool { return p.ID == updated.ID }, updated)
	})
	r.cache.InvalidatePrefix(keyPessoasList)
	r.cache.InvalidatePrefix("pessoas/email")

	return &updated, nil
}

func (r *Pessoas) Delete(ctx context.Context, id int64) error {
	ctx, span := tracer.Start(ctx, "pessoas.delete")
	defer span.End()

	if id <= 0 {
		return fmt.Errorf("%w: id de pessoa inválido", domain.ErrValidation)
	}

	if err := r.client.Delete(ctx, api.PessoaByID(id), nil); err != nil {
		return err
	}

	r.cache.Remove(pessoaDetailKey(id))
	r.cache.UpdatePrefix(keyPessoasList, func(_ string, old any) any {
		return filterOut(old, func(p domain.Pessoa) bool { return p.ID == id })
	})
	r.cache.InvalidatePrefix(keyPessoasList)
	r.cache.RemovePrefix("pessoas/email")

	r.logger.Info("pessoa removida", zap.Int64("pessoa_id", id))
	return nil
}

var _ port.PessoasRepository = (*Pessoas)(nil)
