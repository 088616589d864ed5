package repo

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/poupafin/poupafin-go/internal/domain"
	"github.com/poupafin/poupafin-go/internal/infra/api"
	"github.com/poupafin/poupafin-go/internal/port"
)

// KeySessaoValidar is the cache key of the session-validation read. The
// auth facade peeks at this entry to derive its state without issuing a
// second request.
const KeySessaoValidar = "sessoes/validar"

// Sessoes owns the session lifecycle: it is the only writer of the
// credential store, and the only place where logout tears the cache down.
type Sessoes struct {
	client    *api.Client
	cache     port.QueryCache
	creds     port.CredentialStore
	staleTime time.Duration
	logger    *zap.Logger
}

func NewSessoes(client *api.Client, cache port.QueryCache, creds port.CredentialStore, staleTime time.Duration, logger *zap.Logger) *Sessoes {
	return &Sessoes{
		client:    client,
		cache:     cache,
		creds:     creds,
		staleTime: staleTime,
		logger:    logger,
	}
}

// Login authenticates and persists the returned credentials. It writes
// nothing to the query cache: the validate query picks the new session up
// on its next read.
func (r *Sessoes) Login(ctx context.Context, data domain.Login) (*domain.Sessao, error) {
	ctx, span := tracer.Start(ctx, "sessoes.login")
	defer span.End()

	if err := validate.Struct(data); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var sessao domain.Sessao
	if err := r.client.Post(ctx, api.SessoesLogin(), data, &sessao); err != nil {
		return nil, err
	}

	if err := r.creds.Save(domain.Credentials{
		AuthToken: sessao.Token,
		UserID:    sessao.PessoaID,
		SessionID: sessao.ID,
	}); err != nil {
		return nil, fmt.Errorf("salvando credenciais: %w", err)
	}

	r.logger.Info("login realizado", zap.Int64("pessoa_id", sessao.PessoaID))
	return &sessao, nil
}

// Logout tells the server to drop the session, then clears credentials and
// the entire query cache regardless of what the server said. A failed
// DELETE must never leave stale data behind.
func (r *Sessoes) Logout(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "sessoes.logout")
	defer span.End()

	err := r.client.Delete(ctx, api.SessoesLogout(), nil)
	if err != nil {
		r.logger.Warn("logout remoto falhou, limpando estado local mesmo assim", zap.Error(err))
	}

	r.creds.Clear()
	r.cache.Clear()
	return err
}

// Validate resolves the current session. Without a stored token it fails
// fast with ErrUnauthenticated and no request is made.
func (r *Sessoes) Validate(ctx context.Context) (*domain.Sessao, error) {
	if r.creds.Token() == "" {
		return nil, domain.ErrUnauthenticated
	}

	v, err := r.cache.Fetch(ctx, KeySessaoValidar, r.staleTime, func(ctx context.Context) (any, error) {
		var sessao domain.Sessao
		if err := r.client.Get(ctx, api.SessoesValidar(), &sessao); err != nil {
			return nil, err
		}
		return sessao, nil
	})
	if err != nil {
		return nil, err
	}

	sessao := v.(domain.Sessao)
	return &sessao, nil
}

var _ port.SessoesRepository = (*Sessoes)(nil)
