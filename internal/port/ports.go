// Package port defines the interfaces (ports) for the sync layer.
// Following hexagonal architecture, these ports decouple consumers (the CLI,
// the auth facade) from the concrete cache-aware repositories, and the
// repositories from the credential store and navigation side effects.
package port

import (
	"context"
	"time"

	"github.com/poupafin/poupafin-go/internal/domain"
)

// CredentialStore holds the persisted auth values. It is read by the HTTP
// client on every request and written only by login, logout and the 401 path.
type CredentialStore interface {
	Token() string
	UserID() int64
	SessionID() int64
	Save(creds domain.Credentials) error
	Clear()
}

// Navigator receives the client-side navigation side effects of the auth
// contract: "/login" on 401 or failed auth, "/home" after login.
type Navigator interface {
	NavigateTo(route string)
}

// QueryCache is the stale-aware hierarchical cache behind every read hook.
type QueryCache interface {
	// Fetch returns the cached value for key when present, triggering a
	// background refetch if the entry is stale; on a miss it calls fn
	// synchronously, deduplicated so at most one fetch per key is in flight.
	Fetch(ctx context.Context, key string, staleAfter time.Duration, fn func(ctx context.Context) (any, error)) (any, error)
	// Peek returns the cached value regardless of staleness, without fetching.
	Peek(key string) (any, bool)
	Set(key string, value any, staleAfter time.Duration)
	// Update rewrites the cached value in place when the key is present.
	Update(key string, fn func(old any) any) bool
	// UpdatePrefix rewrites every cached entry under prefix.
	UpdatePrefix(prefix string, fn func(key string, old any) any)
	Remove(key string)
	RemovePrefix(prefix string)
	// Invalidate marks entries stale without discarding their data.
	Invalidate(key string)
	InvalidatePrefix(prefix string)
	Clear()
}

// PessoasRepository reads and writes identity records.
type PessoasRepository interface {
	List(ctx context.Context) ([]domain.Pessoa, error)
	Get(ctx context.Context, id int64) (*domain.Pessoa, error)
	GetByEmail(ctx context.Context, email string) (*domain.Pessoa, error)
	// Current chains session validation into the person-detail read.
	Current(ctx context.Context) (*domain.Pessoa, error)
	Create(ctx context.Context, data domain.CreatePessoa) (*domain.Pessoa, error)
	Update(ctx context.Context, id int64, data domain.UpdatePessoa) (*domain.Pessoa, error)
	Delete(ctx context.Context, id int64) error
}

// MetasRepository reads and writes savings goals and their ledger.
type MetasRepository interface {
	List(ctx context.Context) ([]domain.Meta, error)
	Get(ctx context.Context, id int64) (*domain.Meta, error)
	ListByPessoa(ctx context.Context, pessoaID int64) ([]domain.Meta, error)
	Movimentacoes(ctx context.Context, metaID int64) ([]domain.Movimentacao, error)
	Create(ctx context.Context, data domain.CreateMeta) (*domain.Meta, error)
	Update(ctx context.Context, id int64, data domain.UpdateMeta) (*domain.Meta, error)
	Delete(ctx context.Context, id int64) error
	AtualizarSaldo(ctx context.Context, id int64, data domain.AtualizarSaldo) (*domain.Meta, error)
}

// AlertasRepository reads notifications and acknowledges them.
type AlertasRepository interface {
	// ListUnread is the default read: the backend filters to unread alerts.
	ListUnread(ctx context.Context) ([]domain.Alerta, error)
	List(ctx context.Context) ([]domain.Alerta, error)
	MarkAsRead(ctx context.Context, id int64) (*domain.Alerta, error)
}

// SessoesRepository manages the authentication session.
type SessoesRepository interface {
	Login(ctx context.Context, creds domain.Login) (*domain.Sessao, error)
	Logout(ctx context.Context) error
	Validate(ctx context.Context) (*domain.Sessao, error)
}

// ContasRepository reads linked accounts and their transactions from the
// open-finance proxy.
type ContasRepository interface {
	ConnectToken(ctx context.Context) (string, error)
	Accounts(ctx context.Context, itemID string) ([]domain.ExternalAccount, error)
	Transactions(ctx context.Context, accountID, fromDate, toDate string) ([]domain.Transacao, error)
}
