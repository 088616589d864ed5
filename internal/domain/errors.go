package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy of the sync layer. Callers branch with errors.Is/errors.As;
// repositories wrap the sentinels with %w and context.

// ErrValidation marks bad input. Reads with a failing enablement guard
// return it without touching the network.
var ErrValidation = errors.New("dados inválidos")

// ErrUnauthenticated means no stored credentials exist. Unlike
// ErrSessionExpired, nothing was purged: there was nothing to purge.
var ErrUnauthenticated = errors.New("não autenticado")

// ErrExternalService wraps failures of the open-finance provider,
// including circuit-breaker rejections.
var ErrExternalService = errors.New("serviço externo indisponível")

// ErrSessionExpired is returned after a 401: local credentials were purged
// and the consumer was sent to login. Never retried.
var ErrSessionExpired = errors.New("sessão expirada, faça login novamente")

// ErrNotFound indicates the backend has no record at the requested endpoint.
type ErrNotFound struct {
	Resource string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("recurso não encontrado: %s", e.Resource)
}

// ErrAPIStatus carries a non-2xx backend response and the message extracted
// from its JSON error body (or the status text).
type ErrAPIStatus struct {
	Status  int
	Message string
}

func (e *ErrAPIStatus) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api retornou status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api retornou status %d", e.Status)
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operação excedeu o tempo limite: %s", e.Operation)
}
