// Package repo implements the cache-aware repositories: one per entity, each
// pairing REST calls with the reconciliation rules that keep the query cache
// coherent after every write. Consumers only ever see the cache through
// these repositories.
package repo

import (
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("repo")

// validate checks write payloads before they reach the network, mirroring
// the form-level guards the dashboard applies.
var validate = validator.New(validator.WithRequiredStructEnabled())

// prepend adds item at the head of a cached list, leaving foreign values
// untouched.
func prepend[T any](old any, item T) any {
	list, ok := old.([]T)
	if !ok {
		return old
	}
	return append([]T{item}, list...)
}

// replaceWhere swaps the matching record in a cached list in place.
func replaceWhere[T any](old any, match func(T) bool, repl T) any {
	list, ok := old.([]T)
	if !ok {
		return old
	}
	out := make([]T, len(list))
	for i, v := range list {
		if match(v) {
			out[i] = repl
		} else {
			out[i] = v
		}
	}
	return out
}

// filterOut drops the matching records from a cached list.
func filterOut[T any](old any, match func(T) bool) any {
	list, ok := old.([]T)
	if !ok {
		return old
	}
	out := make([]T, 0, len(list))
	for _, v := range list {
		if !match(v) {
			out = append(out, v)
		}
	}
	return out
}
