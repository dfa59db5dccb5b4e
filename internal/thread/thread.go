// Package thread issues and tracks conversation thread identifiers.
//
// Thread IDs are UUIDs minted by the registry. Clients may also present an
// ID the registry has never seen, for example after a server restart wiped
// the registry: any well-formed UUID is adopted and registered, which gives
// reconnecting clients a fresh thread under their old ID rather than an
// error.
package thread

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrInvalidID indicates a thread ID that is not a well-formed UUID.
var ErrInvalidID = errors.New("thread id is not a valid uuid")

// Registry tracks known thread IDs.
//
// The zero value is NOT useful - use NewRegistry() to create instances.
type Registry struct {
	mu     sync.RWMutex
	known  map[string]struct{}
	minted int
}

// NewRegistry creates an empty thread registry.
func NewRegistry() *Registry {
	return &Registry{known: make(map[string]struct{})}
}

// NewThread mints a fresh thread ID and registers it.
func (r *Registry) NewThread() string {
	id := uuid.NewString()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.known[id] = struct{}{}
	r.minted++
	return id
}

// Ensure resolves the thread ID for a turn. An empty ID mints a new thread.
// A well-formed unknown ID is adopted and registered. A malformed ID fails
// with ErrInvalidID.
func (r *Registry) Ensure(id string) (string, error) {
	if id == "" {
		return r.NewThread(), nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", ErrInvalidID
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.known[id] = struct{}{}
	return id, nil
}

// Known reports whether the registry has seen the thread ID.
func (r *Registry) Known(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.known[id]
	return ok
}

// Forget drops the thread ID from the registry. Unknown IDs are a no-op.
func (r *Registry) Forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.known, id)
}

// Count returns the number of currently registered threads.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.known)
}
