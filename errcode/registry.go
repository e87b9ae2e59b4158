package errcode

import (
	"fmt"
	"sync"
)

// Registry guards against error code collisions
type Registry struct {
	mu    sync.Mutex
	codes map[int]string // code -> module:msgKey
}

var globalRegistry = NewRegistry()

// NewRegistry creates an empty code registry
func NewRegistry() *Registry {
	return &Registry{codes: make(map[int]string)}
}

// Register records err in the global registry, panicking on conflict
func Register(err *LayeredError) *LayeredError {
	return globalRegistry.Register(err)
}

// Register panics when code is already taken by a different module:msgKey.
// Registering the same pair twice is a no-op.
func (r *Registry) Register(err *LayeredError) *LayeredError {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := err.Module() + ":" + err.MsgKey()
	if existing, ok := r.codes[err.Code()]; ok && existing != key {
		panic(fmt.Sprintf("error code conflict: code %d is already registered as %s, cannot register as %s",
			err.Code(), existing, key))
	}
	r.codes[err.Code()] = key
	return err
}

// Count number of registered codes
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.codes)
}
