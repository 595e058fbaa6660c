package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aiforge/aiforge/internal/registry"
)

// Resolution errors.
var (
	// ErrUnknownProvider indicates the provider id is not in the registry.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrNoCredential indicates neither a stored nor a fallback key exists.
	ErrNoCredential = errors.New("no credential configured")
)

// Resolution is the outcome of a successful credential lookup.
type Resolution struct {
	Key      string // Plaintext API key; never logged.
	FromUser bool   // True when a stored per-user credential was used.
}

// Resolver resolves the effective API key for a (user, provider) pair.
// A stored per-user key always wins over the process-wide fallback.
type Resolver struct {
	store *Store
	reg   *registry.Registry
}

// NewResolver constructs a Resolver.
func NewResolver(store *Store, reg *registry.Registry) *Resolver {
	return &Resolver{store: store, reg: reg}
}

// Resolve returns the effective key for the provider. userID may be nil for
// anonymous callers, in which case only the fallback key is considered.
func (r *Resolver) Resolve(ctx context.Context, userID *uint64, provider string) (Resolution, error) {
	desc, ok := r.reg.Lookup(provider)
	if !ok {
		return Resolution{}, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	if userID != nil {
		key, errGet := r.store.Get(ctx, *userID, desc.ID)
		if errGet == nil && key != "" {
			return Resolution{Key: key, FromUser: true}, nil
		}
		if errGet != nil && !errors.Is(errGet, ErrNotFound) {
			return Resolution{}, errGet
		}
	}

	if desc.EnvKey != "" {
		if key := strings.TrimSpace(os.Getenv(desc.EnvKey)); key != "" {
			return Resolution{Key: key}, nil
		}
	}

	return Resolution{}, fmt.Errorf("%w: provider %s", ErrNoCredential, desc.ID)
}

// Available returns provider ids, in registry order, for which a credential
// currently resolves. With a nil userID only fallback-backed providers appear.
func (r *Resolver) Available(ctx context.Context, userID *uint64) []string {
	var out []string
	for _, id := range r.reg.IDs() {
		if _, err := r.Resolve(ctx, userID, id); err == nil {
			out = append(out, id)
		}
	}
	return out
}
