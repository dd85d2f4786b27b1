package sensors

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/richd0tcom/senser/internal/domain"
)

// Bootstrap provisions the search index mapping and the wide-column
// keyspace before the first sensor is written. Provisioning is idempotent
// on the store side (IF NOT EXISTS semantics) and serialized behind a
// mutex, so concurrent first creations converge on a single provisioning
// pass. A failed pass is retried by the next caller.
type Bootstrap struct {
	search domain.SearchStore
	wide   domain.WideColumnStore

	mu   sync.Mutex
	done bool
}

func NewBootstrap(search domain.SearchStore, wide domain.WideColumnStore) *Bootstrap {
	return &Bootstrap{search: search, wide: wide}
}

func (b *Bootstrap) EnsureProvisioned(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		return nil
	}

	if err := b.search.EnsureIndex(ctx); err != nil {
		return errors.Wrap(err, "provisioning search index")
	}
	if err := b.wide.EnsureSchema(ctx); err != nil {
		return errors.Wrap(err, "provisioning wide-column schema")
	}

	b.done = true
	return nil
}
