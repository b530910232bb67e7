package ledger

import (
	"context"
	"sync"
)

// Reservations serializes check-then-download for a key across workers. A
// reservation is held in memory only: a crash mid-download leaves no ledger
// row, so the next run retries the key.
type Reservations struct {
	store    *Store
	mu       sync.Mutex
	inflight map[string]bool
}

// NewReservations creates a reservation table over the given store.
func NewReservations(store *Store) *Reservations {
	return &Reservations{
		store:    store,
		inflight: make(map[string]bool),
	}
}

// Acquire atomically checks the ledger and reserves key. It returns false if
// the key is already recorded or currently held by another worker.
func (r *Reservations) Acquire(ctx context.Context, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inflight[key] {
		return false, nil
	}

	done, err := r.store.Has(ctx, key)
	if err != nil {
		return false, err
	}
	if done {
		return false, nil
	}

	r.inflight[key] = true
	return true, nil
}

// Commit records key in the ledger and releases the reservation. Call only
// after the downloaded bytes are durably written.
func (r *Reservations) Commit(ctx context.Context, key, kind string) error {
	if err := r.store.Record(ctx, key, kind); err != nil {
		return err
	}
	r.Release(key)
	return nil
}

// Release rolls a reservation back without recording the key.
func (r *Reservations) Release(key string) {
	r.mu.Lock()
	delete(r.inflight, key)
	r.mu.Unlock()
}
