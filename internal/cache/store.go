package cache

import (
	"context"
	"time"

	"github.com/kvachev/fx-rate-service/internal/model"
)

// Entry is the unit of caching: one base currency's complete rate table.
// Entries are overwritten whole on refresh, never merged.
type Entry struct {
	Base      model.Code      `json:"base"`
	Table     model.RateTable `json:"table"`
	FetchedAt time.Time       `json:"fetchedAt"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// Expired reports whether the entry is past its TTL at the given instant.
func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// TableStore persists rate-table entries. Implementations must be safe for
// concurrent readers and writers; expiry is evaluated lazily on read.
type TableStore interface {
	// Get returns the entry for base, or (nil, nil) when absent or expired.
	Get(ctx context.Context, base model.Code) (*Entry, error)

	// Set stores or overwrites the entry for its base currency.
	Set(ctx context.Context, entry Entry) error

	// Health checks whether the store is reachable.
	Health(ctx context.Context) error
}
