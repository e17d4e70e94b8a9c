package memory

import (
	"context"

	"github.com/ladybuglabs/crystal-go/crystal"
)

// Store is the persistence backend boundary for crystals.
// Implementations: file.Store (one binary record per basin); production
// deployments can back this with a columnar store as long as they read and
// write the record layout in the crystal package.
type Store interface {
	// Save persists one crystal under its basin id, overwriting any
	// previous record for that basin.
	Save(ctx context.Context, basinID uint32, c *crystal.Crystal) error

	// Load reads every persisted crystal.
	Load(ctx context.Context) (map[uint32]*crystal.Crystal, error)

	// Delete removes the record for a basin. Deleting an absent basin is
	// not an error.
	Delete(ctx context.Context, basinID uint32) error

	// Close releases resources.
	Close() error
}
