package history

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("walk record not found")

// Store keeps the walk history. Records are listed oldest first and Remove
// addresses them by their position in that listing.
type Store interface {
	Append(ctx context.Context, record Record) (Record, error)
	ListAll(ctx context.Context) ([]Record, error)
	Remove(ctx context.Context, index int) error
	Close() error
}
