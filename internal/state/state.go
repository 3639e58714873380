// Package state persists per-entity pagination cursors between
// extraction runs.
package state

import (
	"context"
	"fmt"
	"strconv"
)

// Kind identifies which pagination strategy owns a cursor value.
type Kind string

const (
	// KindOffset cursors hold an integer skip position.
	KindOffset Kind = "offset"
	// KindTimestamp cursors hold an ISO-8601 replication-key value.
	KindTimestamp Kind = "timestamp"
)

// Cursor is the persisted pagination position for one entity, keyed by
// collection name. It is read before a pagination run begins and written
// after each successfully consumed page.
type Cursor struct {
	Kind      Kind   `json:"kind"`
	Offset    int64  `json:"offset,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// OffsetCursor builds an offset cursor.
func OffsetCursor(offset int64) Cursor {
	return Cursor{Kind: KindOffset, Offset: offset}
}

// TimestampCursor builds a replication-key cursor.
func TimestampCursor(ts string) Cursor {
	return Cursor{Kind: KindTimestamp, Timestamp: ts}
}

// Value renders the cursor payload as a string for storage backends that
// keep a single value column.
func (c Cursor) Value() string {
	if c.Kind == KindOffset {
		return strconv.FormatInt(c.Offset, 10)
	}
	return c.Timestamp
}

// parseCursor rebuilds a cursor from its kind and stored string value.
func parseCursor(kind Kind, value string) (Cursor, error) {
	switch kind {
	case KindOffset:
		offset, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return Cursor{}, fmt.Errorf("invalid offset cursor %q: %w", value, err)
		}
		return OffsetCursor(offset), nil
	case KindTimestamp:
		return TimestampCursor(value), nil
	default:
		return Cursor{}, fmt.Errorf("unknown cursor kind %q", kind)
	}
}

// Store is the external cursor storage collaborator.
type Store interface {
	// Get returns the persisted cursor for an entity, reporting whether
	// one exists.
	Get(ctx context.Context, entity string) (Cursor, bool, error)
	// Set persists the cursor for an entity.
	Set(ctx context.Context, entity string, cursor Cursor) error
}
