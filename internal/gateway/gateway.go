// Package gateway is the client-side view of the hosted table store: filtered
// reads, single-row writes and a per-table change-event stream.
package gateway

import (
	"context"
	"errors"
)

var (
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("unique constraint violation")
	// ErrNotFound is returned when an update matched no row.
	ErrNotFound = errors.New("row not found")
	// ErrUnavailable marks transient failures; callers may retry.
	ErrUnavailable = errors.New("gateway unavailable")
	// ErrClosed is returned by operations on a closed gateway or subscription.
	ErrClosed = errors.New("gateway closed")
)

// Row is a raw record keyed by column name
type Row = map[string]any

// Filter is a set of column = value conditions joined with AND
type Filter map[string]any

// Order is one ORDER BY term
type Order struct {
	Column string
	Desc   bool
}

type ListOptions struct {
	OrderBy []Order
	Limit   int      // 0 means no limit
	NotNull []string // columns that must not be null
}

// EventType is the kind of row-level change
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// ChangeEvent is one row-level notification. New is set for inserts and
// updates, Old for deletes (and for updates when the source provides it).
// New may carry only the changed columns.
type ChangeEvent struct {
	Type  EventType `json:"type"`
	Table string    `json:"table"`
	New   Row       `json:"new,omitempty"`
	Old   Row       `json:"old,omitempty"`
}

// Subscription is an open change-event stream for one table. The Events
// channel is closed when the stream ends, either through Close or because the
// connection dropped; Err reports the cause of the latter.
type Subscription interface {
	ID() string
	Events() <-chan ChangeEvent
	Err() error
	Close() error
}

// Gateway is the command/query interface over the hosted table store.
type Gateway interface {
	List(ctx context.Context, table string, filter Filter, opts ListOptions) ([]Row, error)
	// GetOne returns nil, nil when no row matches.
	GetOne(ctx context.Context, table string, filter Filter) (Row, error)
	Insert(ctx context.Context, table string, row Row) (Row, error)
	Upsert(ctx context.Context, table string, row Row, conflictKey []string) (Row, error)
	Update(ctx context.Context, table string, filter Filter, values Row) (int64, error)
	Delete(ctx context.Context, table string, filter Filter) (int64, error)
	Count(ctx context.Context, table string, filter Filter) (int64, error)
	Subscribe(ctx context.Context, table string) (Subscription, error)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}
