package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DefaultChangeChannel is the NOTIFY channel written by the table_changes
// trigger installed by the migrations.
const DefaultChangeChannel = "table_changes"

const listenerBuffer = 256

// notification is the JSON document emitted by notify_table_change(). Rows
// larger than the NOTIFY payload limit arrive with Truncated set and only the
// id column in New/Old.
type notification struct {
	Type      EventType `json:"type"`
	Table     string    `json:"table"`
	New       Row       `json:"new"`
	Old       Row       `json:"old"`
	Truncated bool      `json:"truncated"`
}

// Hydrator loads a full row for a truncated notification.
type Hydrator func(ctx context.Context, table string, filter Filter) (Row, error)

// Listener turns Postgres LISTEN/NOTIFY traffic into per-table change-event
// subscriptions. Every subscription owns a dedicated pgx connection, so
// closing one never affects the others.
type Listener struct {
	dsn     string
	channel string
	hydrate Hydrator
	logger  *slog.Logger
}

func NewListener(dsn, channel string, logger *slog.Logger) *Listener {
	if channel == "" {
		channel = DefaultChangeChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{dsn: dsn, channel: channel, logger: logger}
}

// SetHydrator installs the loader used for truncated payloads.
func (l *Listener) SetHydrator(h Hydrator) {
	l.hydrate = h
}

// Subscribe connects, issues LISTEN and starts forwarding events for table.
func (l *Listener) Subscribe(ctx context.Context, table string) (Subscription, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(connectCtx, l.dsn)
	if err != nil {
		return nil, fmt.Errorf("listen connect: %w: %v", ErrUnavailable, err)
	}
	if _, err := conn.Exec(connectCtx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		conn.Close(context.Background())
		return nil, fmt.Errorf("listen %s: %w: %v", l.channel, ErrUnavailable, err)
	}

	runCtx, stop := context.WithCancel(context.Background())
	sub := &pgSubscription{
		id:     uuid.NewString(),
		table:  table,
		events: make(chan ChangeEvent, listenerBuffer),
		stop:   stop,
		done:   make(chan struct{}),
	}
	l.logger.Info("change_feed_subscribed", "table", table, "channel", l.channel, "subscription_id", sub.id)

	go l.run(runCtx, conn, sub)
	return sub, nil
}

func (l *Listener) run(ctx context.Context, conn *pgx.Conn, sub *pgSubscription) {
	defer close(sub.done)
	defer close(sub.events)
	defer conn.Close(context.Background())

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			sub.setErr(fmt.Errorf("wait for notification: %w: %v", ErrUnavailable, err))
			l.logger.Warn("change_feed_disconnected", "table", sub.table, "error", err)
			return
		}

		ev, ok := l.decode(ctx, n.Payload, sub.table)
		if !ok {
			continue
		}
		select {
		case sub.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// decode parses one payload; notifications for other tables are skipped and
// malformed payloads are logged and dropped.
func (l *Listener) decode(ctx context.Context, payload, table string) (ChangeEvent, bool) {
	ev, truncated, err := DecodeNotification([]byte(payload))
	if err != nil {
		l.logger.Warn("change_feed_payload_invalid", "error", err)
		return ChangeEvent{}, false
	}
	if ev.Table != table {
		return ChangeEvent{}, false
	}
	if truncated && ev.Type != EventDelete && l.hydrate != nil {
		id := ev.New["id"]
		row, err := l.hydrate(ctx, table, Filter{"id": id})
		if err != nil || row == nil {
			l.logger.Warn("change_feed_hydrate_failed", "table", table, "id", id, "error", err)
		} else {
			ev.New = row
		}
	}
	return ev, true
}

// DecodeNotification parses a notify_table_change() payload and reports
// whether the row was truncated to its id.
func DecodeNotification(payload []byte) (ChangeEvent, bool, error) {
	var n notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return ChangeEvent{}, false, fmt.Errorf("decode notification: %w", err)
	}
	switch n.Type {
	case EventInsert, EventUpdate, EventDelete:
	default:
		return ChangeEvent{}, false, fmt.Errorf("decode notification: unknown event type %q", n.Type)
	}
	if n.Table == "" {
		return ChangeEvent{}, false, errors.New("decode notification: missing table")
	}
	return ChangeEvent{Type: n.Type, Table: n.Table, New: n.New, Old: n.Old}, n.Truncated, nil
}

type pgSubscription struct {
	id     string
	table  string
	events chan ChangeEvent
	stop   context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

func (s *pgSubscription) ID() string                 { return s.id }
func (s *pgSubscription) Events() <-chan ChangeEvent { return s.events }

func (s *pgSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *pgSubscription) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Close stops the listener goroutine and waits for the connection to close.
func (s *pgSubscription) Close() error {
	s.stop()
	<-s.done
	return nil
}
