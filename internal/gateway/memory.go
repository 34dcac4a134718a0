package gateway

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Op names a gateway operation for failure injection
type Op string

const (
	OpList   Op = "list"
	OpGetOne Op = "get_one"
	OpInsert Op = "insert"
	OpUpsert Op = "upsert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpCount  Op = "count"

	OpSubscribe Op = "subscribe"
)

const memorySubscriptionBuffer = 1024

// Memory is an in-process Gateway. It enforces declared unique keys, stamps
// id/created_at on insert and fans out change events to subscribers in write
// order. It backs the development server and the test suites.
type Memory struct {
	mu       sync.Mutex
	tables   map[string][]Row
	uniques  map[string][][]string
	subs     map[string]*memorySubscription
	failures map[string]error
	closed   bool
	now      func() time.Time
}

// NewMemory creates an empty in-memory gateway with the catalog schema's
// unique keys declared.
func NewMemory() *Memory {
	m := &Memory{
		tables:   make(map[string][]Row),
		uniques:  make(map[string][][]string),
		subs:     make(map[string]*memorySubscription),
		failures: make(map[string]error),
		now:      func() time.Time { return time.Now().UTC() },
	}
	m.DeclareUnique("ratings", "user_id", "title_id")
	m.DeclareUnique("watchlist", "user_id", "title_id")
	m.DeclareUnique("list_items", "list_id", "title_id")
	return m
}

// DeclareUnique adds a uniqueness constraint over columns of table.
func (m *Memory) DeclareUnique(table string, columns ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uniques[table] = append(m.uniques[table], columns)
}

// SetFailure makes every op on table fail with err until cleared with a nil err.
func (m *Memory) SetFailure(op Op, table string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := string(op) + ":" + table
	if err == nil {
		delete(m.failures, key)
		return
	}
	m.failures[key] = err
}

// Seed inserts rows without publishing change events.
func (m *Memory) Seed(table string, rows ...Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		m.tables[table] = append(m.tables[table], m.stamp(copyRow(row)))
	}
}

// Publish delivers a raw event to the table's subscribers without touching
// stored rows. Used to replay partial, duplicated or reordered feed traffic.
func (m *Memory) Publish(ev ChangeEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishLocked(ev)
}

// Disconnect drops every open subscription on table as a network failure would.
func (m *Memory) Disconnect(table string, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sub := range m.subs {
		if sub.table == table {
			delete(m.subs, id)
			sub.terminate(cause)
		}
	}
}

// ActiveSubscriptions reports the number of open subscriptions on table.
func (m *Memory) ActiveSubscriptions(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, sub := range m.subs {
		if sub.table == table {
			n++
		}
	}
	return n
}

// Close terminates all subscriptions; further calls fail with ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for id, sub := range m.subs {
		delete(m.subs, id)
		sub.terminate(nil)
	}
	return nil
}

func (m *Memory) List(ctx context.Context, table string, filter Filter, opts ListOptions) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx, OpList, table); err != nil {
		return nil, err
	}

	out := make([]Row, 0)
	for _, row := range m.tables[table] {
		if matches(row, filter) && notNull(row, opts.NotNull) {
			out = append(out, copyRow(row))
		}
	}
	if len(opts.OrderBy) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range opts.OrderBy {
				c := compareValues(out[i][o.Column], out[j][o.Column])
				if c == 0 {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *Memory) GetOne(ctx context.Context, table string, filter Filter) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx, OpGetOne, table); err != nil {
		return nil, err
	}
	for _, row := range m.tables[table] {
		if matches(row, filter) {
			return copyRow(row), nil
		}
	}
	return nil, nil
}

func (m *Memory) Insert(ctx context.Context, table string, row Row) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx, OpInsert, table); err != nil {
		return nil, err
	}

	stored := m.stamp(copyRow(row))
	if idx := m.conflictIndex(table, stored); idx >= 0 {
		return nil, fmt.Errorf("insert into %s: %w", table, ErrConflict)
	}
	m.tables[table] = append(m.tables[table], stored)
	m.publishLocked(ChangeEvent{Type: EventInsert, Table: table, New: copyRow(stored)})
	return copyRow(stored), nil
}

func (m *Memory) Upsert(ctx context.Context, table string, row Row, conflictKey []string) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx, OpUpsert, table); err != nil {
		return nil, err
	}

	rows := m.tables[table]
	for i, existing := range rows {
		if !sameKey(existing, row, conflictKey) {
			continue
		}
		old := copyRow(existing)
		updated := copyRow(existing)
		for k, v := range row {
			updated[k] = v
		}
		updated["updated_at"] = m.now()
		rows[i] = updated
		m.publishLocked(ChangeEvent{Type: EventUpdate, Table: table, New: copyRow(updated), Old: old})
		return copyRow(updated), nil
	}

	stored := m.stamp(copyRow(row))
	if idx := m.conflictIndex(table, stored); idx >= 0 {
		return nil, fmt.Errorf("upsert into %s: %w", table, ErrConflict)
	}
	m.tables[table] = append(rows, stored)
	m.publishLocked(ChangeEvent{Type: EventInsert, Table: table, New: copyRow(stored)})
	return copyRow(stored), nil
}

func (m *Memory) Update(ctx context.Context, table string, filter Filter, values Row) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx, OpUpdate, table); err != nil {
		return 0, err
	}

	var affected int64
	rows := m.tables[table]
	for i, existing := range rows {
		if !matches(existing, filter) {
			continue
		}
		old := copyRow(existing)
		updated := copyRow(existing)
		for k, v := range values {
			updated[k] = v
		}
		rows[i] = updated
		affected++
		m.publishLocked(ChangeEvent{Type: EventUpdate, Table: table, New: copyRow(updated), Old: old})
	}
	return affected, nil
}

func (m *Memory) Delete(ctx context.Context, table string, filter Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx, OpDelete, table); err != nil {
		return 0, err
	}

	var (
		affected int64
		kept     = m.tables[table][:0]
	)
	for _, row := range m.tables[table] {
		if matches(row, filter) {
			affected++
			m.publishLocked(ChangeEvent{Type: EventDelete, Table: table, Old: copyRow(row)})
			continue
		}
		kept = append(kept, row)
	}
	m.tables[table] = kept

	// list_items reference user_lists with ON DELETE CASCADE
	if table == "user_lists" && affected > 0 {
		m.cascadeListItems()
	}
	return affected, nil
}

func (m *Memory) Count(ctx context.Context, table string, filter Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx, OpCount, table); err != nil {
		return 0, err
	}
	var n int64
	for _, row := range m.tables[table] {
		if matches(row, filter) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Subscribe(ctx context.Context, table string) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx, OpSubscribe, table); err != nil {
		return nil, err
	}
	sub := &memorySubscription{
		id:     uuid.NewString(),
		table:  table,
		events: make(chan ChangeEvent, memorySubscriptionBuffer),
	}
	sub.release = func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.subs[sub.id]; ok {
			delete(m.subs, sub.id)
			sub.terminate(nil)
		}
	}
	m.subs[sub.id] = sub
	return sub, nil
}

func (m *Memory) check(ctx context.Context, op Op, table string) error {
	if m.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err, ok := m.failures[string(op)+":"+table]; ok {
		return fmt.Errorf("%s %s: %w", op, table, err)
	}
	return nil
}

func (m *Memory) stamp(row Row) Row {
	if _, ok := row["id"]; !ok {
		row["id"] = uuid.NewString()
	}
	if _, ok := row["created_at"]; !ok {
		row["created_at"] = m.now()
	}
	return row
}

// conflictIndex returns the index of a stored row that collides with row on
// id or any declared unique key, or -1.
func (m *Memory) conflictIndex(table string, row Row) int {
	keys := append([][]string{{"id"}}, m.uniques[table]...)
	for i, existing := range m.tables[table] {
		for _, key := range keys {
			if sameKey(existing, row, key) {
				return i
			}
		}
	}
	return -1
}

func (m *Memory) cascadeListItems() {
	lists := make(map[string]bool)
	for _, l := range m.tables["user_lists"] {
		lists[fmt.Sprint(l["id"])] = true
	}
	kept := m.tables["list_items"][:0]
	for _, item := range m.tables["list_items"] {
		if lists[fmt.Sprint(item["list_id"])] {
			kept = append(kept, item)
			continue
		}
		m.publishLocked(ChangeEvent{Type: EventDelete, Table: "list_items", Old: copyRow(item)})
	}
	m.tables["list_items"] = kept
}

// publishLocked must be called with m.mu held. A subscriber whose buffer is
// full is disconnected rather than silently losing events.
func (m *Memory) publishLocked(ev ChangeEvent) {
	for id, sub := range m.subs {
		if sub.table != ev.Table {
			continue
		}
		select {
		case sub.events <- ev:
		default:
			delete(m.subs, id)
			sub.terminate(fmt.Errorf("subscription %s: consumer too slow: %w", id, ErrUnavailable))
		}
	}
}

type memorySubscription struct {
	id      string
	table   string
	events  chan ChangeEvent
	release func()

	once sync.Once
	mu   sync.Mutex
	err  error
}

func (s *memorySubscription) ID() string                 { return s.id }
func (s *memorySubscription) Events() <-chan ChangeEvent { return s.events }

func (s *memorySubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *memorySubscription) Close() error {
	s.release()
	return nil
}

func (s *memorySubscription) terminate(cause error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = cause
		s.mu.Unlock()
		close(s.events)
	})
}

func copyRow(row Row) Row {
	out := make(Row, len(row))
	for k, v := range row {
		if ss, ok := v.([]string); ok {
			v = append([]string(nil), ss...)
		}
		out[k] = v
	}
	return out
}

func matches(row Row, filter Filter) bool {
	for col, want := range filter {
		if !looseEqual(row[col], want) {
			return false
		}
	}
	return true
}

func notNull(row Row, cols []string) bool {
	for _, col := range cols {
		if row[col] == nil {
			return false
		}
	}
	return true
}

func sameKey(a, b Row, key []string) bool {
	if len(key) == 0 {
		return false
	}
	for _, col := range key {
		av, aok := a[col]
		bv, bok := b[col]
		if !aok || !bok || av == nil || bv == nil || !looseEqual(av, bv) {
			return false
		}
	}
	return true
}

func looseEqual(a, b any) bool {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Equal(bt)
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// compareValues orders numbers, times and strings. nil sorts after every
// value, matching Postgres' NULLS LAST for ascending order.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Compare(bt)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
