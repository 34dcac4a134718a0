package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const pgUniqueViolation = "23505"

// Postgres implements Gateway over a gorm connection. Reads return rows as
// to_jsonb documents so they have the same shape as change-feed payloads.
type Postgres struct {
	db     *gorm.DB
	feed   *Listener
	logger *slog.Logger
}

// NewPostgres wraps db. feed may be nil, in which case Subscribe fails.
func NewPostgres(db *gorm.DB, feed *Listener, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{db: db, feed: feed, logger: logger}
}

type jsonRow struct {
	Payload []byte `gorm:"column:payload"`
}

func (p *Postgres) List(ctx context.Context, table string, filter Filter, opts ListOptions) ([]Row, error) {
	q := p.selectRows(ctx, table, filter)
	for _, col := range opts.NotNull {
		q = q.Where(clause.Expr{SQL: "? IS NOT NULL", Vars: []any{clause.Column{Name: col}}})
	}
	for _, o := range opts.OrderBy {
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: o.Column}, Desc: o.Desc})
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	var raw []jsonRow
	if err := q.Scan(&raw).Error; err != nil {
		return nil, classify(fmt.Sprintf("list %s", table), err)
	}

	rows := make([]Row, 0, len(raw))
	for _, r := range raw {
		row, err := decodeRow(r.Payload)
		if err != nil {
			p.logger.Warn("row_decode_failed", "table", table, "error", err)
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (p *Postgres) GetOne(ctx context.Context, table string, filter Filter) (Row, error) {
	var raw []jsonRow
	if err := p.selectRows(ctx, table, filter).Limit(1).Scan(&raw).Error; err != nil {
		return nil, classify(fmt.Sprintf("get %s", table), err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	row, err := decodeRow(raw[0].Payload)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", table, err)
	}
	return row, nil
}

func (p *Postgres) Insert(ctx context.Context, table string, row Row) (Row, error) {
	if err := p.db.WithContext(ctx).Table(table).Create(map[string]any(row)).Error; err != nil {
		return nil, classify(fmt.Sprintf("insert into %s", table), err)
	}
	return row, nil
}

func (p *Postgres) Upsert(ctx context.Context, table string, row Row, conflictKey []string) (Row, error) {
	keys := make([]clause.Column, 0, len(conflictKey))
	isKey := make(map[string]bool, len(conflictKey))
	for _, col := range conflictKey {
		keys = append(keys, clause.Column{Name: col})
		isKey[col] = true
	}
	var updates []string
	for col := range row {
		if !isKey[col] {
			updates = append(updates, col)
		}
	}
	sort.Strings(updates)

	onConflict := clause.OnConflict{Columns: keys, DoNothing: len(updates) == 0}
	if len(updates) > 0 {
		onConflict.DoUpdates = clause.AssignmentColumns(updates)
	}

	err := p.db.WithContext(ctx).
		Table(table).
		Clauses(onConflict).
		Create(map[string]any(row)).Error
	if err != nil {
		return nil, classify(fmt.Sprintf("upsert into %s", table), err)
	}

	key := make(Filter, len(conflictKey))
	for _, col := range conflictKey {
		key[col] = row[col]
	}
	stored, err := p.GetOne(ctx, table, key)
	if err != nil || stored == nil {
		return row, nil
	}
	return stored, nil
}

func (p *Postgres) Update(ctx context.Context, table string, filter Filter, values Row) (int64, error) {
	if len(filter) == 0 {
		return 0, fmt.Errorf("update %s: refusing to update without a filter", table)
	}
	res := p.db.WithContext(ctx).
		Table(table).
		Where(map[string]any(filter)).
		Updates(map[string]any(values))
	if res.Error != nil {
		return 0, classify(fmt.Sprintf("update %s", table), res.Error)
	}
	return res.RowsAffected, nil
}

func (p *Postgres) Delete(ctx context.Context, table string, filter Filter) (int64, error) {
	if len(filter) == 0 {
		return 0, fmt.Errorf("delete from %s: refusing to delete without a filter", table)
	}
	sqlText, vars := whereClause(filter)
	res := p.db.WithContext(ctx).
		Exec("DELETE FROM ? WHERE "+sqlText, append([]any{clause.Table{Name: table}}, vars...)...)
	if res.Error != nil {
		return 0, classify(fmt.Sprintf("delete from %s", table), res.Error)
	}
	return res.RowsAffected, nil
}

func (p *Postgres) Count(ctx context.Context, table string, filter Filter) (int64, error) {
	var n int64
	q := p.db.WithContext(ctx).Table(table)
	if len(filter) > 0 {
		q = q.Where(map[string]any(filter))
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, classify(fmt.Sprintf("count %s", table), err)
	}
	return n, nil
}

func (p *Postgres) Subscribe(ctx context.Context, table string) (Subscription, error) {
	if p.feed == nil {
		return nil, fmt.Errorf("subscribe %s: no change feed configured: %w", table, ErrUnavailable)
	}
	return p.feed.Subscribe(ctx, table)
}

func (p *Postgres) selectRows(ctx context.Context, table string, filter Filter) *gorm.DB {
	q := p.db.WithContext(ctx).
		Table(table).
		Select("to_jsonb(?) AS payload", clause.Table{Name: table})
	if len(filter) > 0 {
		q = q.Where(map[string]any(filter))
	}
	return q
}

// whereClause renders filter as "? = ? AND ? = ?" with columns in a stable order
func whereClause(filter Filter) (string, []any) {
	cols := make([]string, 0, len(filter))
	for col := range filter {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	parts := make([]string, 0, len(cols))
	vars := make([]any, 0, len(cols)*2)
	for _, col := range cols {
		parts = append(parts, "? = ?")
		vars = append(vars, clause.Column{Name: col}, filter[col])
	}
	return strings.Join(parts, " AND "), vars
}

func decodeRow(payload []byte) (Row, error) {
	var row Row
	if err := json.Unmarshal(payload, &row); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	return row, nil
}

// classify maps driver errors onto the gateway sentinels.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation:
		return fmt.Errorf("%s: %w: %s", op, ErrConflict, pgErr.ConstraintName)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, sql.ErrConnDone), errors.Is(err, sql.ErrTxDone), pgconn.Timeout(err), isConnError(err):
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isConnError(err error) bool {
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}
