package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"society/internal/backend"
)

const embedSep = "__"

type columnKind int

const (
	kindPlain columnKind = iota
	kindBool
	kindNumeric
	kindDate
	kindJSON
)

// columnKinds lists the columns whose driver representation differs from
// the JSON shape rows are exchanged in.
var columnKinds = map[string]columnKind{
	"is_primary": kindBool,
	"amount":     kindNumeric,
	"area_sqft":  kindNumeric,
	"due_date":   kindDate,
	"paid_date":  kindDate,
	"date":       kindDate,
	"details":    kindJSON,
}

// SQLClient is a backend.Client over database/sql. It speaks sqlite through
// modernc.org/sqlite and postgres through lib/pq.
type SQLClient struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

var _ backend.Client = (*SQLClient)(nil)

// Open connects to dsn, applies migrations and returns a ready client. For
// sqlite dsn is a file path whose directory is created if missing.
func Open(dialect Dialect, dsn string) (*SQLClient, error) {
	if dialect == DialectSQLite {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open(dialect.DriverName(), dialect.DSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return NewSQLClient(db, dialect), nil
}

// NewSQLClient wraps an already open handle without migrating it.
func NewSQLClient(db *sql.DB, dialect Dialect) *SQLClient {
	return &SQLClient{db: db, dialect: dialect, now: time.Now}
}

// SetClock replaces the timestamp source for created_at/updated_at.
func (c *SQLClient) SetClock(now func() time.Time) {
	c.now = now
}

func (c *SQLClient) DB() *sql.DB {
	return c.db
}

func (c *SQLClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *SQLClient) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return toBackendError(err)
	}
	return nil
}

func (c *SQLClient) Select(ctx context.Context, q backend.Query) (json.RawMessage, error) {
	query, args, err := c.buildSelect(q)
	if err != nil {
		return nil, &backend.Error{Status: 400, Code: "PGRST100", Message: err.Error()}
	}
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, toBackendError(err)
	}
	defer rows.Close()

	records, err := c.scan(rows)
	if err != nil {
		return nil, err
	}
	return json.Marshal(records)
}

// Insert writes all rows in one transaction; either every row lands or none.
func (c *SQLClient) Insert(ctx context.Context, table string, rows []backend.Record) (json.RawMessage, error) {
	if !backend.ValidIdent(table) {
		return nil, &backend.Error{Status: 400, Code: "PGRST100", Message: fmt.Sprintf("invalid table %q", table)}
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, toBackendError(err)
	}
	defer tx.Rollback()

	stamp := c.timestamp()
	written := make([]backend.Record, 0, len(rows))
	for _, row := range rows {
		rec := make(backend.Record, len(row)+3)
		for k, v := range row {
			rec[k] = v
		}
		if id, _ := rec["id"].(string); id == "" {
			rec["id"] = uuid.NewString()
		}
		rec["created_at"] = stamp
		rec["updated_at"] = stamp

		cols := sortedKeys(rec)
		placeholders := make([]string, len(cols))
		args := make([]any, len(cols))
		for i, col := range cols {
			if !backend.ValidIdent(col) {
				return nil, &backend.Error{Status: 400, Code: "PGRST204", Message: fmt.Sprintf("invalid column %q", col)}
			}
			placeholders[i] = c.dialect.Placeholder(i + 1)
			args[i] = bindValue(col, rec[col])
		}
		quoted := make([]string, len(cols))
		for i, col := range cols {
			quoted[i] = quote(col)
		}
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
			quote(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))

		res, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, toBackendError(err)
		}
		recs, err := c.scan(res)
		res.Close()
		if err != nil {
			return nil, err
		}
		written = append(written, recs...)
	}

	if err := tx.Commit(); err != nil {
		return nil, toBackendError(err)
	}
	slog.DebugContext(ctx, "Rows inserted", "table", table, "count", len(written))
	return json.Marshal(written)
}

func (c *SQLClient) Update(ctx context.Context, q backend.Query, patch backend.Record) (json.RawMessage, error) {
	if !backend.ValidIdent(q.Table) {
		return nil, &backend.Error{Status: 400, Code: "PGRST100", Message: fmt.Sprintf("invalid table %q", q.Table)}
	}
	set := make(backend.Record, len(patch)+1)
	for k, v := range patch {
		set[k] = v
	}
	set["updated_at"] = c.timestamp()

	var (
		assignments []string
		args        []any
	)
	for _, col := range sortedKeys(set) {
		if !backend.ValidIdent(col) {
			return nil, &backend.Error{Status: 400, Code: "PGRST204", Message: fmt.Sprintf("invalid column %q", col)}
		}
		args = append(args, bindValue(col, set[col]))
		assignments = append(assignments, fmt.Sprintf("%s = %s", quote(col), c.dialect.Placeholder(len(args))))
	}
	where, args, err := c.where(q.Filters, "", args)
	if err != nil {
		return nil, &backend.Error{Status: 400, Code: "PGRST100", Message: err.Error()}
	}
	query := fmt.Sprintf("UPDATE %s SET %s%s RETURNING *", quote(q.Table), strings.Join(assignments, ", "), where)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, toBackendError(err)
	}
	defer rows.Close()

	records, err := c.scan(rows)
	if err != nil {
		return nil, err
	}
	return json.Marshal(records)
}

func (c *SQLClient) Delete(ctx context.Context, q backend.Query) error {
	if !backend.ValidIdent(q.Table) {
		return &backend.Error{Status: 400, Code: "PGRST100", Message: fmt.Sprintf("invalid table %q", q.Table)}
	}
	where, args, err := c.where(q.Filters, "", nil)
	if err != nil {
		return &backend.Error{Status: 400, Code: "PGRST100", Message: err.Error()}
	}
	if _, err := c.db.ExecContext(ctx, "DELETE FROM "+quote(q.Table)+where, args...); err != nil {
		return toBackendError(err)
	}
	return nil
}

func (c *SQLClient) buildSelect(q backend.Query) (string, []any, error) {
	if !backend.ValidIdent(q.Table) {
		return "", nil, fmt.Errorf("invalid table %q", q.Table)
	}
	sel, err := backend.ParseSelection(q.Columns)
	if err != nil {
		return "", nil, err
	}

	const base = "t"
	var cols []string
	if sel.All {
		cols = append(cols, base+".*")
	}
	for _, col := range sel.Columns {
		cols = append(cols, fmt.Sprintf("%s.%s", base, quote(col)))
	}
	var joins []string
	for _, e := range sel.Embeds {
		rel := backend.Relations[e.Table]
		alias := "e_" + e.Table
		joins = append(joins, fmt.Sprintf(" LEFT JOIN %s %s ON %s.%s = %s.%s",
			quote(e.Table), alias, alias, quote("id"), base, quote(rel.ForeignKey)))
		for _, col := range e.Columns {
			if col == "*" {
				return "", nil, fmt.Errorf("embedding %s(*) is not supported", e.Table)
			}
			cols = append(cols, fmt.Sprintf("%s.%s AS %s", alias, quote(col), quote(e.Table+embedSep+col)))
		}
	}
	if len(cols) == 0 {
		cols = append(cols, base+".*")
	}

	where, args, err := c.where(q.Filters, base+".", nil)
	if err != nil {
		return "", nil, err
	}

	var order []string
	for _, o := range q.Orders {
		if !backend.ValidIdent(o.Column) {
			return "", nil, fmt.Errorf("invalid order column %q", o.Column)
		}
		dir := "ASC"
		if !o.Ascending {
			dir = "DESC"
		}
		order = append(order, fmt.Sprintf("%s.%s %s", base, quote(o.Column), dir))
	}

	query := fmt.Sprintf("SELECT %s FROM %s %s%s%s", strings.Join(cols, ", "), quote(q.Table), base, strings.Join(joins, ""), where)
	if len(order) > 0 {
		query += " ORDER BY " + strings.Join(order, ", ")
	}
	if q.Limit > 0 {
		query += " LIMIT " + strconv.Itoa(q.Limit)
	}
	return query, args, nil
}

func (c *SQLClient) where(filters []backend.Filter, prefix string, args []any) (string, []any, error) {
	if len(filters) == 0 {
		return "", args, nil
	}
	conds := make([]string, 0, len(filters))
	for _, f := range filters {
		if !backend.ValidIdent(f.Column) {
			return "", nil, fmt.Errorf("invalid filter column %q", f.Column)
		}
		args = append(args, bindValue(f.Column, f.Value))
		conds = append(conds, fmt.Sprintf("%s%s = %s", prefix, quote(f.Column), c.dialect.Placeholder(len(args))))
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// scan reads every row into a record, folding "rel__col" aliases into a
// nested object. A LEFT JOIN miss yields a nil embed.
func (c *SQLClient) scan(rows *sql.Rows) ([]backend.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, toBackendError(err)
	}
	out := []backend.Record{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, toBackendError(err)
		}
		rec := backend.Record{}
		embeds := map[string]backend.Record{}
		for i, col := range cols {
			if rel, inner, ok := strings.Cut(col, embedSep); ok {
				if embeds[rel] == nil {
					embeds[rel] = backend.Record{}
				}
				embeds[rel][inner] = normalizeValue(inner, vals[i])
				continue
			}
			rec[col] = normalizeValue(col, vals[i])
		}
		for rel, fields := range embeds {
			if allNil(fields) {
				rec[rel] = nil
			} else {
				rec[rel] = fields
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, toBackendError(err)
	}
	return out, nil
}

func (c *SQLClient) timestamp() string {
	return c.now().UTC().Format(time.RFC3339Nano)
}

// normalizeValue converts driver values to the JSON shapes rows are
// exchanged in.
func normalizeValue(col string, v any) any {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch columnKinds[col] {
	case kindBool:
		switch x := v.(type) {
		case int64:
			return x != 0
		case string:
			return x == "1" || x == "t" || x == "true"
		}
	case kindNumeric:
		switch x := v.(type) {
		case int64:
			return float64(x)
		case string:
			if f, err := strconv.ParseFloat(x, 64); err == nil {
				return f
			}
		}
	case kindDate:
		switch x := v.(type) {
		case time.Time:
			return x.Format("2006-01-02")
		case string:
			if len(x) > 10 && x[4] == '-' {
				return x[:10]
			}
		}
	case kindJSON:
		if s, ok := v.(string); ok && json.Valid([]byte(s)) {
			return json.RawMessage(s)
		}
	}
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return v
}

// bindValue prepares a record value for the driver: pointers are
// dereferenced, named types reduced to their base kind and JSON columns sent
// as text.
func bindValue(col string, v any) any {
	if v == nil {
		return nil
	}
	if columnKinds[col] != kindJSON {
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return nil
			}
			rv = rv.Elem()
		}
		switch rv.Kind() {
		case reflect.String:
			return rv.String()
		case reflect.Bool:
			return rv.Bool()
		case reflect.Float32, reflect.Float64:
			return rv.Float()
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return rv.Int()
		}
		return rv.Interface()
	}
	switch x := v.(type) {
	case string:
		return x
	case json.RawMessage:
		return string(x)
	case []byte:
		return string(x)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(b)
}

// toBackendError surfaces driver failures as *backend.Error, keeping the
// SQLSTATE for postgres.
func toBackendError(err error) error {
	if err == nil {
		return nil
	}
	var be *backend.Error
	if errors.As(err, &be) {
		return be
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		status := 400
		switch pqErr.Code.Class() {
		case "23":
			status = 409
		case "08", "53", "57", "58", "XX":
			status = 503
		}
		return &backend.Error{
			Status:  status,
			Code:    string(pqErr.Code),
			Message: pqErr.Message,
			Details: pqErr.Detail,
			Hint:    pqErr.Hint,
		}
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		if code, ok := sqliteConstraints[liteErr.Code()]; ok {
			return &backend.Error{Status: 409, Code: code, Message: liteErr.Error()}
		}
	}
	return &backend.Error{Status: 500, Message: err.Error()}
}

// sqliteConstraints maps extended sqlite result codes to the SQLSTATE the
// postgres backends report for the same violation.
var sqliteConstraints = map[int]string{
	sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY: "23503",
	sqlite3.SQLITE_CONSTRAINT_UNIQUE:     "23505",
	sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY: "23505",
	sqlite3.SQLITE_CONSTRAINT_NOTNULL:    "23502",
	sqlite3.SQLITE_CONSTRAINT_CHECK:      "23514",
	sqlite3.SQLITE_CONSTRAINT:            "23000",
}

func sortedKeys(r backend.Record) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func allNil(r backend.Record) bool {
	for _, v := range r {
		if v != nil {
			return false
		}
	}
	return true
}
