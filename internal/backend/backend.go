// Package backend defines the table-scoped query builder the mapping layer
// talks to, and the Client contract every data backend implements.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Record is a single row as a column → value map. Values are JSON-compatible.
type Record map[string]any

// Filter is an equality predicate on a column.
type Filter struct {
	Column string
	Value  any
}

// Order is one ORDER BY term.
type Order struct {
	Column    string
	Ascending bool
}

// Query describes a table-scoped operation.
type Query struct {
	Table   string
	Columns string
	Filters []Filter
	Orders  []Order
	// Limit caps the rows a select returns; zero means no cap.
	Limit int
}

// Client executes queries against a concrete backend. Every method returning
// rows returns a JSON array; an empty result is "[]", never null.
type Client interface {
	Select(ctx context.Context, q Query) (json.RawMessage, error)
	Insert(ctx context.Context, table string, rows []Record) (json.RawMessage, error)
	Update(ctx context.Context, q Query, patch Record) (json.RawMessage, error)
	Delete(ctx context.Context, q Query) error
	Ping(ctx context.Context) error
	Close() error
}

// Error is a failure reported by a backend.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

var (
	// ErrNoRows is returned by a single-row read that matched nothing.
	ErrNoRows = &Error{Status: 406, Code: "PGRST116", Message: "JSON object requested, no rows returned"}
	// ErrMultipleRows is returned by a single-row read that matched more than one row.
	ErrMultipleRows = &Error{Status: 406, Code: "PGRST116", Message: "JSON object requested, multiple rows returned"}
	ErrEmptyInsert  = errors.New("insert requires at least one row")
	ErrUnfiltered   = errors.New("update and delete require a filter")
)

// Constraint codes shared by every backend.
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeNotNullViolation    = "23502"
)

// CodeOf returns the backend error code carried by err, or "".
func CodeOf(err error) string {
	var be *Error
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// IsNoRows reports whether err is the single-row read that matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, ErrNoRows)
}

func IsUniqueViolation(err error) bool {
	return CodeOf(err) == CodeUniqueViolation
}

// Builder accumulates a query fluently:
//
//	backend.From(c, "houses").Select("id").Eq("house_number", "A-101").Single().One(ctx, &row)
type Builder struct {
	client Client
	query  Query
	single bool
}

// From starts a query on table.
func From(c Client, table string) *Builder {
	return &Builder{client: c, query: Query{Table: table, Columns: "*"}}
}

// Select sets the projection. Besides plain columns it accepts "*" and
// one-level embeds such as "*, houses(house_number)".
func (b *Builder) Select(columns string) *Builder {
	b.query.Columns = columns
	return b
}

func (b *Builder) Eq(column string, value any) *Builder {
	b.query.Filters = append(b.query.Filters, Filter{Column: column, Value: value})
	return b
}

func (b *Builder) Order(column string, ascending bool) *Builder {
	b.query.Orders = append(b.query.Orders, Order{Column: column, Ascending: ascending})
	return b
}

func (b *Builder) Limit(n int) *Builder {
	b.query.Limit = n
	return b
}

// Single makes One require exactly one matching row.
func (b *Builder) Single() *Builder {
	b.single = true
	return b
}

// Query returns the accumulated query.
func (b *Builder) Query() Query {
	return b.query
}

// Rows runs the select and decodes the array into dst (a pointer to slice).
func (b *Builder) Rows(ctx context.Context, dst any) error {
	raw, err := b.client.Select(ctx, b.query)
	if err != nil {
		return err
	}
	return decode(raw, dst)
}

// One runs the select and decodes the first row into dst. With Single set,
// zero rows yield ErrNoRows and several rows ErrMultipleRows.
func (b *Builder) One(ctx context.Context, dst any) error {
	raw, err := b.client.Select(ctx, b.query)
	if err != nil {
		return err
	}
	return decodeOne(raw, dst, b.single)
}

// Insert writes rows and decodes the written rows into dst when it is not
// nil. A *T destination receives the single written row.
func (b *Builder) Insert(ctx context.Context, rows []Record, dst any) error {
	if len(rows) == 0 {
		return ErrEmptyInsert
	}
	raw, err := b.client.Insert(ctx, b.query.Table, rows)
	if err != nil {
		return err
	}
	return decodeWritten(raw, dst, b.single)
}

// Update applies patch to the filtered rows and decodes them into dst.
func (b *Builder) Update(ctx context.Context, patch Record, dst any) error {
	if len(b.query.Filters) == 0 {
		return ErrUnfiltered
	}
	raw, err := b.client.Update(ctx, b.query, patch)
	if err != nil {
		return err
	}
	return decodeWritten(raw, dst, b.single)
}

// Delete removes the filtered rows. Matching nothing is not an error.
func (b *Builder) Delete(ctx context.Context) error {
	if len(b.query.Filters) == 0 {
		return ErrUnfiltered
	}
	return b.client.Delete(ctx, b.query)
}

func decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("[]")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode rows: %w", err)
	}
	return nil
}

func decodeOne(raw json.RawMessage, dst any, single bool) error {
	var rows []json.RawMessage
	if err := decode(raw, &rows); err != nil {
		return err
	}
	switch {
	case len(rows) == 0:
		return ErrNoRows
	case single && len(rows) > 1:
		return ErrMultipleRows
	}
	if err := json.Unmarshal(rows[0], dst); err != nil {
		return fmt.Errorf("decode row: %w", err)
	}
	return nil
}

func decodeWritten(raw json.RawMessage, dst any, single bool) error {
	if dst == nil {
		return nil
	}
	if single {
		return decodeOne(raw, dst, true)
	}
	return decode(raw, dst)
}
