// Package memory is an in-process backend for development and tests.
package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"society/internal/backend"
)

// Store keeps every table as a slice of records in insertion order.
type Store struct {
	mu     sync.Mutex
	tables map[string][]backend.Record
	now    func() time.Time
}

var _ backend.Client = (*Store)(nil)

func New() *Store {
	return &Store{tables: make(map[string][]backend.Record), now: time.Now}
}

// NewFromFiles seeds houses from base/seed_houses.txt. Each non-comment line
// is "house_number[,block[,status]]"; status defaults to occupied.
func NewFromFiles(base string) *Store {
	s := New()
	for _, line := range readLines(filepath.Join(base, "seed_houses.txt")) {
		fields := strings.Split(line, ",")
		rec := backend.Record{"house_number": strings.TrimSpace(fields[0]), "status": "occupied"}
		if len(fields) > 1 && strings.TrimSpace(fields[1]) != "" {
			rec["block"] = strings.TrimSpace(fields[1])
		}
		if len(fields) > 2 && strings.TrimSpace(fields[2]) != "" {
			rec["status"] = strings.TrimSpace(fields[2])
		}
		_, _ = s.Insert(context.Background(), "houses", []backend.Record{rec})
	}
	return s
}

// SetClock replaces the timestamp source used for created_at/updated_at.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// Len returns the number of rows in table.
func (s *Store) Len(table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tables[table])
}

func (s *Store) Select(ctx context.Context, q backend.Query) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sel, err := backend.ParseSelection(q.Columns)
	if err != nil {
		return nil, &backend.Error{Status: 400, Code: "PGRST100", Message: err.Error()}
	}
	filters, err := normalizeFilters(q.Filters)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []backend.Record
	for _, r := range s.tables[q.Table] {
		if matches(r, filters) {
			out = append(out, r)
		}
	}
	sortRecords(out, q.Orders)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}

	projected := make([]backend.Record, 0, len(out))
	for _, r := range out {
		projected = append(projected, s.project(r, sel))
	}
	return json.Marshal(projected)
}

func (s *Store) Insert(ctx context.Context, table string, rows []backend.Record) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp := s.now().UTC().Format(time.RFC3339Nano)
	written := make([]backend.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := normalize(row)
		if err != nil {
			return nil, err
		}
		if id, _ := rec["id"].(string); id == "" {
			rec["id"] = uuid.NewString()
		}
		if err := s.checkForeignKey(table, rec); err != nil {
			return nil, err
		}
		if err := s.checkUnique(table, rec, ""); err != nil {
			return nil, err
		}
		rec["created_at"] = stamp
		rec["updated_at"] = stamp
		written = append(written, rec)
	}
	s.tables[table] = append(s.tables[table], written...)
	return json.Marshal(written)
}

func (s *Store) Update(ctx context.Context, q backend.Query, patch backend.Record) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := normalize(patch)
	if err != nil {
		return nil, err
	}
	filters, err := normalizeFilters(q.Filters)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stamp := s.now().UTC().Format(time.RFC3339Nano)
	written := []backend.Record{}
	for _, r := range s.tables[q.Table] {
		if !matches(r, filters) {
			continue
		}
		next := clone(r)
		for k, v := range p {
			next[k] = v
		}
		if err := s.checkForeignKey(q.Table, next); err != nil {
			return nil, err
		}
		if err := s.checkUnique(q.Table, next, fmt.Sprint(r["id"])); err != nil {
			return nil, err
		}
		next["updated_at"] = stamp
		for k, v := range next {
			r[k] = v
		}
		written = append(written, clone(r))
	}
	return json.Marshal(written)
}

func (s *Store) Delete(ctx context.Context, q backend.Query) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	filters, err := normalizeFilters(q.Filters)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.tables[q.Table][:0]
	for _, r := range s.tables[q.Table] {
		if !matches(r, filters) {
			kept = append(kept, r)
		}
	}
	s.tables[q.Table] = kept
	return nil
}

func (s *Store) project(r backend.Record, sel backend.Selection) backend.Record {
	out := backend.Record{}
	if sel.All {
		out = clone(r)
	}
	for _, c := range sel.Columns {
		out[c] = r[c]
	}
	for _, e := range sel.Embeds {
		rel := backend.Relations[e.Table]
		fk := fmt.Sprint(r[rel.ForeignKey])
		var embedded backend.Record
		for _, parent := range s.tables[e.Table] {
			if fmt.Sprint(parent["id"]) == fk {
				embedded = backend.Record{}
				for _, c := range e.Columns {
					if c == "*" {
						embedded = clone(parent)
						continue
					}
					embedded[c] = parent[c]
				}
				break
			}
		}
		if embedded == nil {
			out[e.Table] = nil
		} else {
			out[e.Table] = embedded
		}
	}
	return out
}

// checkForeignKey mirrors the schema's house_id references.
func (s *Store) checkForeignKey(table string, rec backend.Record) error {
	if table == "houses" {
		return nil
	}
	fk, ok := rec["house_id"]
	if !ok || fk == nil {
		return nil
	}
	for _, h := range s.tables["houses"] {
		if fmt.Sprint(h["id"]) == fmt.Sprint(fk) {
			return nil
		}
	}
	return &backend.Error{
		Status:  409,
		Code:    backend.CodeForeignKeyViolation,
		Message: fmt.Sprintf("insert or update on table %q violates foreign key constraint", table),
	}
}

func (s *Store) checkUnique(table string, rec backend.Record, selfID string) error {
	if selfID == "" {
		for _, r := range s.tables[table] {
			if fmt.Sprint(r["id"]) == fmt.Sprint(rec["id"]) {
				return &backend.Error{
					Status:  409,
					Code:    backend.CodeUniqueViolation,
					Message: fmt.Sprintf("duplicate key value violates unique constraint %q", table+"_pkey"),
				}
			}
		}
	}
	if table != "houses" {
		return nil
	}
	for _, h := range s.tables[table] {
		if fmt.Sprint(h["id"]) == selfID {
			continue
		}
		if fmt.Sprint(h["house_number"]) == fmt.Sprint(rec["house_number"]) {
			return &backend.Error{
				Status:  409,
				Code:    backend.CodeUniqueViolation,
				Message: `duplicate key value violates unique constraint "houses_house_number_key"`,
			}
		}
	}
	return nil
}

func matches(r backend.Record, filters []backend.Filter) bool {
	for _, f := range filters {
		v, ok := r[f.Column]
		if !ok || v == nil || fmt.Sprint(v) != fmt.Sprint(f.Value) {
			return false
		}
	}
	return true
}

// sortRecords orders like postgres: nulls last ascending, first descending.
func sortRecords(rows []backend.Record, orders []backend.Order) {
	if len(orders) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, o := range orders {
			c := compare(rows[i][o.Column], rows[j][o.Column])
			if c == 0 {
				continue
			}
			if o.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	if fa, ok := a.(float64); ok {
		if fb, ok := b.(float64); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// normalize round-trips a record through JSON so stored values are always
// string, float64, bool, nil, map or slice.
func normalize(r backend.Record) (backend.Record, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var out backend.Record
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return out, nil
}

func normalizeFilters(in []backend.Filter) ([]backend.Filter, error) {
	out := make([]backend.Filter, len(in))
	for i, f := range in {
		b, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("encode filter %s: %w", f.Column, err)
		}
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, fmt.Errorf("decode filter %s: %w", f.Column, err)
		}
		out[i] = backend.Filter{Column: f.Column, Value: v}
	}
	return out, nil
}

func clone(r backend.Record) backend.Record {
	out := make(backend.Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	seen := map[string]struct{}{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
