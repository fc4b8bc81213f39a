package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	rows    string
	err     error
	lastQ   Query
	patch   Record
	deleted bool
}

func (s *stubClient) Select(_ context.Context, q Query) (json.RawMessage, error) {
	s.lastQ = q
	return json.RawMessage(s.rows), s.err
}

func (s *stubClient) Insert(_ context.Context, table string, rows []Record) (json.RawMessage, error) {
	s.lastQ = Query{Table: table}
	return json.RawMessage(s.rows), s.err
}

func (s *stubClient) Update(_ context.Context, q Query, patch Record) (json.RawMessage, error) {
	s.lastQ, s.patch = q, patch
	return json.RawMessage(s.rows), s.err
}

func (s *stubClient) Delete(_ context.Context, q Query) error {
	s.lastQ, s.deleted = q, true
	return s.err
}

func (s *stubClient) Ping(context.Context) error { return nil }
func (s *stubClient) Close() error               { return nil }

type row struct {
	ID string `json:"id"`
}

func TestBuilderAccumulatesQuery(t *testing.T) {
	c := &stubClient{rows: `[]`}
	var out []row
	err := From(c, "members").Select("*, houses(house_number)").Eq("house_id", "h1").Order("name", true).Rows(context.Background(), &out)
	require.NoError(t, err)
	assert.Equal(t, Query{
		Table:   "members",
		Columns: "*, houses(house_number)",
		Filters: []Filter{{Column: "house_id", Value: "h1"}},
		Orders:  []Order{{Column: "name", Ascending: true}},
	}, c.lastQ)
	assert.Empty(t, out)
}

func TestBuilderOne(t *testing.T) {
	ctx := context.Background()
	var r row

	err := From(&stubClient{rows: `[]`}, "houses").Single().One(ctx, &r)
	assert.ErrorIs(t, err, ErrNoRows)

	err = From(&stubClient{rows: `[{"id":"a"},{"id":"b"}]`}, "houses").Single().One(ctx, &r)
	assert.ErrorIs(t, err, ErrMultipleRows)

	require.NoError(t, From(&stubClient{rows: `[{"id":"a"},{"id":"b"}]`}, "houses").One(ctx, &r))
	assert.Equal(t, "a", r.ID)

	err = From(&stubClient{rows: `null`}, "houses").Single().One(ctx, &r)
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestBuilderPassesBackendErrorsThrough(t *testing.T) {
	want := &Error{Status: 500, Code: "XX000", Message: "boom"}
	var out []row
	err := From(&stubClient{err: want}, "houses").Rows(context.Background(), &out)
	assert.Same(t, want, err)
	assert.Equal(t, "XX000: boom", err.Error())
}

func TestBuilderWriteGuards(t *testing.T) {
	ctx := context.Background()
	c := &stubClient{rows: `[]`}

	assert.ErrorIs(t, From(c, "houses").Insert(ctx, nil, nil), ErrEmptyInsert)
	assert.ErrorIs(t, From(c, "houses").Update(ctx, Record{"a": 1}, nil), ErrUnfiltered)
	assert.ErrorIs(t, From(c, "houses").Delete(ctx), ErrUnfiltered)
	assert.False(t, c.deleted)

	require.NoError(t, From(c, "houses").Eq("id", "x").Delete(ctx))
	assert.True(t, c.deleted)
}

func TestBuilderSingleWrite(t *testing.T) {
	c := &stubClient{rows: `[{"id":"new"}]`}
	var r row
	require.NoError(t, From(c, "houses").Single().Insert(context.Background(), []Record{{"house_number": "A"}}, &r))
	assert.Equal(t, "new", r.ID)

	c.err = errors.New("network down")
	assert.EqualError(t, From(c, "houses").Single().Insert(context.Background(), []Record{{}}, &r), "network down")
}

func TestParseSelection(t *testing.T) {
	sel, err := ParseSelection("*, houses(house_number)")
	require.NoError(t, err)
	assert.True(t, sel.All)
	assert.Equal(t, []Embed{{Table: "houses", Columns: []string{"house_number"}}}, sel.Embeds)

	sel, err = ParseSelection("id, house_number, status")
	require.NoError(t, err)
	assert.False(t, sel.All)
	assert.Equal(t, []string{"id", "house_number", "status"}, sel.Columns)

	_, err = ParseSelection("*, owners(name)")
	assert.Error(t, err)
	_, err = ParseSelection("id; drop table houses")
	assert.Error(t, err)
	_, err = ParseSelection("houses(house_number")
	assert.Error(t, err)
}

func TestErrorHelpers(t *testing.T) {
	wrapped := fmt.Errorf("insert: %w", &Error{Status: 409, Code: CodeUniqueViolation, Message: "duplicate"})
	assert.Equal(t, CodeUniqueViolation, CodeOf(wrapped))
	assert.True(t, IsUniqueViolation(wrapped))
	assert.False(t, IsNoRows(wrapped))
	assert.True(t, IsNoRows(fmt.Errorf("lookup: %w", ErrNoRows)))
	assert.Empty(t, CodeOf(errors.New("plain")))
}
