package google

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"society/internal/activity"
)

const testClientJSON = `{"installed":{"client_id":"test","client_secret":"test","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{})
	if err == nil || err.Error() != "missing spreadsheet id" {
		t.Fatalf("expected missing spreadsheet id error, got %v", err)
	}
}

func TestNewSheetsService_MissingOAuthClient(t *testing.T) {
	_, err := newSheetsService(context.Background(), Options{})
	expected := "missing oauth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)"
	if err == nil || err.Error() != expected {
		t.Errorf("expected %q, got %v", expected, err)
	}
}

func TestNewSheetsService_MissingOAuthToken(t *testing.T) {
	_, err := newSheetsService(context.Background(), Options{ClientJSON: testClientJSON})
	expected := "missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)"
	if err == nil || err.Error() != expected {
		t.Errorf("expected %q, got %v", expected, err)
	}
}

func TestNewSheetsService_InvalidClient(t *testing.T) {
	_, err := newSheetsService(context.Background(), Options{
		ClientJSON: "invalid-json",
		TokenJSON:  `{"access_token":"test"}`,
	})
	if err == nil || !strings.Contains(err.Error(), "oauth config") {
		t.Errorf("expected oauth config error, got %v", err)
	}
}

func TestNewSheetsService_MissingClientFile(t *testing.T) {
	_, err := newSheetsService(context.Background(), Options{ClientFile: "/nonexistent/client.json"})
	if err == nil || !strings.Contains(err.Error(), "read oauth client") {
		t.Errorf("expected read error, got %v", err)
	}
}

func TestNewSheetsService_Valid(t *testing.T) {
	svc, err := newSheetsService(context.Background(), Options{
		ClientJSON: testClientJSON,
		TokenJSON:  `{"access_token":"test","token_type":"Bearer"}`,
	})
	if err != nil {
		t.Fatalf("newSheetsService() error = %v", err)
	}
	if svc == nil {
		t.Fatal("expected a service")
	}
}

func TestAppendActivity_Uninitialized(t *testing.T) {
	c := &Client{spreadsheetID: "test", activitySheet: "Activity"}

	if _, err := c.AppendActivity(context.Background(), activity.Event{}); err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("expected validation error, got %v", err)
	}

	e := activity.New(context.Background(), activity.ActionCreate, "houses", "h1", nil)
	if _, err := c.AppendActivity(context.Background(), e); err == nil || err.Error() != "sheets service not initialized" {
		t.Errorf("expected uninitialized error, got %v", err)
	}
}

func TestColumnsQuotesSheetName(t *testing.T) {
	tests := map[string]string{
		"Activity":      "'Activity'!A:G",
		"2025 Activity": "'2025 Activity'!A:G",
		"Bob's log":     "'Bob''s log'!A:G",
	}
	for sheet, want := range tests {
		c := &Client{activitySheet: sheet}
		if got := c.columns(); got != want {
			t.Errorf("columns(%q) = %q, want %q", sheet, got, want)
		}
	}
}

func TestActivityRowRoundTrip(t *testing.T) {
	e := activity.Event{
		ID:         "evt-1",
		Action:     activity.ActionUpdate,
		EntityType: "maintenance_payments",
		EntityID:   "p1",
		UserID:     "u1",
		Details:    json.RawMessage(`{"status":"paid"}`),
		Timestamp:  time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
	}

	row := activityRow(e)
	if len(row) != 7 {
		t.Fatalf("row has %d columns, want 7", len(row))
	}
	if row[0] != "2024-03-05T10:00:00Z" {
		t.Errorf("timestamp column = %v", row[0])
	}

	parsed, ok := parseActivityRow(toStrings(row))
	if !ok {
		t.Fatal("parseActivityRow() rejected a written row")
	}
	if parsed.ID != e.ID || parsed.EntityID != e.EntityID || parsed.UserID != e.UserID {
		t.Errorf("parsed = %+v", parsed)
	}
	if string(parsed.Details) != `{"status":"paid"}` {
		t.Errorf("details = %s", parsed.Details)
	}
	if !parsed.Timestamp.Equal(e.Timestamp) {
		t.Errorf("timestamp = %v", parsed.Timestamp)
	}
}

func TestParseActivityRowSkipsJunk(t *testing.T) {
	rows := [][]string{
		{"Timestamp", "Action", "Entity"},
		{"yesterday", "create"},
		{"2024-03-05T10:00:00Z"},
		{"2024-03-05T10:00:00Z", ""},
	}
	for _, r := range rows {
		if _, ok := parseActivityRow(r); ok {
			t.Errorf("parseActivityRow(%v) accepted", r)
		}
	}

	e, ok := parseActivityRow([]string{"2024-03-05T10:00:00Z", "delete", "houses", "h1", "", "not json"})
	if !ok {
		t.Fatal("short row should parse")
	}
	if e.Details != nil || e.ID != "" {
		t.Errorf("unexpected fields: %+v", e)
	}
}
