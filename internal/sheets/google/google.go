package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"society/internal/activity"
	ports "society/internal/sheets"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	activitySheet string
}

var (
	_ ports.ActivityWriter = (*Client)(nil)
	_ ports.ActivityLister = (*Client)(nil)
)

// Options selects the spreadsheet and the OAuth material used to reach it.
// Inline JSON wins over the file path for both client and token.
type Options struct {
	SpreadsheetID string
	ActivitySheet string
	ClientJSON    string
	ClientFile    string
	TokenJSON     string
	TokenFile     string
}

func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheet := strings.TrimSpace(opts.ActivitySheet)
	if sheet == "" {
		sheet = "Activity"
	}
	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: opts.SpreadsheetID, activitySheet: sheet}, nil
}

func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	clientJSON, err := readSecret(opts.ClientJSON, opts.ClientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client: %w", err)
	}
	if clientJSON == nil {
		return nil, errors.New("missing oauth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)")
	}
	tokenJSON, err := readSecret(opts.TokenJSON, opts.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth token: %w", err)
	}
	if tokenJSON == nil {
		return nil, errors.New("missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)")
	}

	cfg, err := goauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}

	// The token source refreshes on top of the pooled transport.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	httpClient := cfg.Client(ctx, &tok)

	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created")
	return svc, nil
}

func readSecret(inline, path string) ([]byte, error) {
	if s := strings.TrimSpace(inline); s != "" {
		return []byte(s), nil
	}
	if p := strings.TrimSpace(path); p != "" {
		return os.ReadFile(p)
	}
	return nil, nil
}

// newHTTPClientWithPooling creates an HTTP client tuned for the Sheets API.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// AppendActivity adds one row after the last non-empty row of the activity
// sheet and returns the A1 range it landed in.
func (c *Client) AppendActivity(ctx context.Context, e activity.Event) (string, error) {
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	vr := &gsheet.ValueRange{Values: [][]any{activityRow(e)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.columns(), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.activitySheet, err)
	}
	if resp.Updates != nil {
		return resp.Updates.UpdatedRange, nil
	}
	return c.columns(), nil
}

// ListActivity reads every mirrored event, skipping the header and rows
// that do not parse.
func (c *Client) ListActivity(ctx context.Context) ([]activity.Event, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.columns()).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.columns(), err)
	}
	out := make([]activity.Event, 0, len(resp.Values))
	for _, row := range resp.Values {
		e, ok := parseActivityRow(toStrings(row))
		if !ok {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (c *Client) columns() string {
	return fmt.Sprintf("'%s'!A:G", strings.ReplaceAll(c.activitySheet, "'", "''"))
}

func activityRow(e activity.Event) []any {
	details := ""
	if len(e.Details) > 0 {
		details = string(e.Details)
	}
	return []any{
		e.Timestamp.UTC().Format(time.RFC3339),
		e.Action,
		e.EntityType,
		e.EntityID,
		e.UserID,
		details,
		e.ID,
	}
}

func parseActivityRow(cols []string) (activity.Event, bool) {
	if len(cols) < 2 || strings.EqualFold(cols[0], ports.Header[0]) {
		return activity.Event{}, false
	}
	ts, err := time.Parse(time.RFC3339, cols[0])
	if err != nil {
		return activity.Event{}, false
	}
	e := activity.Event{
		Timestamp:  ts,
		Action:     cols[1],
		EntityType: safeGet(cols, 2),
		EntityID:   safeGet(cols, 3),
		UserID:     safeGet(cols, 4),
		ID:         safeGet(cols, 6),
	}
	if d := safeGet(cols, 5); d != "" && json.Valid([]byte(d)) {
		e.Details = json.RawMessage(d)
	}
	return e, e.Action != ""
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
