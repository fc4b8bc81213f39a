package security

import (
	"bytes"
	"crypto/tls"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	applog "society/internal/log"
)

func TestExtractClientIP(t *testing.T) {
	d := NewDetector()
	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"direct", "203.0.113.9:5000", nil, "203.0.113.9"},
		{"untrusted proxy ignored", "203.0.113.9:5000", map[string]string{"X-Forwarded-For": "198.51.100.1"}, "203.0.113.9"},
		{"trusted proxy xff", "10.0.0.2:5000", map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.2"}, "198.51.100.1"},
		{"trusted proxy real ip", "127.0.0.1:5000", map[string]string{"X-Real-IP": "198.51.100.7"}, "198.51.100.7"},
		{"trusted proxy garbage", "192.168.1.1:5000", map[string]string{"X-Forwarded-For": "not-an-ip"}, "192.168.1.1"},
		{"client supplied hop ignored", "10.0.0.5:5000", map[string]string{"X-Forwarded-For": "1.1.1.1, 203.0.113.9"}, "203.0.113.9"},
		{"trusted hops skipped", "10.0.0.5:5000", map[string]string{"X-Forwarded-For": "1.1.1.1, 203.0.113.9, 10.0.0.7"}, "203.0.113.9"},
		{"garbage left of client", "10.0.0.5:5000", map[string]string{"X-Forwarded-For": "junk, 203.0.113.9"}, "203.0.113.9"},
		{"no port", "198.51.100.3", nil, "198.51.100.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := d.ExtractClientIP(r); got != tt.want {
				t.Errorf("ExtractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractClientIPIgnoresSpoofedForwardedFor(t *testing.T) {
	d := NewDetector()
	keyFor := func(spoofed string) string {
		r := httptest.NewRequest(http.MethodPost, "/houses", nil)
		r.RemoteAddr = "10.0.0.5:5000"
		r.Header.Set("X-Forwarded-For", spoofed+", 203.0.113.9")
		return d.ExtractClientIP(r)
	}

	assert.Equal(t, "203.0.113.9", keyFor("1.1.1.1"))
	assert.Equal(t, keyFor("1.1.1.1"), keyFor("2.2.2.2"))
}

func TestSuspicious(t *testing.T) {
	d := NewDetector()

	r := httptest.NewRequest(http.MethodGet, "/houses", nil)
	_, ok := d.Suspicious(r)
	assert.False(t, ok)

	r = httptest.NewRequest(http.MethodGet, "/../../etc/passwd", nil)
	reason, ok := d.Suspicious(r)
	assert.True(t, ok)
	assert.Equal(t, "pattern", reason)

	r = httptest.NewRequest(http.MethodGet, "/houses", nil)
	r.Header.Set("User-Agent", "sqlmap/1.7")
	reason, _ = d.Suspicious(r)
	assert.Equal(t, "user_agent", reason)

	r = httptest.NewRequest(http.MethodGet, "/houses?q="+strings.Repeat("a", maxURLLength), nil)
	reason, _ = d.Suspicious(r)
	assert.Equal(t, "url_length", reason)

	assert.Equal(t, int64(3), d.SuspiciousCount())
}

func TestDetectorMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Handler: slog.NewTextHandler(&buf, nil)})
	h := NewDetector().Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("TRACE", "/houses", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.git/config", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "patterns are logged, not blocked")
	assert.Contains(t, buf.String(), "Suspicious request")
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "max-age=31536000; includeSubDomains", rec.Header().Get("Strict-Transport-Security"))
}
