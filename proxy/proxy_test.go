package proxy

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
)

// ==================== MatchPattern ====================

func TestMatchPattern_Wildcard(t *testing.T) {
	tests := []struct {
		url     string
		pattern string
		want    bool
	}{
		{"https://example.com/api/users", "*", true},
		{"", "*", true},

		{"https://example.com/api", "https://example.com/api", true},
		{"https://example.com/api", "https://example.com/other", false},

		{"https://example.com/api/users", "https://example.com/api/*", true},
		{"https://example.com/other/users", "https://example.com/api/*", false},

		{"https://example.com/api/users", "*/api/users", true},
		{"https://example.com/api/other", "*/api/users", false},

		{"https://example.com/api/v1/users", "*/api/*/users", true},
		{"https://example.com/api/v1/posts", "*/api/*/users", false},
	}

	for _, tt := range tests {
		got := MatchPattern(tt.url, tt.pattern)
		if got != tt.want {
			t.Errorf("MatchPattern(%q, %q) = %v, want %v", tt.url, tt.pattern, got, tt.want)
		}
	}
}

// ==================== AnalyzeBody ====================

func TestAnalyzeBody_PlainText(t *testing.T) {
	result := AnalyzeBody([]byte(`{"ok":true}`), "")
	if result.Text != `{"ok":true}` {
		t.Errorf("Expected plain text, got %q", result.Text)
	}
	if result.IsBinary {
		t.Error("Expected text, got binary")
	}
}

func TestAnalyzeBody_EmptyBody(t *testing.T) {
	result := AnalyzeBody(nil, "gzip")
	if result.Text != "" || result.IsBinary {
		t.Errorf("Expected empty result, got %+v", result)
	}
}

func TestAnalyzeBody_Encodings(t *testing.T) {
	payload := []byte("hello from the device")

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	gw.Write(payload)
	gw.Close()

	var br bytes.Buffer
	bw := brotli.NewWriter(&br)
	bw.Write(payload)
	bw.Close()

	var fl bytes.Buffer
	fw, _ := flate.NewWriter(&fl, flate.DefaultCompression)
	fw.Write(payload)
	fw.Close()

	enc, _ := zstd.NewWriter(nil)
	zs := enc.EncodeAll(payload, nil)
	enc.Close()

	tests := []struct {
		encoding string
		data     []byte
	}{
		{"gzip", gz.Bytes()},
		{"br", br.Bytes()},
		{"deflate", fl.Bytes()},
		{"zstd", zs},
	}

	for _, tt := range tests {
		result := AnalyzeBody(tt.data, tt.encoding)
		if result.Text != string(payload) {
			t.Errorf("%s: expected %q, got %q", tt.encoding, payload, result.Text)
		}
	}
}

func TestAnalyzeBody_CorruptedCompression(t *testing.T) {
	data := []byte("not really gzip")
	result := AnalyzeBody(data, "gzip")
	if result.Text != string(data) {
		t.Errorf("Expected raw fallback, got %q", result.Text)
	}
}

func TestAnalyzeBody_BinaryDetection(t *testing.T) {
	result := AnalyzeBody([]byte{0x08, 0x00, 0x12, 0x03}, "")
	if !result.IsBinary {
		t.Fatal("Expected binary detection")
	}
	if result.Text != "[Binary Data: 4 bytes]" {
		t.Errorf("Unexpected text: %q", result.Text)
	}
	if len(result.RawBytes) != 4 {
		t.Errorf("Expected 4 raw bytes, got %d", len(result.RawBytes))
	}
}

// ==================== Server ====================

func TestServer_CapturesPlainHTTP(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, "pong")
	}))
	defer upstream.Close()

	srv := New(Config{ListenHost: "127.0.0.1", Logger: zerolog.Nop()})

	var mu sync.Mutex
	var logs []RequestLog
	done := make(chan struct{}, 1)
	if err := srv.Start(func(l RequestLog) {
		mu.Lock()
		logs = append(logs, l)
		mu.Unlock()
		done <- struct{}{}
	}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer srv.Stop(context.Background())

	if !srv.IsRunning() {
		t.Fatal("Expected server running")
	}
	if err := srv.Start(nil); err == nil {
		t.Error("Expected error starting twice")
	}

	proxyURL, _ := url.Parse("http://127.0.0.1:" + strconv.Itoa(srv.Port()))
	client := &http.Client{Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)}, Timeout: 5 * time.Second}

	resp, err := client.Post(upstream.URL+"/ping", "text/plain", strings.NewReader("ping"))
	if err != nil {
		t.Fatalf("Request through proxy failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "pong" {
		t.Errorf("Expected pong, got %q", body)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for request log")
	}

	mu.Lock()
	defer mu.Unlock()
	l := logs[0]
	if l.Method != http.MethodPost || !strings.HasSuffix(l.URL, "/ping") {
		t.Errorf("Unexpected log: %s %s", l.Method, l.URL)
	}
	if l.Body != "ping" || l.RespBody != "pong" {
		t.Errorf("Expected bodies ping/pong, got %q/%q", l.Body, l.RespBody)
	}
	if l.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", l.StatusCode)
	}
	if l.ID == "" {
		t.Error("Expected request id")
	}

	st := srv.Stats()
	if st.Requests != 1 || st.BytesDown != 4 {
		t.Errorf("Expected 1 request / 4 bytes, got %+v", st)
	}
}

func TestServer_URLFilter(t *testing.T) {
	srv := New(Config{URLFilter: "*/api/*", Logger: zerolog.Nop()})
	var got []string
	srv.onRequest = func(l RequestLog) { got = append(got, l.URL) }

	srv.emit(RequestLog{URL: "http://host/api/users"})
	srv.emit(RequestLog{URL: "http://host/static/logo.png"})

	if len(got) != 1 || got[0] != "http://host/api/users" {
		t.Errorf("Expected only the api request, got %v", got)
	}
}

func TestServer_SetLimits(t *testing.T) {
	srv := New(Config{Logger: zerolog.Nop()})
	srv.SetLimits(1024, 0)
	if srv.upLimiter == nil {
		t.Error("Expected upload limiter")
	}
	if srv.downLimiter != nil {
		t.Error("Expected no download limiter")
	}
	srv.SetLimits(0, 0)
	if srv.upLimiter != nil {
		t.Error("Expected upload limiter removed")
	}
}

func TestServer_Bypassed(t *testing.T) {
	srv := New(Config{Logger: zerolog.Nop()})
	if !srv.bypassed("img.example.com:443") {
		t.Error("Expected CDN-like host to bypass decryption")
	}
	if srv.bypassed("api.example.com:443") {
		t.Error("Expected api host to be decrypted")
	}
}

func TestServer_StopWhenIdle(t *testing.T) {
	srv := New(Config{Logger: zerolog.Nop()})
	if err := srv.Stop(context.Background()); err != nil {
		t.Errorf("Expected nil stopping idle server, got %v", err)
	}
}

func TestCertManager_Generate(t *testing.T) {
	m := NewCertManager(t.TempDir(), zerolog.Nop())
	if err := m.EnsureCert(); err != nil {
		t.Fatalf("EnsureCert failed: %v", err)
	}
	if err := m.LoadToGoproxy(); err != nil {
		t.Fatalf("LoadToGoproxy failed: %v", err)
	}
}
