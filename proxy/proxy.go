// Package proxy runs the host-side capture proxy that a device's WiFi
// proxy is pointed at.
package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/elazarl/goproxy"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// DefaultPort is the conventional capture port.
const DefaultPort = 8888

// limiterBurst keeps even small transfers subject to the throttle.
const limiterBurst = 4 * 1024

// Config describes a capture proxy.
type Config struct {
	// ListenHost is the interface to bind. Devices reach the proxy over
	// WiFi, so the default is all interfaces.
	ListenHost string
	// Port 0 picks a free port; see Server.Port.
	Port int
	// DataDir holds the capture CA. Empty disables HTTPS decryption.
	DataDir        string
	MITM           bool
	BypassPatterns []string
	// URLFilter limits logging to URLs matching the wildcard pattern.
	URLFilter    string
	CaptureLimit int64
	Logger       zerolog.Logger
}

// RequestLog contains details about a proxied request.
type RequestLog struct {
	ID          string              `json:"id"`
	Time        string              `json:"time"`
	ClientIP    string              `json:"clientIp"`
	Method      string              `json:"method"`
	URL         string              `json:"url"`
	IsHTTPS     bool                `json:"isHttps"`
	Headers     map[string][]string `json:"headers"`
	Body        string              `json:"previewBody"`
	RespHeaders map[string][]string `json:"respHeaders"`
	RespBody    string              `json:"respBody"`
	StatusCode  int                 `json:"statusCode"`
	ContentType string              `json:"contentType"`
	BodySize    int64               `json:"bodySize"`
}

// Stats summarises traffic since Start.
type Stats struct {
	Running   bool   `json:"running"`
	Addr      string `json:"addr"`
	Requests  int64  `json:"requests"`
	BytesDown int64  `json:"bytesDown"`
	MITM      bool   `json:"mitm"`
	CertPath  string `json:"certPath,omitempty"`
}

// Server handles HTTP/HTTPS capture using goproxy.
type Server struct {
	cfg       Config
	log       zerolog.Logger
	server    *http.Server
	proxy     *goproxy.ProxyHttpServer
	listener  net.Listener
	certMgr   *CertManager
	onRequest func(RequestLog)

	mu          sync.Mutex
	running     bool
	upLimiter   *rate.Limiter
	downLimiter *rate.Limiter

	requests  atomic.Int64
	bytesDown atomic.Int64
}

func New(cfg Config) *Server {
	if cfg.CaptureLimit == 0 {
		cfg.CaptureLimit = 1 << 20
	}
	if cfg.BypassPatterns == nil {
		cfg.BypassPatterns = []string{"cdn", "static", "img", "image", "video", "asset"}
	}
	return &Server{cfg: cfg, log: cfg.Logger.With().Str("module", "capture").Logger()}
}

// Start binds the listener and serves in the background. onRequest is
// called once per completed exchange.
func (s *Server) Start(onRequest func(RequestLog)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("capture proxy already running")
	}
	s.onRequest = onRequest
	s.requests.Store(0)
	s.bytesDown.Store(0)

	mitm := s.cfg.MITM && s.cfg.DataDir != ""
	if mitm {
		s.certMgr = NewCertManager(s.cfg.DataDir, s.log)
		if err := s.certMgr.EnsureCert(); err != nil {
			return fmt.Errorf("prepare capture CA: %w", err)
		}
		if err := s.certMgr.LoadToGoproxy(); err != nil {
			return fmt.Errorf("load capture CA: %w", err)
		}
	}

	s.proxy = goproxy.NewProxyHttpServer()
	s.proxy.Verbose = false
	// Keep the upstream bytes untouched; decoding happens on a shadow copy.
	s.proxy.Tr = &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		DisableCompression:    true,
		ForceAttemptHTTP2:     true,
	}

	s.proxy.OnRequest().HandleConnectFunc(func(host string, ctx *goproxy.ProxyCtx) (*goproxy.ConnectAction, string) {
		if mitm && !s.bypassed(host) {
			return goproxy.MitmConnect, host
		}
		return &goproxy.ConnectAction{
			Action: goproxy.ConnectHijack,
			Hijack: s.handleHijackConnect,
		}, host
	})

	s.proxy.OnRequest().DoFunc(func(r *http.Request, ctx *goproxy.ProxyCtx) (*http.Request, *http.Response) {
		id := uuid.New().String()
		ctx.UserData = id
		s.requests.Add(1)

		if r.Body != nil && r.Body != http.NoBody {
			body, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.CaptureLimit))
			if err == nil {
				r.Body = &multiReadCloser{Reader: io.MultiReader(bytes.NewReader(body), r.Body), Closer: r.Body}
				ctx.UserData = capturedRequest{id: id, body: body}
			}
		}

		s.mu.Lock()
		up := s.upLimiter
		s.mu.Unlock()
		if up != nil && r.Body != nil {
			r.Body = &RateLimitedReadCloser{rc: r.Body, limiter: up}
		}
		return r, nil
	})

	s.proxy.OnResponse().DoFunc(func(resp *http.Response, ctx *goproxy.ProxyCtx) *http.Response {
		if resp == nil {
			return resp
		}
		entry := s.newLog(ctx, resp)

		s.mu.Lock()
		down := s.downLimiter
		s.mu.Unlock()

		if resp.Body != nil {
			var rc io.ReadCloser = &captureReadCloser{
				rc:       resp.Body,
				s:        s,
				log:      entry,
				captured: new(bytes.Buffer),
				limit:    s.cfg.CaptureLimit,
			}
			if down != nil {
				rc = &RateLimitedReadCloser{rc: rc, limiter: down}
			}
			resp.Body = rc
		} else {
			s.emit(entry)
		}
		return resp
	})

	addr := net.JoinHostPort(s.cfg.ListenHost, fmt.Sprint(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.listener = ln
	s.server = &http.Server{Handler: s.proxy}
	s.running = true
	s.log.Info().Str("addr", ln.Addr().String()).Bool("mitm", mitm).Msg("capture proxy started")

	go func() {
		err := s.server.Serve(ln)
		s.log.Debug().Err(err).Msg("capture proxy serve returned")
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()
	return nil
}

// Stop shuts the listener down, waiting for in-flight requests until ctx
// expires.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	running := s.running
	s.mu.Unlock()
	if !running || srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.log.Info().Int64("requests", s.requests.Load()).Msg("capture proxy stopped")
	return err
}

func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Port returns the bound port, which differs from Config.Port when that
// was 0 at listen time.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		if tcp, ok := s.listener.Addr().(*net.TCPAddr); ok {
			return tcp.Port
		}
	}
	return s.cfg.Port
}

func (s *Server) Stats() Stats {
	s.mu.Lock()
	st := Stats{Running: s.running, MITM: s.certMgr != nil}
	if s.listener != nil {
		st.Addr = s.listener.Addr().String()
	}
	if s.certMgr != nil {
		st.CertPath = s.certMgr.CertPath
	}
	s.mu.Unlock()
	st.Requests = s.requests.Load()
	st.BytesDown = s.bytesDown.Load()
	return st
}

// SetLimits throttles upload and download in bytes per second; 0 removes
// the limit.
func (s *Server) SetLimits(uploadSpeed, downloadSpeed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upLimiter = newLimiter(uploadSpeed)
	s.downLimiter = newLimiter(downloadSpeed)
}

func newLimiter(bytesPerSecond int) *rate.Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(bytesPerSecond), limiterBurst)
}

func (s *Server) bypassed(host string) bool {
	host = strings.ToLower(host)
	for _, pat := range s.cfg.BypassPatterns {
		if strings.Contains(host, pat) {
			return true
		}
	}
	return false
}

type capturedRequest struct {
	id   string
	body []byte
}

func (s *Server) newLog(ctx *goproxy.ProxyCtx, resp *http.Response) RequestLog {
	var id string
	var reqBody []byte
	switch v := ctx.UserData.(type) {
	case string:
		id = v
	case capturedRequest:
		id, reqBody = v.id, v.body
	}

	entry := RequestLog{
		ID:          id,
		Time:        time.Now().Format("2006-01-02 15:04:05"),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		BodySize:    resp.ContentLength,
		RespHeaders: copyHeader(resp.Header),
	}
	if r := ctx.Req; r != nil {
		entry.Method = r.Method
		entry.Headers = copyHeader(r.Header)
		if r.URL != nil {
			entry.URL = r.URL.String()
			entry.IsHTTPS = r.URL.Scheme == "https"
		}
		if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			entry.ClientIP = h
		} else {
			entry.ClientIP = r.RemoteAddr
		}
		if len(reqBody) > 0 {
			entry.Body = AnalyzeBody(reqBody, r.Header.Get("Content-Encoding")).Text
		}
	}
	return entry
}

func (s *Server) emit(entry RequestLog) {
	if s.onRequest == nil {
		return
	}
	if s.cfg.URLFilter != "" && !MatchPattern(entry.URL, s.cfg.URLFilter) {
		return
	}
	s.onRequest(entry)
}

// handleHijackConnect tunnels CONNECT traffic so rate limits apply
// without decryption.
func (s *Server) handleHijackConnect(req *http.Request, clientConn net.Conn, ctx *goproxy.ProxyCtx) {
	destConn, err := net.DialTimeout("tcp", req.Host, 10*time.Second)
	if err != nil {
		clientConn.Write([]byte("HTTP/1.1 502 Bad Gateway\r\n\r\n"))
		clientConn.Close()
		return
	}
	clientConn.Write([]byte("HTTP/1.0 200 OK\r\n\r\n"))

	s.mu.Lock()
	up, down := s.upLimiter, s.downLimiter
	s.mu.Unlock()

	go s.transfer(destConn, clientConn, up)
	go s.transfer(clientConn, destConn, down)
}

func (s *Server) transfer(dst, src net.Conn, limiter *rate.Limiter) {
	defer dst.Close()
	defer src.Close()
	_, _ = io.Copy(dst, &RateLimitedReadCloser{rc: src, limiter: limiter})
}

// MatchPattern checks if a URL matches a pattern with * wildcards.
func MatchPattern(url, pattern string) bool {
	if pattern == "*" {
		return true
	}
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return url == pattern
	}

	pos := 0
	for i, part := range parts {
		if part == "" {
			continue
		}
		idx := strings.Index(url[pos:], part)
		if idx == -1 {
			return false
		}
		if i == 0 && idx != 0 {
			return false
		}
		pos += idx + len(part)
	}
	if !strings.HasSuffix(pattern, "*") && pos != len(url) {
		return false
	}
	return true
}

func copyHeader(h http.Header) http.Header {
	if h == nil {
		return nil
	}
	h2 := make(http.Header, len(h))
	for k, vv := range h {
		h2[k] = append([]string(nil), vv...)
	}
	return h2
}

// RateLimitedReadCloser wraps an io.ReadCloser with rate limiting.
type RateLimitedReadCloser struct {
	rc      io.ReadCloser
	limiter *rate.Limiter
}

func (r *RateLimitedReadCloser) Read(p []byte) (n int, err error) {
	n, err = r.rc.Read(p)
	if n > 0 && r.limiter != nil {
		ctx := context.Background()
		burst := r.limiter.Burst()
		for remaining := n; remaining > 0; {
			take := remaining
			if take > burst {
				take = burst
			}
			if wErr := r.limiter.WaitN(ctx, take); wErr != nil {
				break
			}
			remaining -= take
		}
	}
	return
}

func (r *RateLimitedReadCloser) Close() error {
	return r.rc.Close()
}

type multiReadCloser struct {
	io.Reader
	Closer io.Closer
}

func (m *multiReadCloser) Close() error {
	return m.Closer.Close()
}

// captureReadCloser mirrors the response body into a bounded buffer and
// emits the log once the body is drained or closed.
type captureReadCloser struct {
	rc       io.ReadCloser
	s        *Server
	log      RequestLog
	captured *bytes.Buffer
	limit    int64
	total    int64
	once     sync.Once
	mu       sync.Mutex
}

func (r *captureReadCloser) Read(p []byte) (n int, err error) {
	n, err = r.rc.Read(p)
	if n > 0 {
		r.mu.Lock()
		r.total += int64(n)
		if room := r.limit - int64(r.captured.Len()); room > 0 {
			take := int64(n)
			if take > room {
				take = room
			}
			r.captured.Write(p[:take])
		}
		r.mu.Unlock()
		r.s.bytesDown.Add(int64(n))
	}
	if err == io.EOF {
		r.finish()
	}
	return n, err
}

func (r *captureReadCloser) Close() error {
	r.finish()
	return r.rc.Close()
}

func (r *captureReadCloser) finish() {
	r.once.Do(func() {
		r.mu.Lock()
		entry := r.log
		entry.BodySize = r.total
		data := append([]byte(nil), r.captured.Bytes()...)
		r.mu.Unlock()

		var encoding string
		if vv := entry.RespHeaders["Content-Encoding"]; len(vv) > 0 {
			encoding = vv[0]
		}
		entry.RespBody = AnalyzeBody(data, encoding).Text
		r.s.emit(entry)
	})
}
