package engine

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// ErrorKind classifies a failed RequestResult. KindNone ("none") marks a
// request that completed without a transport error; the empty zero value
// is not one of the kinds below.
type ErrorKind string

const (
	KindNone       ErrorKind = "none"
	KindTimeout    ErrorKind = "timeout"
	KindConnection ErrorKind = "connection"
	KindProtocol   ErrorKind = "protocol"
	KindOther      ErrorKind = "other"
)

// RequestResult is emitted once per attempted request, success or failure.
type RequestResult struct {
	RunID        string
	VUID         int
	RequestName  string
	FolderPath   string
	URL          string
	Method       string
	StatusCode   int
	ElapsedMs    float64
	BytesReceived int64
	OK           bool
	ErrorKind    ErrorKind
	ErrorMessage string
	StartedAtNs  int64
}

// ExecutorConfig bounds the shared HTTP client (spec.md §4.2).
type ExecutorConfig struct {
	MaxConnections    int
	MaxKeepAlive      int
	KeepAliveExpiry   time.Duration
	RequestTimeout    time.Duration
	MaxRedirects      int
}

// DefaultExecutorConfig matches spec.md §4.2's stated defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxConnections:  1000,
		MaxKeepAlive:    200,
		KeepAliveExpiry: 30 * time.Second,
		RequestTimeout:  30 * time.Second,
		MaxRedirects:    10,
	}
}

// HTTPExecutor owns the single shared HTTP client used by every VU in a
// run. Connection pooling, HTTP/2 negotiation, and redirect policy live
// here so VUs never construct their own transports.
type HTTPExecutor struct {
	client *http.Client
	cfg    ExecutorConfig
}

// NewHTTPExecutor builds the shared client: HTTP/2 via ALPN with automatic
// HTTP/1.1 fallback, pool limits from cfg, and a redirect cap of
// cfg.MaxRedirects hops.
func NewHTTPExecutor(cfg ExecutorConfig) (*HTTPExecutor, error) {
	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxConnections,
		MaxIdleConnsPerHost: cfg.MaxKeepAlive,
		IdleConnTimeout:     cfg.KeepAliveExpiry,
		TLSClientConfig:     &tls.Config{},
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, fmt.Errorf("configure http2: %w", err)
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	return &HTTPExecutor{client: client, cfg: cfg}, nil
}

// Close releases idle connections held by the shared transport.
func (e *HTTPExecutor) Close() {
	if t, ok := e.client.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
}

// Execute issues req and always returns a RequestResult — it never
// returns an error of its own (spec.md §4.2, step 6: "never raises").
func (e *HTTPExecutor) Execute(ctx context.Context, runID string, vuID int, req *ParsedRequest) RequestResult {
	startedAtNs := time.Now().UnixNano()

	resolvedURL, headers, body := req.Prepared()

	result := RequestResult{
		RunID:       runID,
		VUID:        vuID,
		RequestName: req.Name,
		FolderPath:  req.FolderPath,
		URL:         resolvedURL,
		Method:      req.Method,
		StartedAtNs: startedAtNs,
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, resolvedURL, bodyReader(body))
	if err != nil {
		return finish(result, startedAtNs, 0, 0, false, KindOther, truncate(err.Error()))
	}
	for _, h := range headers {
		httpReq.Header.Set(h.Key, h.Value)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		kind := classifyError(err)
		return finish(result, startedAtNs, 0, 0, false, kind, truncate(err.Error()))
	}
	defer resp.Body.Close()

	n, readErr := io.Copy(io.Discard, resp.Body)
	if readErr != nil {
		return finish(result, startedAtNs, resp.StatusCode, n, false, KindProtocol, truncate(readErr.Error()))
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 400
	return finish(result, startedAtNs, resp.StatusCode, n, ok, KindNone, "")
}

func finish(result RequestResult, startedAtNs int64, status int, bytesReceived int64, ok bool, kind ErrorKind, msg string) RequestResult {
	result.StatusCode = status
	result.BytesReceived = bytesReceived
	result.OK = ok
	result.ErrorKind = kind
	result.ErrorMessage = msg
	result.ElapsedMs = float64(time.Now().UnixNano()-startedAtNs) / 1e6
	return result
}

func bodyReader(body []byte) io.Reader {
	if len(body) == 0 {
		return nil
	}
	return bytes.NewReader(body)
}

func truncate(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// classifyError buckets a transport-layer error into the taxonomy
// spec.md §4.2 requires: timeout, connection, protocol, or other.
func classifyError(err error) ErrorKind {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindOther
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return KindTimeout
		}
		return KindConnection
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindConnection
	}

	if isProtocolError(err) {
		return KindProtocol
	}

	return KindOther
}

func isProtocolError(err error) bool {
	var tlsErr *tls.RecordHeaderError
	if errors.As(err, &tlsErr) {
		return true
	}
	return errors.Is(err, http2.ErrNoCachedConn) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe)
}
