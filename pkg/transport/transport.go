// Package transport sends resource requests over HTTP.
package transport

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fruitsalade/rested/internal/logging"
	"github.com/fruitsalade/rested/internal/metrics"
)

// Methods accepted by the transport.
const (
	MethodGet    = "get"
	MethodPost   = "post"
	MethodPut    = "put"
	MethodDelete = "delete"
)

// Request describes one HTTP exchange. Body is JSON-encoded unless it is
// already a []byte.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    any
}

// Response carries the decoded body of a successful exchange. JSON bodies
// decode into map[string]any / []any with json.Number for numbers.
type Response struct {
	Status int
	Header http.Header
	Body   any
}

// Transport sends a request and returns its response.
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// Func adapts a function to the Transport interface.
type Func func(ctx context.Context, req *Request) (*Response, error)

// Send calls f.
func (f Func) Send(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// StatusError is returned when the server answers outside the 2xx range.
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   any
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: server returned %d", strings.ToUpper(e.Method), e.URL, e.Status)
}

// Config holds HTTP transport configuration.
type Config struct {
	Timeout time.Duration
	Logger  *zap.Logger
}

// HTTP implements Transport with net/http.
type HTTP struct {
	httpClient *http.Client
	log        *zap.Logger
}

// NewHTTP creates an HTTP transport.
func NewHTTP(cfg Config) *HTTP {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Named("transport")
	}

	return &HTTP{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		log: cfg.Logger,
	}
}

// Send performs the request.
func (t *HTTP) Send(ctx context.Context, req *Request) (*Response, error) {
	method := strings.ToUpper(req.Method)

	var body io.Reader
	if req.Body != nil {
		data, err := encodeBody(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Accept-Encoding", "gzip")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		metrics.RecordTransportRequest(req.Method, 0, time.Since(start))
		return nil, fmt.Errorf("%s %s: %w", method, req.URL, err)
	}
	defer resp.Body.Close()
	metrics.RecordTransportRequest(req.Method, resp.StatusCode, time.Since(start))

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer gr.Close()
		reader = gr
	}

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	decoded := decodeBody(raw, resp.Header.Get("Content-Type"))

	t.log.Debug("request completed",
		zap.String("method", method),
		zap.String("url", req.URL),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Method: req.Method, URL: req.URL, Status: resp.StatusCode, Body: decoded}
	}

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: decoded}, nil
}

func encodeBody(v any) ([]byte, error) {
	if b, ok := v.([]byte); ok {
		return b, nil
	}
	return json.Marshal(v)
}

// decodeBody decodes JSON payloads and falls back to the raw string for
// anything that is not JSON. An empty body decodes to nil.
func decodeBody(raw []byte, contentType string) any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	if !strings.Contains(contentType, "json") && trimmed[0] != '{' && trimmed[0] != '[' {
		return string(raw)
	}
	v, err := DecodeJSON(trimmed)
	if err != nil {
		return string(raw)
	}
	return v
}

// DecodeJSON decodes data keeping numbers as json.Number so identities
// larger than 2^53 survive.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
