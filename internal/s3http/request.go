// Package s3http is a thin, typed facade over net/http: set headers, set a
// body (buffer, or a byte range of a local file), send, and read back the
// status code, headers, and body. It is the pluggable-transport contract
// spec.md §6.3 describes, the only component that touches a socket, and the
// only one that reads the bytes of the file being uploaded.
//
// The shape — two constructors (bare URL, or endpoint+path+method+params)
// plus Send/SetHeaders and the GetResponseBody/GetResponseHeaders accessors
// (the source's GetContent/GetHeader) — mirrors
// original_source/reference/rest-client.cpp and
// original_source/src/s3-client.cpp's WebRequest class, translated from
// libcurl option-setting into http.Client/http.Request construction.
package s3http

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/FairForge/s3rest/internal/s3err"
)

// Request is a single outgoing HTTP request plus its captured response.
type Request struct {
	method  string
	rawURL  string
	headers map[string]string

	body          io.Reader
	bodyCloser    io.Closer
	contentLength int64

	client *http.Client
	logger *zap.Logger

	statusCode   int
	respHeaders  http.Header
	respBody     []byte
}

// Option configures a Request.
type Option func(*Request)

// WithLogger attaches a zap logger for request/response diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(r *Request) { r.logger = l }
}

// WithTimeout overrides the per-request transport timeout (default 300s,
// per spec.md §5).
func WithTimeout(d time.Duration) Option {
	return func(r *Request) { r.client.Timeout = d }
}

// WithInsecureSkipVerify disables TLS peer/host verification. Debug-only,
// off by default.
func WithInsecureSkipVerify() Option {
	return func(r *Request) {
		tr := &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}} // #nosec G402 -- explicit opt-in debug toggle, spec §4.5
		r.client.Transport = tr
	}
}

func newRequest(opts []Option) *Request {
	r := &Request{
		method:      "GET",
		headers:     map[string]string{},
		client:      &http.Client{Timeout: 300 * time.Second},
		logger:      zap.NewNop(),
		respHeaders: http.Header{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewFromURL builds a Request against a complete URL, defaulting to GET —
// the WebRequest(url) constructor's shape.
func NewFromURL(rawURL string, opts ...Option) *Request {
	r := newRequest(opts)
	r.rawURL = rawURL
	return r
}

// NewRequest builds a Request from an endpoint, path, method, query
// parameters, and headers — the WebRequest(ep, path, method, params,
// headers) constructor's shape.
func NewRequest(endpoint, path, method string, query, headers map[string]string, opts ...Option) *Request {
	r := newRequest(opts)
	r.method = strings.ToUpper(method)
	r.rawURL = buildURL(endpoint, path, query)
	for k, v := range headers {
		r.headers[k] = v
	}
	return r
}

func buildURL(endpoint, path string, query map[string]string) string {
	u := strings.TrimRight(endpoint, "/") + path
	if len(query) == 0 {
		return u
	}
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	v := url.Values{}
	for _, k := range keys {
		v.Set(k, query[k])
	}
	return u + "?" + v.Encode()
}

// SetHeaders replaces the header set to send.
func (r *Request) SetHeaders(headers map[string]string) {
	r.headers = make(map[string]string, len(headers))
	for k, v := range headers {
		r.headers[k] = v
	}
}

// SetMethod overrides the HTTP method.
func (r *Request) SetMethod(method string) {
	r.method = strings.ToUpper(method)
}

// PutFromBuffer uploads an in-memory payload of exact size.
func (r *Request) PutFromBuffer(data []byte) {
	r.method = http.MethodPut
	r.body = bytes.NewReader(data)
	r.contentLength = int64(len(data))
}

// PutFromFileRange uploads exactly length bytes starting at offset from a
// local, seekable file. The file is opened read-only and never mutated;
// Send (or the caller, on error before Send) is responsible for closing
// it via Close.
func (r *Request) PutFromFileRange(path string, offset, length int64) error {
	f, err := os.Open(path) // #nosec G304 -- path supplied by the CLI's own -f/--file flag
	if err != nil {
		return s3err.New(s3err.IO, "s3http.PutFromFileRange", err)
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		_ = f.Close()
		return s3err.New(s3err.IO, "s3http.PutFromFileRange", err)
	}
	r.method = http.MethodPut
	r.body = io.NewSectionReader(f, offset, length)
	r.bodyCloser = f
	r.contentLength = length
	return nil
}

// SetPostBody sends body verbatim as a POST payload (used for the
// CompleteMultipartUpload XML; Initiate sends no body and does not call it).
func (r *Request) SetPostBody(body []byte) {
	r.method = http.MethodPost
	r.body = bytes.NewReader(body)
	r.contentLength = int64(len(body))
}

// Close releases the file handle opened by PutFromFileRange, if any.
func (r *Request) Close() error {
	if r.bodyCloser != nil {
		return r.bodyCloser.Close()
	}
	return nil
}

// Send executes the request and captures the status code, response
// headers, and response body in memory.
func (r *Request) Send(ctx context.Context) error {
	defer func() { _ = r.Close() }()

	req, err := http.NewRequestWithContext(ctx, r.method, r.rawURL, r.body)
	if err != nil {
		return s3err.New(s3err.Transport, "s3http.Send", err)
	}
	if r.contentLength > 0 {
		req.ContentLength = r.contentLength
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	r.logger.Debug("sending request", zap.String("method", r.method), zap.String("url", r.rawURL))

	resp, err := r.client.Do(req)
	if err != nil {
		if isBrokenPipe(err) {
			return s3err.New(s3err.Transport, "s3http.Send", fmt.Errorf("broken pipe: %w", err))
		}
		return s3err.New(s3err.Transport, "s3http.Send", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return s3err.New(s3err.Protocol, "s3http.Send", err)
	}

	r.statusCode = resp.StatusCode
	r.respHeaders = resp.Header
	r.respBody = body

	r.logger.Debug("received response", zap.Int("status", resp.StatusCode), zap.Int("bodyLen", len(body)))
	return nil
}

// isBrokenPipe classifies a broken-pipe / connection-reset transport
// failure so the orchestrator's retry policy treats it like any other
// retriable Transport error — the Go idiom replacing the source's
// SIGPIPE-ignoring curl_global_init dance (design notes §9).
func isBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET)
}

// StatusCode returns the captured response status code.
func (r *Request) StatusCode() int { return r.statusCode }

// GetResponseBody returns the captured response body.
func (r *Request) GetResponseBody() []byte { return r.respBody }

// GetResponseHeaders returns the captured response headers as a
// concatenated "Name: Value\r\n" block, the shape the response parser
// (internal/respparse) searches.
func (r *Request) GetResponseHeaders() string {
	keys := make([]string, 0, len(r.respHeaders))
	for k := range r.respHeaders {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range r.respHeaders[k] {
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(v)
			b.WriteString("\r\n")
		}
	}
	return b.String()
}
