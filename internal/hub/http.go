package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultRequestTimeout bounds a single request when no option overrides it.
	DefaultRequestTimeout = 5 * time.Second

	// maxResponseBytes caps how much of a reply is read.
	maxResponseBytes = 4 << 20
)

// HTTPTransport is the net/http implementation of Transport.
//
// Thread Safety:
//   - Safe for concurrent use; the underlying http.Client is shared.
type HTTPTransport struct {
	base    *url.URL
	auth    Auth
	client  *http.Client
	timeout time.Duration
}

// HTTPOption configures an HTTPTransport.
type HTTPOption func(*HTTPTransport)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(t *HTTPTransport) {
		t.client = c
	}
}

// WithRequestTimeout sets the per-request timeout.
func WithRequestTimeout(d time.Duration) HTTPOption {
	return func(t *HTTPTransport) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// NewHTTPTransport creates a transport for the hub at baseURL. The URL is
// normalised first, so a bare host is accepted.
func NewHTTPTransport(baseURL string, auth Auth, opts ...HTTPOption) (*HTTPTransport, error) {
	normalised, err := NormalizeURL(baseURL)
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(normalised)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}

	t := &HTTPTransport{
		base:    base,
		auth:    auth,
		client:  &http.Client{},
		timeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// NewHTTPTransportFactory returns a TransportFactory producing HTTPTransports
// with the given options.
func NewHTTPTransportFactory(opts ...HTTPOption) TransportFactory {
	return func(baseURL string, auth Auth) (Transport, error) {
		return NewHTTPTransport(baseURL, auth, opts...)
	}
}

// BaseURL returns the normalised API base URL.
func (t *HTTPTransport) BaseURL() string {
	return t.base.String()
}

// Do sends req and returns the reply, or a *Fault.
func (t *HTTPTransport) Do(ctx context.Context, req Request) (*Response, error) {
	fault := func(kind FaultKind, err error) *Fault {
		return &Fault{Kind: kind, Method: req.Method, Path: req.Path, Err: err}
	}

	target := t.base.ResolveReference(&url.URL{
		Path:     strings.TrimPrefix(req.Path, "/"),
		RawQuery: req.Query.Encode(),
	})

	var body io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fault(FaultProtocol, fmt.Errorf("encoding request body: %w", err))
		}
		body = bytes.NewReader(encoded)
	}

	reqCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, req.Method, target.String(), body)
	if err != nil {
		return nil, fault(FaultProtocol, fmt.Errorf("building request: %w", err))
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if h := t.auth.Header(); h != "" {
		httpReq.Header.Set("Authorization", h)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fault(FaultUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fault(FaultUnreachable, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f := fault(FaultHTTP, nil)
		f.StatusCode = resp.StatusCode
		f.Code, f.Message = parseHubError(data)
		return nil, f
	}

	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

// hubError is the error body the hub sends with most non-2xx replies.
type hubError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func parseHubError(data []byte) (code, message string) {
	var he hubError
	if len(data) == 0 || json.Unmarshal(data, &he) != nil {
		return "", ""
	}
	return he.Code, he.Message
}
