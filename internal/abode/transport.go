package abode

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Request tier path markers.
const (
	authPathPrefix = "/api/auth2/"
	sessionPath    = "/api/v1/session"
)

// Application error codes handled by the response side of the transport.
const (
	// codeGatewayUnreachable means the Abode gateway is temporarily offline.
	// It is expected to clear on its own.
	codeGatewayUnreachable = 504

	// codeBadGateway is treated as a sign of session expiry.
	codeBadGateway = 502
)

// Default transport settings.
const (
	DefaultBaseURL        = "https://my.goabode.com"
	DefaultRequestTimeout = 30 * time.Second
	userAgentBase         = "Homebridge"
	maxResponseBodySize   = 4 << 20
)

// tier is the class a request path belongs to. Each tier requires a
// different subset of the session's auth fields.
type tier int

const (
	tierAuth tier = iota
	tierSession
	tierGeneral
)

func (t tier) String() string {
	switch t {
	case tierAuth:
		return "auth"
	case tierSession:
		return "session"
	default:
		return "general"
	}
}

// classifyPath maps an API path to its request tier.
func classifyPath(path string) tier {
	switch {
	case strings.HasPrefix(path, authPathPrefix):
		return tierAuth
	case path == sessionPath:
		return tierSession
	default:
		return tierGeneral
	}
}

// UserAgent builds the outbound User-Agent from the host version tag.
func UserAgent(hostVersion string) string {
	if hostVersion == "" {
		return userAgentBase
	}
	return userAgentBase + "/" + hostVersion
}

// Renewer refreshes the session when the API signals it has gone stale.
type Renewer interface {
	Renew(ctx context.Context)
}

// ClientConfig holds settings for the HTTP transport.
type ClientConfig struct {
	// BaseURL is the API origin, without a trailing slash.
	BaseURL string

	// Timeout bounds each request. Zero uses DefaultRequestTimeout.
	Timeout time.Duration

	// HostVersion is appended to the User-Agent.
	HostVersion string

	// Transport overrides the underlying round tripper (tests).
	Transport http.RoundTripper
}

// Response is a fully read API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("%w: empty response body", ErrTransport)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%w: decoding response: %w", ErrTransport, err)
	}
	return nil
}

// Client is the single configured HTTP client for the Abode API.
//
// Requests pass through a tier check that attaches the User-Agent, Cookie,
// ABODE-API-KEY and Authorization headers from the shared Session, failing
// before the network when a required field is empty. Responses pass through
// soft-fail handling for gateway-unreachable and bad-gateway error codes.
//
// Thread Safety: All methods are safe for concurrent use.
type Client struct {
	baseURL string
	session *Session
	http    *http.Client
	renewer Renewer
	logger  Logger
}

// NewClient creates a transport bound to session.
func NewClient(session *Session, cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	next := cfg.Transport
	if next == nil {
		next = http.DefaultTransport
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		session: session,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &tierTransport{
				session:   session,
				userAgent: UserAgent(cfg.HostVersion),
				next:      next,
			},
		},
		logger: noopLogger{},
	}
}

// SetLogger sets the logger used by the transport.
func (c *Client) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// SetRenewer sets the component called when the API reports a bad gateway.
func (c *Client) SetRenewer(r Renewer) {
	c.renewer = r
}

// Session returns the session the client is bound to.
func (c *Client) Session() *Session {
	return c.session
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPut, path, body)
}

// Do sends a request to path, which must start with "/".
//
// Non-2xx responses return a *ResponseError, except the soft-fail codes
// which return the response with a nil error.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: missing request path", ErrConfiguration)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding request body: %w", ErrTransport, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", ErrConfiguration, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		if precondition := preconditionError(err); precondition != nil {
			return nil, precondition
		}
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer httpResp.Body.Close() //nolint:errcheck // read-only body

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrTransport, err)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	return c.handleErrorResponse(ctx, method, path, resp)
}

// handleErrorResponse applies the soft-fail rules to a non-2xx response.
func (c *Client) handleErrorResponse(ctx context.Context, method, path string, resp *Response) (*Response, error) {
	respErr := &ResponseError{StatusCode: resp.StatusCode}

	var payload struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(resp.Body, &payload) == nil {
		respErr.Code = payload.Code
		respErr.Message = payload.Message
	}

	code := respErr.Code
	if code == 0 {
		code = resp.StatusCode
	}

	switch code {
	case codeGatewayUnreachable:
		c.logger.Warn("abode gateway unreachable, ignoring",
			"method", method,
			"path", path,
		)
		return resp, nil

	case codeBadGateway:
		// Sign-in calls run inside Authenticate; renewing from there re-enters it.
		if classifyPath(path) == tierAuth {
			c.logger.Warn("abode bad gateway during sign-in",
				"method", method,
				"path", path,
			)
			return resp, nil
		}
		c.logger.Warn("abode bad gateway, renewing session",
			"method", method,
			"path", path,
		)
		if c.renewer != nil {
			c.renewer.Renew(ctx)
		}
		return resp, nil
	}

	c.logger.Error("abode request failed",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"code", respErr.Code,
	)
	return resp, respErr
}

// tierTransport is the request side of the transport. It classifies each
// request path and attaches the headers that tier requires.
type tierTransport struct {
	session   *Session
	userAgent string
	next      http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *tierTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	path := req.URL.Path
	if path == "" {
		return nil, &preconditionErr{err: fmt.Errorf("%w: missing request path", ErrConfiguration)}
	}

	out := req.Clone(req.Context())
	out.Header.Set("User-Agent", t.userAgent)

	if err := t.applyAuth(out.Header, classifyPath(path)); err != nil {
		closeRequestBody(req)
		return nil, &preconditionErr{err: err}
	}

	return t.next.RoundTrip(out)
}

// applyAuth attaches session headers for the tier and reports the first
// missing field in the order session, API key, OAuth token.
func (t *tierTransport) applyAuth(h http.Header, class tier) error {
	tokens := t.session.Tokens()
	if tokens.Session != "" {
		h.Set("Cookie", cookieValue(tokens.Session, t.session.InstanceID()))
	}
	if class == tierAuth {
		return nil
	}

	if tokens.Session == "" {
		return ErrMissingSession
	}
	if tokens.APIKey == "" {
		return ErrMissingAPIKey
	}
	h.Set("ABODE-API-KEY", tokens.APIKey)
	if class == tierSession {
		return nil
	}

	if tokens.OAuthToken == "" {
		return ErrMissingOAuth
	}
	h.Set("Authorization", "Bearer "+tokens.OAuthToken)
	return nil
}

func closeRequestBody(req *http.Request) {
	if req.Body != nil {
		req.Body.Close() //nolint:errcheck // body is discarded
	}
}

// preconditionErr marks an error raised before the request reached the
// network so Client.Do can return it unwrapped from *url.Error.
type preconditionErr struct {
	err error
}

func (e *preconditionErr) Error() string { return e.err.Error() }
func (e *preconditionErr) Unwrap() error { return e.err }

func preconditionError(err error) error {
	var pe *preconditionErr
	if errors.As(err, &pe) {
		return pe.err
	}
	return nil
}
