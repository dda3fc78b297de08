package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"tipflow/internal/services"
)

const maxErrorBody = 4 << 10

// Options configures a Client.
type Options struct {
	Component         string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	UserAgent         string
	Authorize         func(*http.Request)
	HTTPClient        *http.Client
}

// Client issues JSON requests against a single vendor API.
type Client struct {
	component string
	baseURL   *url.URL
	userAgent string
	authorize func(*http.Request)
	http      *http.Client
	limiter   *rate.Limiter
}

// New constructs a client. A non-positive RequestsPerSecond disables limiting.
func New(opts Options) (*Client, error) {
	component := strings.TrimSpace(opts.Component)
	if component == "" {
		component = "api"
	}
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, services.Wrap(services.ErrConfiguration, component, "configure client", fmt.Sprintf("invalid base url %q", opts.BaseURL), err)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = "tipflow/1"
	}
	return &Client{
		component: component,
		baseURL:   base,
		userAgent: userAgent,
		authorize: opts.Authorize,
		http:      httpClient,
		limiter:   limiter,
	}, nil
}

// Request describes one API call.
type Request struct {
	Operation string
	Method    string
	Path      string
	Query     url.Values
	Body      any
}

// Do sends the request and decodes a JSON response into out (which may be nil).
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	operation := req.Operation
	if operation == "" {
		operation = strings.ToLower(method) + " " + req.Path
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return services.Wrap(services.ErrTimeout, c.component, operation, "rate limiter wait", err)
	}

	target := c.baseURL.JoinPath(req.Path)
	if len(req.Query) > 0 {
		target.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return services.Wrap(services.ErrValidation, c.component, operation, "encode request body", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return services.Wrap(services.ErrValidation, c.component, operation, "build request", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.authorize != nil {
		c.authorize(httpReq)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return services.Wrap(transportMarker(ctx, err), c.component, operation, "send request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := &StatusError{
			StatusCode: resp.StatusCode,
			Method:     method,
			URL:        redactedURL(target),
			Body:       strings.TrimSpace(string(snippet)),
		}
		return services.Wrap(StatusMarker(resp.StatusCode), c.component, operation, "unexpected response", statusErr)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrExternalService, c.component, operation, "decode response", err)
	}
	return nil
}

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	Method     string
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// StatusMarker maps an HTTP status onto the services error taxonomy.
func StatusMarker(code int) error {
	switch {
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity, code == http.StatusConflict:
		return services.ErrValidation
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return services.ErrConfiguration
	case code == http.StatusNotFound:
		return services.ErrNotFound
	case code == http.StatusRequestTimeout, code == http.StatusGatewayTimeout:
		return services.ErrTimeout
	case code == http.StatusTooManyRequests, code >= 500:
		return services.ErrTransient
	default:
		return services.ErrExternalService
	}
}

func transportMarker(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return services.ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.ErrTimeout
	}
	return services.ErrTransient
}

// redactedURL drops the query string, which may carry GROQ parameters or
// callback secrets, from error messages.
func redactedURL(u *url.URL) string {
	clone := *u
	clone.RawQuery = ""
	clone.User = nil
	return clone.String()
}
