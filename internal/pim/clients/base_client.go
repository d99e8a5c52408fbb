package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"pimsync_api/internal/syncerr"
	"pimsync_api/pkg/logger"
	"pimsync_api/pkg/middleware"
)

type AuthEngine interface {
	GetApiKey() string
	SetApiKey(request *http.Request)
}

type Options struct {
	Timeout           time.Duration
	RequestsPerMinute int
	HTTPClient        *http.Client
}

type BaseClient struct {
	ApiURL  string
	log     logger.Logger
	client  *http.Client
	limiter *rate.Limiter
	timeout time.Duration
	auth    AuthEngine
	do      middleware.RequestFunc
}

func NewBaseClient(apiURL string, log logger.Logger, opts Options) *BaseClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	limit := rate.Inf
	if opts.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RequestsPerMinute))
	}

	c := &BaseClient{
		ApiURL:  strings.TrimRight(apiURL, "/") + "/",
		log:     log,
		client:  httpClient,
		limiter: rate.NewLimiter(limit, 1),
		timeout: opts.Timeout,
	}
	c.do = middleware.Chain(c.send,
		middleware.Logging(log, EndpointLabel),
		middleware.Metrics(EndpointLabel),
	)
	return c
}

type unauthenticatedKey struct{}

// withoutAuth marks a request that must not carry the Authorization header.
func withoutAuth(ctx context.Context) context.Context {
	return context.WithValue(ctx, unauthenticatedKey{}, true)
}

func (c *BaseClient) doRequest(ctx context.Context, method, endpoint string, requestBody interface{}) ([]byte, error) {
	return c.do(ctx, method, endpoint, requestBody)
}

func (c *BaseClient) send(ctx context.Context, method, endpoint string, requestBody interface{}) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, syncerr.Network("rate-limit", "rate limiter wait failed", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if requestBody != nil {
		bodyBytes, err := json.Marshal(requestBody)
		if err != nil {
			return nil, syncerr.Invalid("encode-error", "failed to marshal request body", err)
		}
		body = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.ApiURL+strings.TrimLeft(endpoint, "/"), body)
	if err != nil {
		return nil, syncerr.Invalid("request-error", "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if skip, _ := ctx.Value(unauthenticatedKey{}).(bool); !skip && c.auth != nil {
		c.auth.SetApiKey(req)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		select {
		case <-ctx.Done():
			return nil, syncerr.Network("request-cancelled", "request was cancelled", ctx.Err())
		default:
			return nil, syncerr.Network("request-failed", "failed to execute request", err)
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, syncerr.Network(fmt.Sprintf("pim-error-%d", resp.StatusCode), http.StatusText(resp.StatusCode), nil)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, syncerr.Network("read-error", "failed to read response body", err)
	}
	return respBody, nil
}

var idSegment = regexp.MustCompile(`^[0-9a-fA-F-]{8,}$`)

// EndpointLabel drops the query string and replaces id segments so that
// metrics and logs use the endpoint template.
func EndpointLabel(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		endpoint = endpoint[:i]
	}
	parts := strings.Split(strings.Trim(endpoint, "/"), "/")
	for i, part := range parts {
		if idSegment.MatchString(part) {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

func decodeJSON(body []byte, out interface{}, what string) error {
	if err := json.Unmarshal(body, out); err != nil {
		return syncerr.TypeMismatch("decode-error", "unexpected "+what+" payload", err)
	}
	return nil
}
