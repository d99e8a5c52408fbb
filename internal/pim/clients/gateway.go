package clients

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"pimsync_api/internal/pim/models"
	"pimsync_api/internal/syncerr"
	"pimsync_api/pkg/logger"
)

// MaxTries bounds the attempts of one call, the first one included.
const MaxTries = 3

// Gateway keeps the session token and re-authenticates whenever a call fails.
// Retries are immediate.
type Gateway struct {
	base     *BaseClient
	username string
	secret   string
	log      logger.Logger

	mu    sync.RWMutex
	token string
}

func NewGateway(base *BaseClient, username, secret string, log logger.Logger) *Gateway {
	g := &Gateway{base: base, username: username, secret: secret, log: log}
	base.auth = g
	return g
}

func (g *Gateway) GetApiKey() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.token
}

func (g *Gateway) SetApiKey(request *http.Request) {
	if token := g.GetApiKey(); token != "" {
		request.Header.Set("Authorization", "EN "+token)
	}
}

// Authenticate exchanges the credentials for a token and caches it.
func (g *Gateway) Authenticate(ctx context.Context) (string, error) {
	query := url.Values{}
	query.Set("username", g.username)
	query.Set("secret", g.secret)

	body, err := g.base.doRequest(withoutAuth(ctx), http.MethodGet, "api/auth/?"+query.Encode(), nil)
	if err != nil {
		return "", syncerr.Auth("auth-error", "auth error", err)
	}

	var auth models.AuthResponse
	if err := decodeJSON(body, &auth, "auth"); err != nil || auth.Value == "" {
		return "", syncerr.Auth("auth-value-empty", "auth value is empty", err)
	}

	g.mu.Lock()
	g.token = auth.Value
	g.mu.Unlock()
	return auth.Value, nil
}

// Call performs an authenticated request. A failed attempt triggers a fresh
// authentication before the next one, up to MaxTries attempts in total; the
// last error is returned.
func (g *Gateway) Call(ctx context.Context, method, endpoint string, requestBody interface{}) ([]byte, error) {
	if g.GetApiKey() == "" {
		if _, err := g.Authenticate(ctx); err != nil {
			g.log.Warn("initial authentication failed", "error", err)
		}
	}

	body, err := g.base.doRequest(ctx, method, endpoint, requestBody)
	for tries := 1; err != nil && tries < MaxTries; tries++ {
		if ctx.Err() != nil {
			break
		}
		if _, authErr := g.Authenticate(ctx); authErr != nil {
			err = authErr
			continue
		}
		body, err = g.base.doRequest(ctx, method, endpoint, requestBody)
	}
	return body, err
}
