package middleware

import (
	"context"
	"time"

	"pimsync_api/metrics"
	"pimsync_api/pkg/logger"
)

// RequestFunc performs one outbound API request and returns the raw response body.
type RequestFunc func(ctx context.Context, method, endpoint string, requestBody interface{}) ([]byte, error)

type Middleware func(next RequestFunc) RequestFunc

// Chain applies middlewares so that the first one is the outermost.
func Chain(next RequestFunc, mws ...Middleware) RequestFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		next = mws[i](next)
	}
	return next
}

// Metrics records every outbound request under a stable endpoint label.
// label maps the concrete endpoint (which may carry ids and query strings) to its template.
func Metrics(label func(endpoint string) string) Middleware {
	return func(next RequestFunc) RequestFunc {
		return func(ctx context.Context, method, endpoint string, requestBody interface{}) ([]byte, error) {
			start := time.Now()
			body, err := next(ctx, method, endpoint, requestBody)
			metrics.RecordPIMRequest(method, label(endpoint), err, time.Since(start))
			return body, err
		}
	}
}

func Logging(log logger.Logger, label func(endpoint string) string) Middleware {
	return func(next RequestFunc) RequestFunc {
		return func(ctx context.Context, method, endpoint string, requestBody interface{}) ([]byte, error) {
			start := time.Now()
			body, err := next(ctx, method, endpoint, requestBody)
			if err != nil {
				log.Warn("pim request failed", "method", method, "endpoint", label(endpoint), "duration", time.Since(start), "error", err)
				return body, err
			}
			log.Debug("pim request", "method", method, "endpoint", label(endpoint), "duration", time.Since(start), "bytes", len(body))
			return body, nil
		}
	}
}
