package web

import (
	"fmt"
	"net/http"

	"pimsync_api/internal/auth"
	"pimsync_api/internal/catalog/app/web/handlers"
	"pimsync_api/metrics"
	"pimsync_api/pkg/logger"
	"pimsync_api/pkg/middleware"
)

// routeConfig хранит конфигурацию маршрута.
type routeConfig struct {
	handlerKey string
	routePath  string
	method     string
	admin      bool
	castFunc   func(handlers.Handler) http.HandlerFunc
}

var routes = []routeConfig{
	{
		handlerKey: "ImportHandler",
		routePath:  "/api/import",
		method:     http.MethodPost,
		admin:      true,
		castFunc: func(h handlers.Handler) http.HandlerFunc {
			return h.(*handlers.ImportHandler).ImportProductsHandler
		},
	},
	{
		handlerKey: "ImportHandler",
		routePath:  "/api/import/requirement-set",
		method:     http.MethodPost,
		admin:      true,
		castFunc: func(h handlers.Handler) http.HandlerFunc {
			return h.(*handlers.ImportHandler).ImportRequirementSetHandler
		},
	},
	{
		handlerKey: "ImportHandler",
		routePath:  "/api/sync/categories",
		method:     http.MethodPost,
		admin:      true,
		castFunc: func(h handlers.Handler) http.HandlerFunc {
			return h.(*handlers.ImportHandler).SyncCategoriesHandler
		},
	},
	{
		handlerKey: "SyncHandler",
		routePath:  "/api/sync",
		method:     http.MethodPost,
		admin:      true,
		castFunc: func(h handlers.Handler) http.HandlerFunc {
			return h.(*handlers.SyncHandler).SyncProductsHandler
		},
	},
	{
		handlerKey: "HealthHandler",
		routePath:  "/healthz",
		method:     http.MethodGet,
		castFunc: func(h handlers.Handler) http.HandlerFunc {
			return h.(*handlers.HealthHandler).HealthzHandler
		},
	},
}

// SetupRoutes builds the admin mux. Admin routes require an admin token when
// jwtSecret is set.
func SetupRoutes(jwtSecret string, log logger.Logger, hs ...handlers.Handler) (http.Handler, error) {
	handlerMap := make(map[string]handlers.Handler)
	for _, handler := range hs {
		switch h := handler.(type) {
		case *handlers.ImportHandler:
			handlerMap["ImportHandler"] = h
		case *handlers.SyncHandler:
			handlerMap["SyncHandler"] = h
		case *handlers.HealthHandler:
			handlerMap["HealthHandler"] = h
		default:
			log.Warn("unknown handler type", "type", fmt.Sprintf("%T", h))
		}
	}

	var protect func(http.Handler) http.Handler
	if jwtSecret != "" {
		authenticate := auth.AuthMiddleware(jwtSecret)
		requireAdmin := auth.RoleMiddleware(auth.RoleAdmin)
		protect = func(next http.Handler) http.Handler {
			return authenticate(requireAdmin(next))
		}
	} else {
		log.Warn("jwt secret is empty, admin routes are unprotected")
	}

	mux := http.NewServeMux()
	for _, rCfg := range routes {
		handler, ok := handlerMap[rCfg.handlerKey]
		if !ok {
			return nil, fmt.Errorf("%s not provided for %s", rCfg.handlerKey, rCfg.routePath)
		}
		var h http.Handler = allowMethod(rCfg.method, rCfg.castFunc(handler))
		if rCfg.admin && protect != nil {
			h = protect(h)
		}
		mux.Handle(rCfg.routePath, h)
	}
	mux.Handle("/metrics", metrics.MetricsHandler())

	return middleware.PrometheusMiddleware(middleware.AccessLog(log)(mux)), nil
}

func allowMethod(method string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	})
}
