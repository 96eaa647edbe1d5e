package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/AlanaPvart7/Proyect2/internal/platform/httpx"
)

// RouteRegistrar registers a set of routes against the provided router.
type RouteRegistrar func(r chi.Router)

type groupName string

const (
	groupInventory     groupName = "inventory"
	groupOrders        groupName = "orders"
	groupOrderStatuses groupName = "order-statuses"
	groupInternal      groupName = "internal"
)

// mount order under the API prefix
var routeGroups = []groupName{groupInventory, groupOrders, groupOrderStatuses, groupInternal}

type routeGroup struct {
	registrar   RouteRegistrar
	middlewares []func(http.Handler) http.Handler
}

type routerConfig struct {
	basePath    string
	middlewares []func(http.Handler) http.Handler
	health      *HealthHandlers
	groups      map[groupName]*routeGroup
}

func (c *routerConfig) group(name groupName) *routeGroup {
	g, ok := c.groups[name]
	if !ok {
		g = &routeGroup{}
		c.groups[name] = g
	}
	return g
}

// Option customises the router configuration before construction.
type Option func(*routerConfig)

const (
	defaultAPIPrefix  = "/api/v1"
	defaultTimeout    = 60 * time.Second
	errorNotFoundCode = "route_not_found"
)

// NewRouter builds the chi router: shared middleware, the probes at the root and one group per
// resource under /api/v1. A group without a registrar answers 501.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{
		basePath: defaultAPIPrefix,
		middlewares: []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Timeout(defaultTimeout),
		},
		groups: make(map[groupName]*routeGroup, len(routeGroups)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	r := chi.NewRouter()
	useAll(r, cfg.middlewares)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError(errorNotFoundCode, fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)

	r.Route(cfg.basePath, func(api chi.Router) {
		for _, name := range routeGroups {
			g := cfg.group(name)
			api.Route("/"+string(name), func(sub chi.Router) {
				useAll(sub, g.middlewares)
				if g.registrar == nil {
					registerNotImplemented(sub, name)
					return
				}
				g.registrar(sub)
			})
		}
	})

	return r
}

func useAll(r chi.Router, mws []func(http.Handler) http.Handler) {
	for _, mw := range mws {
		if mw != nil {
			r.Use(mw)
		}
	}
}

// WithMiddlewares appends global middleware, run after RequestID, RealIP and Timeout.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.health = h
	}
}

// WithInventoryRoutes mounts lot endpoints at /inventory.
func WithInventoryRoutes(reg RouteRegistrar) Option {
	return withRegistrar(groupInventory, reg)
}

// WithOrderRoutes mounts order, line-item and status history endpoints at /orders.
func WithOrderRoutes(reg RouteRegistrar) Option {
	return withRegistrar(groupOrders, reg)
}

// WithOrderMiddlewares wraps only the /orders group.
func WithOrderMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return withGroupMiddlewares(groupOrders, mw)
}

// WithOrderStatusRoutes mounts status definition endpoints at /order-statuses.
func WithOrderStatusRoutes(reg RouteRegistrar) Option {
	return withRegistrar(groupOrderStatuses, reg)
}

// WithInternalRoutes mounts service-to-service endpoints at /internal.
func WithInternalRoutes(reg RouteRegistrar) Option {
	return withRegistrar(groupInternal, reg)
}

// WithInternalMiddlewares wraps only the /internal group, typically with OIDC verification.
func WithInternalMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return withGroupMiddlewares(groupInternal, mw)
}

func withRegistrar(name groupName, reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.group(name).registrar = reg
	}
}

func withGroupMiddlewares(name groupName, mw []func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		g := cfg.group(name)
		g.middlewares = append(g.middlewares, mw...)
	}
}

func registerNotImplemented(r chi.Router, name groupName) {
	handler := func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("not_implemented", fmt.Sprintf("%s routes not implemented", name), http.StatusNotImplemented))
	}
	r.HandleFunc("/", handler)
	r.HandleFunc("/*", handler)
	r.NotFound(handler)
	r.MethodNotAllowed(handler)
}
