package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/AlanaPvart7/Proyect2/internal/domain"
	"github.com/AlanaPvart7/Proyect2/internal/platform/httpx"
	"github.com/AlanaPvart7/Proyect2/internal/services"
)

type stubSystemService struct {
	report services.SystemHealthReport
	err    error
}

func (s *stubSystemService) HealthReport(context.Context) (services.SystemHealthReport, error) {
	return s.report, s.err
}

var _ services.SystemService = (*stubSystemService)(nil)

func TestNewRouter_DefaultMounts(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	healthHandlers := NewHealthHandlers(
		WithHealthSystemService(&stubSystemService{
			report: services.SystemHealthReport{
				Status:      domain.HealthStatusOK,
				Uptime:      5 * time.Second,
				GeneratedAt: now,
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {Status: domain.HealthStatusOK},
				},
			},
		}),
		WithHealthClock(func() time.Time { return now }),
	)

	router := NewRouter(WithHealthHandlers(healthHandlers))

	t.Run("readyz", func(t *testing.T) {
		rr := serve(router, http.MethodGet, "/readyz", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("unregistered group", func(t *testing.T) {
		rr := serve(router, http.MethodGet, "/api/v1/inventory", "")
		if rr.Code != http.StatusNotImplemented {
			t.Fatalf("expected status 501, got %d", rr.Code)
		}
	})

	t.Run("unknown route", func(t *testing.T) {
		rr := serve(router, http.MethodGet, "/api/v2/orders", "")
		if rr.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", rr.Code)
		}
		if env := decodeEnvelope(t, rr); env.Error != errorNotFoundCode {
			t.Fatalf("unexpected error code %q", env.Error)
		}
	})
}

func TestNewRouter_MountsRegistrarsAndGroupMiddleware(t *testing.T) {
	var orderMW, internalMW int
	counting := func(counter *int) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				*counter++
				next.ServeHTTP(w, r)
			})
		}
	}
	ok := func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			httpx.WriteSuccess(w, httpx.Response{Data: "ok"})
		})
	}

	router := NewRouter(
		WithOrderRoutes(ok),
		WithOrderMiddlewares(counting(&orderMW)),
		WithInternalRoutes(NewInternalHandlers(&stubReconciler{
			recomputeFn: func(_ context.Context, orderID string) (services.Order, error) {
				return services.Order{ID: orderID, Totals: domain.ZeroTotals()}, nil
			},
		}).Routes),
		WithInternalMiddlewares(counting(&internalMW)),
	)

	if rr := serve(router, http.MethodGet, "/api/v1/orders", ""); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from orders, got %d", rr.Code)
	}
	if rr := serve(router, http.MethodPost, "/api/v1/internal/orders/ord_1:recompute", ""); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from internal recompute, got %d: %s", rr.Code, rr.Body.String())
	}
	if orderMW != 1 || internalMW != 1 {
		t.Fatalf("expected group middleware to run once each, got orders=%d internal=%d", orderMW, internalMW)
	}
}

func TestInternalHandlersRecomputeNotFound(t *testing.T) {
	handlers := NewInternalHandlers(&stubReconciler{
		recomputeFn: func(_ context.Context, orderID string) (services.Order, error) {
			return services.Order{}, fmt.Errorf("%w: order %s", services.ErrNotFound, orderID)
		},
	})
	router := chi.NewRouter()
	handlers.Routes(router)

	rr := serve(router, http.MethodPost, "/orders/ord_9:recompute", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestHealthHandlersHealthz(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(30 * time.Second)
	handlers := NewHealthHandlers(
		WithHealthBuildInfo(services.BuildInfo{
			Version:     "1.0.0",
			CommitSHA:   "abc123",
			Environment: "prod",
			StartedAt:   start,
		}),
		WithHealthClock(func() time.Time { return now }),
	)

	rr := httptest.NewRecorder()
	handlers.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["status"] != domain.HealthStatusOK || body["version"] != "1.0.0" || body["uptime"] != "30s" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestHealthHandlersReadyzFailure(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC)
	cases := []struct {
		name    string
		svc     *stubSystemService
		details []string
	}{
		{
			name: "degraded dependency",
			svc: &stubSystemService{report: services.SystemHealthReport{
				Status: domain.HealthStatusDegraded,
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {Status: domain.HealthStatusOK},
					"redis":     {Status: domain.HealthStatusDegraded, Error: "dial tcp: connection refused"},
				},
			}},
			details: []string{"redis: dial tcp: connection refused"},
		},
		{
			name:    "report error",
			svc:     &stubSystemService{err: errors.New("collect failed")},
			details: []string{"health report unavailable"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handlers := NewHealthHandlers(WithHealthSystemService(tc.svc), WithHealthClock(func() time.Time { return now }))
			rr := httptest.NewRecorder()
			handlers.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if rr.Code != http.StatusServiceUnavailable {
				t.Fatalf("expected status 503, got %d", rr.Code)
			}
			var body struct {
				Details []string `json:"details"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("failed to parse response: %v", err)
			}
			if len(body.Details) != len(tc.details) || body.Details[0] != tc.details[0] {
				t.Fatalf("expected details %v, got %v", tc.details, body.Details)
			}
		})
	}
}
