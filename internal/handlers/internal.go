package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/AlanaPvart7/Proyect2/internal/platform/auth"
	"github.com/AlanaPvart7/Proyect2/internal/platform/httpx"
	"github.com/AlanaPvart7/Proyect2/internal/platform/requestctx"
	"github.com/AlanaPvart7/Proyect2/internal/services"
)

// InternalHandlers serves server-to-server endpoints. Authentication is applied by the
// /internal group middleware (OIDC).
type InternalHandlers struct {
	reconciler services.Reconciler
}

// NewInternalHandlers constructs a new InternalHandlers instance.
func NewInternalHandlers(reconciler services.Reconciler) *InternalHandlers {
	return &InternalHandlers{reconciler: reconciler}
}

// Routes registers the /internal endpoints.
func (h *InternalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/orders/{orderID}:recompute", h.recomputeOrder)
}

func (h *InternalHandlers) recomputeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reconciler == nil {
		writeUnavailable(ctx, w, "reconciler")
		return
	}

	orderID := chi.URLParam(r, "orderID")
	order, err := h.reconciler.RecomputeOrder(ctx, orderID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	fields := []zap.Field{zap.String("orderId", order.ID)}
	if svc, ok := auth.ServiceIdentityFromContext(ctx); ok && svc != nil {
		fields = append(fields, zap.String("caller", svc.Subject))
	}
	requestctx.Logger(ctx).Info("internal recompute", fields...)
	httpx.WriteSuccess(w, httpx.Response{Message: "order totals recomputed", Data: buildOrderPayload(order, nil)})
}
