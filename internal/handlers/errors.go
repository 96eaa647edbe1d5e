package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/AlanaPvart7/Proyect2/internal/platform/auth"
	"github.com/AlanaPvart7/Proyect2/internal/platform/httpx"
	"github.com/AlanaPvart7/Proyect2/internal/platform/pagination"
	"github.com/AlanaPvart7/Proyect2/internal/platform/requestctx"
	"github.com/AlanaPvart7/Proyect2/internal/services"
)

// writeServiceError maps the service error taxonomy onto the failure envelope.
// Unexpected errors are logged and answered with a generic message.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrInvalidIdentifier):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_identifier", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, pagination.ErrInvalidPageSize),
		errors.Is(err, pagination.ErrInvalidOffset),
		errors.Is(err, pagination.ErrInvalidPageToken):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", err.Error(), http.StatusForbidden))
	case errors.Is(err, services.ErrNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrInsufficientStock):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrConflict):
		httpx.WriteError(ctx, w, httpx.NewError("conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrUnavailable):
		requestctx.Logger(ctx).Warn("dependency unavailable", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("unavailable", "service temporarily unavailable", http.StatusServiceUnavailable))
	case errors.Is(err, services.ErrReconciliationFailed):
		requestctx.Logger(ctx).Error("order reconciliation failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("reconciliation_failed", "order totals could not be recomputed", http.StatusInternalServerError))
	default:
		requestctx.Logger(ctx).Error("unexpected service error", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
	}
}

func writeDecodeError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, httpx.ErrBodyTooLarge) {
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body too large", http.StatusRequestEntityTooLarge))
		return
	}
	httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
}

func writeUnavailable(ctx context.Context, w http.ResponseWriter, name string) {
	httpx.WriteError(ctx, w, httpx.NewError(name+"_unavailable", name+" service unavailable", http.StatusServiceUnavailable))
}

// requesterFromContext resolves the authenticated identity into a services.Requester.
func requesterFromContext(ctx context.Context) (services.Requester, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil {
		return services.Requester{}, false
	}
	uid := strings.TrimSpace(identity.UID)
	if uid == "" {
		return services.Requester{}, false
	}
	return services.Requester{UserID: uid, IsAdmin: identity.HasRole(auth.RoleAdmin)}, true
}

func requireRequester(ctx context.Context, w http.ResponseWriter) (services.Requester, bool) {
	requester, ok := requesterFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return services.Requester{}, false
	}
	return requester, true
}
