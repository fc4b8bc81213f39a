package http

import (
	"context"
	"errors"
	"net/http"

	"society/internal/auth"
	"society/internal/backend"
	"society/internal/core"
	applog "society/internal/log"
	"society/internal/queries"
)

var validationErrors = []error{
	core.ErrHouseNotFound,
	core.ErrInvalidAmount,
	core.ErrInvalidFloor,
	core.ErrEmptyHouseNo,
	core.ErrEmptyName,
	core.ErrEmptyVehicleNo,
	core.ErrEmptyOwnerName,
	core.ErrInvalidStatus,
	core.ErrInvalidDate,
	core.ErrInvalidRole,
	core.ErrEmptyHouseRef,
}

// writeError maps err to a status and writes it. Unexpected errors are
// logged and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			UnprocessableEntityError(err.Error()).Write(w)
			return
		}
	}

	var be *backend.Error
	switch {
	case errors.Is(err, queries.ErrNotImplemented):
		ErrorResponse(http.StatusNotImplemented, err.Error()).Write(w)
	case errors.Is(err, auth.ErrInvalidCredentials):
		ErrorResponse(http.StatusUnauthorized, err.Error()).Write(w)
	case backend.IsNoRows(err):
		NotFoundError("Not found").Write(w)
	case errors.As(err, &be) && (be.Code == backend.CodeUniqueViolation || be.Code == backend.CodeForeignKeyViolation):
		ErrorResponse(http.StatusConflict, be.Message).Write(w)
	case errors.Is(err, context.DeadlineExceeded):
		ErrorResponse(http.StatusGatewayTimeout, "Upstream timeout").Write(w)
	default:
		logger := applog.FromContext(r.Context()).WithComponent(applog.ComponentHTTP)
		applog.NewStructuredLogger(logger).LogError(r.Context(), "Request failed", err, operationFor(r.Method),
			applog.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", ""))
		InternalServerError().Write(w)
	}
}

func operationFor(method string) string {
	switch method {
	case http.MethodPost:
		return applog.OpCreate
	case http.MethodPut, http.MethodPatch:
		return applog.OpUpdate
	case http.MethodDelete:
		return applog.OpDelete
	default:
		return applog.OpRead
	}
}
