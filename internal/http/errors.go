package http

import (
	"errors"
	"net/http"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
)

const (
	msgInvalidID      = "Invalid expense ID"
	msgNotFound       = "Expense not found"
	msgEmptyPayload   = "No fields provided for update"
	msgInvalidBody    = "Invalid request body"
	msgInternal       = "Internal server error"
	msgDeleted        = "Expense deleted successfully"
	msgRateLimited    = "Rate limit exceeded. Please try again later."
	msgRouteNotFound  = "Not found"
	msgMethodNotAllow = "Method not allowed"
)

// errorResponse maps an error kind to its status and body. Anything
// unrecognised is a 500 with a generic message.
func errorResponse(err error) *JSONResponseBuilder {
	var vErr *core.ValidationError
	switch {
	case errors.As(err, &vErr):
		return ValidationErrorResponse(vErr.Errors)
	case errors.Is(err, core.ErrInvalidID):
		return BadRequestError(msgInvalidID)
	case errors.Is(err, core.ErrEmptyPayload):
		return BadRequestError(msgEmptyPayload)
	case errors.Is(err, errInvalidBody):
		return BadRequestError(msgInvalidBody)
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError(msgNotFound)
	default:
		return InternalServerError()
	}
}

// writeError answers r with the response for err. Server-side failures are
// logged through the request logger, which carries the request id.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := errorResponse(err)
	if resp.statusCode >= http.StatusInternalServerError {
		applog.NewStructuredLogger(applog.FromContext(r.Context())).LogError(r.Context(),
			"Expense request failed", err, applog.ComponentHTTP, op, nil)
	}
	resp.Write(w)
}
