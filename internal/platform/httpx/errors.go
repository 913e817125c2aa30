package httpx

import (
	"errors"
	"net/http"

	"github.com/meridian-wms/meridian-wms/internal/shared"
)

// RespondError maps domain errors to HTTP responses. Validation failures carry
// field-keyed messages; state and stock failures carry a single top-level one.
func RespondError(w http.ResponseWriter, err error) {
	var validation *shared.ValidationError
	if errors.As(err, &validation) {
		FailFields(w, http.StatusBadRequest, "validation failed", validation.Fields)
		return
	}
	switch {
	case shared.IsNotFound(err):
		Fail(w, http.StatusNotFound, err.Error())
	case shared.IsInvalidState(err):
		Fail(w, http.StatusConflict, err.Error())
	case shared.IsInsufficientStock(err):
		Fail(w, http.StatusUnprocessableEntity, err.Error())
	case shared.IsConflict(err), errors.Is(err, shared.ErrIdempotencyConflict):
		Fail(w, http.StatusConflict, err.Error())
	default:
		Fail(w, http.StatusInternalServerError, "internal error")
	}
}
