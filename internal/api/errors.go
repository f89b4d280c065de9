package api

import (
	"net/http"

	"github.com/ignite/onboarding/internal/pkg/httputil"
	"github.com/ignite/onboarding/internal/service/hiring"
)

// statusFor maps a workflow error kind to an HTTP status code.
func statusFor(kind hiring.Kind) int {
	switch kind {
	case hiring.KindNotFound:
		return http.StatusNotFound
	case hiring.KindConflict:
		return http.StatusConflict
	case hiring.KindValidation:
		return http.StatusBadRequest
	case hiring.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err using its workflow kind. Errors that are not
// workflow errors are treated as internal and never reach the client.
func writeError(w http.ResponseWriter, err error) {
	kind := hiring.KindOf(err)
	if kind == hiring.KindInternal {
		httputil.InternalError(w, err)
		return
	}
	httputil.JSON(w, statusFor(kind), httputil.ErrorResponse{
		Error: err.Error(),
		Code:  string(kind),
		Field: hiring.FieldOf(err),
	})
}
