package daemon

import (
	"net/http"

	"reelnotes/internal/services"
)

// statusClientClosedRequest is the non-standard code for a request the
// client abandoned before the pipeline finished.
const statusClientClosedRequest = 499

// httpStatusForKind maps a pipeline failure kind onto a response status.
func httpStatusForKind(kind services.Kind) int {
	switch kind {
	case services.KindUnsupportedSource:
		return http.StatusBadRequest
	case services.KindAccessDenied:
		return http.StatusForbidden
	case services.KindMediaCorrupt:
		return http.StatusUnprocessableEntity
	case services.KindUpstreamRateLimited:
		return http.StatusTooManyRequests
	case services.KindTransientNetworkFailure, services.KindRetryExhausted, services.KindUpstreamMalformedResponse:
		return http.StatusBadGateway
	case services.KindCancelled:
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}
