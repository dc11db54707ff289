package retry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
)

// Transient reports whether err looks like a transient network or server
// failure worth retrying. It walks the error's cause chain.
func Transient(err error) bool {
	if err == nil {
		return false
	}

	// Caller cancelled — retrying cannot help.
	if errors.Is(err, context.Canceled) {
		return false
	}

	// Timeouts are retryable.
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	// HTTP status classification by error text. Provider clients fold the
	// response status into the error message, so this covers the whole
	// wrapped chain at once.
	errStr := err.Error()

	if strings.Contains(errStr, "429") || strings.Contains(errStr, "Too Many Requests") {
		return true
	}

	if strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") ||
		strings.Contains(errStr, http.StatusText(http.StatusInternalServerError)) ||
		strings.Contains(errStr, http.StatusText(http.StatusBadGateway)) ||
		strings.Contains(errStr, http.StatusText(http.StatusServiceUnavailable)) ||
		strings.Contains(errStr, http.StatusText(http.StatusGatewayTimeout)) {
		return true
	}

	// Other client errors (4xx) are programming or auth problems.
	if strings.Contains(errStr, "400") ||
		strings.Contains(errStr, "401") ||
		strings.Contains(errStr, "403") ||
		strings.Contains(errStr, "404") {
		return false
	}

	// Unknown errors from remote calls are assumed transient.
	return true
}
