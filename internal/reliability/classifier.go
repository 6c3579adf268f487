package reliability

import (
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// HTTPError carries a non-2xx status from a dependency so callers can decide
// whether a retry is worthwhile.
type HTTPError struct {
	Status int
	Detail string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Detail)
}

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether the dependency failure behind err is worth
// retrying: throttling and server-side HTTP failures, and abnormal websocket
// closures that do not indicate a protocol fault of ours.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return IsRetryableHTTPStatus(httpErr.Status)
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return IsRetryableCloseCode(closeErr.Code)
	}
	return false
}

// IsRetryableCloseCode classifies websocket close codes from the upstream
// stream.
func IsRetryableCloseCode(code int) bool {
	switch code {
	case websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseInternalServerErr,
		websocket.CloseServiceRestart,
		websocket.CloseTryAgainLater:
		return true
	default:
		return false
	}
}

// ExponentialBackoff computes a deterministic capped backoff duration.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
