package photos

import (
	"fmt"
	"net/http"

	"photo_sync_bot/internal/pkg/retry"
)

// APIError is a non-2xx response from the Photos API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("photos api: status=%d body=%s", e.StatusCode, e.Body)
}

func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// classifyStatus wraps a failed response as transient (429, 5xx) or
// permanent (remaining 4xx: malformed payload, revoked auth, ...).
func classifyStatus(status int, body string) error {
	apiErr := &APIError{StatusCode: status, Body: body}
	if retryableStatus[status] {
		return retry.Transient(apiErr)
	}
	return retry.Permanent(apiErr)
}
