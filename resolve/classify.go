package resolve

import (
	"context"
	"net"
	"net/http"

	"github.com/loreweave/loreweave/errors"
)

// ClassifyStatus maps an HTTP status to the resolution error taxonomy.
// Returns nil for 2xx.
func ClassifyStatus(status int, endpoint string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return errors.Mark(errors.Newf("%s returned %d", endpoint, status), errors.ErrThrottled)
	case status >= 500:
		return errors.Mark(errors.Newf("%s returned %d", endpoint, status), errors.ErrServiceUnavailable)
	case status == http.StatusNotFound:
		return errors.Mark(errors.Newf("%s returned %d", endpoint, status), errors.ErrNotFound)
	case status >= 400:
		return errors.Mark(errors.Newf("%s rejected the request with %d", endpoint, status), errors.ErrInvalidRequest)
	default:
		return errors.Newf("%s returned unexpected status %d", endpoint, status)
	}
}

// ClassifyNetErr tags transport-level failures. Timeouts become
// ErrTimeout so the cascade advances; everything else passes through
// wrapped.
func ClassifyNetErr(err error, endpoint string) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.Mark(errors.Wrapf(err, "calling %s", endpoint), errors.ErrTimeout)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Mark(errors.Wrapf(err, "calling %s", endpoint), errors.ErrTimeout)
	}
	return errors.Wrapf(err, "calling %s", endpoint)
}
