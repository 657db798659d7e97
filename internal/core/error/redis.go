package errx

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// WrapRedis classifies a failure of the Redis backed session transcript store.
// A missing key means the session is unknown; timeouts, a closed client and
// other transport failures each get their own status.
func WrapRedis(err error) error {
	if err == nil {
		return nil
	}

	var netErr net.Error
	switch {
	case errors.Is(err, redis.Nil):
		return New(err, http.StatusNotFound, TranscriptNotFoundMessage)
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return New(err, http.StatusGatewayTimeout, TranscriptTimeoutMessage)
	case errors.Is(err, redis.ErrClosed):
		return New(err, http.StatusServiceUnavailable, TranscriptUnavailableMessage)
	default:
		return New(err, http.StatusBadGateway, TranscriptErrorMessage)
	}
}
