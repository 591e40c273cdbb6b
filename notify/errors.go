// ABOUTME: Classifies notification delivery failures as retryable or permanent
package notify

import (
	"context"
	"errors"
	"net"
	"net/http"

	amqp "github.com/rabbitmq/amqp091-go"
	"google.golang.org/api/googleapi"
)

// IsRetryable reports whether a failed Send is worth another attempt.
// Rendering errors, 4xx responses, and closed channels are permanent.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
	}

	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) {
		return amqpErr.Recover && !errors.Is(err, amqp.ErrClosed)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}
