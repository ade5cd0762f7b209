package nats

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/photoblog-ai/internal/core/domain"
	"github.com/kirillkom/photoblog-ai/internal/infrastructure/resilience"
)

const publishUploadedOperation = "nats.publish_photo_uploaded"

// PublishResilienceConfig is the retry policy for upload events. It is kept
// apart from the model call policy: publishes are cheap, so retries are short
// and the breaker guards against a broker outage.
func PublishResilienceConfig() resilience.Config {
	cfg := resilience.DefaultConfig()
	cfg.MaxRetries = 2
	cfg.BaseDelay = 100 * time.Millisecond
	cfg.MaxDelay = 400 * time.Millisecond
	cfg.Backoff = resilience.BackoffExponential
	cfg.BreakerEnabled = true
	return cfg
}

// isRejectedEvent reports errors caused by the event itself. Sending it
// again cannot succeed.
func isRejectedEvent(err error) bool {
	return errors.Is(err, nats.ErrMaxPayload) ||
		errors.Is(err, nats.ErrBadSubject) ||
		errors.Is(err, nats.ErrInvalidMsg)
}

func isBrokerUnavailable(err error) bool {
	return errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrConnectionReconnecting) ||
		errors.Is(err, nats.ErrReconnectBufExceeded) ||
		errors.Is(err, nats.ErrDisconnected)
}

func classifyPublishError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	case isRejectedEvent(err):
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	case isBrokerUnavailable(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	}
}

// publishError maps a failed publish onto domain kinds: a rejected event is
// invalid input, an unreachable broker or open circuit is temporary.
func publishError(err error) error {
	switch {
	case err == nil:
		return nil
	case domain.IsKind(err, domain.ErrTemporary), domain.IsKind(err, domain.ErrInvalidInput):
		return err
	case isRejectedEvent(err):
		return domain.WrapError(domain.ErrInvalidInput, publishUploadedOperation, err)
	case isBrokerUnavailable(err), resilience.IsCircuitOpen(err):
		return domain.WrapError(domain.ErrTemporary, publishUploadedOperation, err)
	default:
		return err
	}
}
