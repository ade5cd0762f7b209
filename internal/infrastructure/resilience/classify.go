package resilience

import (
	"context"
	"errors"

	"github.com/kirillkom/photoblog-ai/internal/core/domain"
)

// ClassifyModelError retries any failure of the underlying call, refusals
// included. Rate limit denials and malformed replies go straight back to
// the caller.
func ClassifyModelError(err error) ErrorClassification {
	switch {
	case err == nil:
		return ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorClassification{Retryable: false, RecordFailure: false}
	case domain.IsKind(err, domain.ErrRateLimited), domain.IsKind(err, domain.ErrParse):
		return ErrorClassification{Retryable: false, RecordFailure: false}
	case domain.IsKind(err, domain.ErrContentFiltered):
		return ErrorClassification{Retryable: true, RecordFailure: false}
	default:
		return ErrorClassification{Retryable: true, RecordFailure: true}
	}
}

// Retry runs fn under ClassifyModelError.
func (e *Executor) Retry(ctx context.Context, operation string, fn func(context.Context) error) error {
	return e.Execute(ctx, operation, fn, ClassifyModelError)
}
