package ports

import (
	"context"

	"github.com/kirillkom/photoblog-ai/internal/core/domain"
)

// ModelClient issues vision+text requests. ok=false means no model is
// configured and the call was a silent no-op.
type ModelClient interface {
	Enabled() bool
	Generate(ctx context.Context, imageBase64, prompt string) (text string, ok bool, err error)
	Stream(ctx context.Context, imageBase64, prompt string) (events <-chan domain.StreamEvent, ok bool, err error)
	TestConnection(ctx context.Context) (text string, ok bool, err error)
}

// RateLimiter is a sliding-window counter consulted once per model call.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// CallRetrier re-issues a failed model call with backoff.
type CallRetrier interface {
	Retry(ctx context.Context, operation string, fn func(context.Context) error) error
}

// PhotoRepository is the photo id source and the persistence sink for AI fields.
type PhotoRepository interface {
	ListPhotoIDs(ctx context.Context) ([]string, error)
	GetByID(ctx context.Context, id string) (*domain.Photo, error)
	SaveAIFields(ctx context.Context, id string, fields domain.GeneratedFields) error
}

// RunStore keeps regeneration run snapshots beyond the process lifetime.
type RunStore interface {
	SaveRun(ctx context.Context, run domain.RegenerationRun) error
	GetRun(ctx context.Context, id string) (domain.RegenerationRun, error)
}

// ImageSource loads a photo's image as base64.
type ImageSource interface {
	LoadBase64(ctx context.Context, photo *domain.Photo) (string, error)
}

// UploadQueue carries photo upload events to the worker.
type UploadQueue interface {
	PublishPhotoUploaded(ctx context.Context, photoID string) error
	SubscribePhotoUploaded(ctx context.Context, handler func(context.Context, string) error) error
}

// ProgressObserver receives the run progress in [0,1] after each batch.
type ProgressObserver func(progress float64)
