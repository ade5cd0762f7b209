package ports

import (
	"context"

	"github.com/kirillkom/photoblog-ai/internal/core/domain"
)

// FieldGenerator decides which queries to issue for a photo and assembles the result.
type FieldGenerator interface {
	Generate(ctx context.Context, imageBase64 string, fields domain.FieldSet) domain.GeneratedFields
}

// PhotoSyncer regenerates and persists AI fields for photos.
type PhotoSyncer interface {
	SyncPhoto(ctx context.Context, photoID string, fields domain.FieldSet) (domain.GeneratedFields, error)
	SyncPhotos(ctx context.Context, photoIDs []string, fields domain.FieldSet) error
}

// QueryStreamer streams one query kind for a photo.
type QueryStreamer interface {
	StreamQuery(ctx context.Context, photoID string, kind domain.QueryKind) (<-chan domain.StreamEvent, error)
	TestConnection(ctx context.Context) (string, bool, error)
}

// RegenerationService starts and tracks library-wide regeneration runs.
type RegenerationService interface {
	Start(fields domain.FieldSet) (domain.RegenerationRun, error)
	Get(ctx context.Context, id string) (domain.RegenerationRun, error)
}

// UploadHandler reacts to freshly uploaded photos.
type UploadHandler interface {
	HandleUploaded(ctx context.Context, photoID string) error
}
