package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/photoblog-ai/internal/core/domain"
	"github.com/kirillkom/photoblog-ai/internal/core/ports"
)

// SyncRecorder tracks upload hook executions.
type SyncRecorder interface {
	StartSync()
	FinishSync(duration time.Duration, err error)
}

// UploadHookUseCase generates the configured fields for a freshly uploaded photo.
type UploadHookUseCase struct {
	syncer   ports.PhotoSyncer
	fields   domain.FieldSet
	recorder SyncRecorder
	logger   *slog.Logger
}

func NewUploadHookUseCase(syncer ports.PhotoSyncer, fields domain.FieldSet, recorder SyncRecorder, logger *slog.Logger) *UploadHookUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadHookUseCase{
		syncer:   syncer,
		fields:   fields,
		recorder: recorder,
		logger:   logger,
	}
}

func (uc *UploadHookUseCase) HandleUploaded(ctx context.Context, photoID string) error {
	if uc.fields.Empty() {
		uc.logger.Debug("upload_hook_skipped", "photo_id", photoID, "reason", "no auto generated fields")
		return nil
	}

	start := time.Now()
	if uc.recorder != nil {
		uc.recorder.StartSync()
	}
	result, err := uc.syncer.SyncPhoto(ctx, photoID, uc.fields)
	if uc.recorder != nil {
		uc.recorder.FinishSync(time.Since(start), err)
	}
	if err != nil {
		return err
	}

	uc.logger.Info("upload_hook_completed",
		"photo_id", photoID,
		"fields", uc.fields.String(),
		"generated", !result.IsEmpty(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
