package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/photoblog-ai/internal/core/domain"
	"github.com/kirillkom/photoblog-ai/internal/core/ports"
)

// SyncPhotosUseCase loads, generates and persists AI fields for photos.
type SyncPhotosUseCase struct {
	repo      ports.PhotoRepository
	images    ports.ImageSource
	generator ports.FieldGenerator
	logger    *slog.Logger
}

func NewSyncPhotosUseCase(
	repo ports.PhotoRepository,
	images ports.ImageSource,
	generator ports.FieldGenerator,
	logger *slog.Logger,
) *SyncPhotosUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncPhotosUseCase{
		repo:      repo,
		images:    images,
		generator: generator,
		logger:    logger,
	}
}

func (uc *SyncPhotosUseCase) SyncPhoto(ctx context.Context, photoID string, fields domain.FieldSet) (domain.GeneratedFields, error) {
	photoID = strings.TrimSpace(photoID)
	if photoID == "" {
		return domain.GeneratedFields{}, domain.WrapError(domain.ErrInvalidInput, "sync photo", errors.New("photo id is required"))
	}

	photo, err := uc.repo.GetByID(ctx, photoID)
	if err != nil {
		return domain.GeneratedFields{}, err
	}
	image, err := uc.images.LoadBase64(ctx, photo)
	if err != nil {
		return domain.GeneratedFields{}, fmt.Errorf("load image for %s: %w", photoID, err)
	}

	result := uc.generator.Generate(ctx, image, fields)
	if result.IsEmpty() && result.Error == "" {
		return result, nil
	}
	if err := uc.repo.SaveAIFields(ctx, photoID, result); err != nil {
		return result, fmt.Errorf("save ai fields for %s: %w", photoID, err)
	}

	uc.logger.Info("photo_ai_fields_saved",
		"photo_id", photoID,
		"fields", fields.String(),
		"field_error", result.Error,
	)
	return result, nil
}

// SyncPhotos runs one batch. Every photo is attempted; failures are joined.
func (uc *SyncPhotosUseCase) SyncPhotos(ctx context.Context, photoIDs []string, fields domain.FieldSet) error {
	if len(photoIDs) == 0 {
		return nil
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	var group errgroup.Group
	group.SetLimit(len(photoIDs))
	for _, photoID := range photoIDs {
		group.Go(func() error {
			if _, err := uc.SyncPhoto(ctx, photoID, fields); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("photo %s: %w", photoID, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = group.Wait()
	return errors.Join(errs...)
}
