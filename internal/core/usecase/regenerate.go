package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/photoblog-ai/internal/core/domain"
	"github.com/kirillkom/photoblog-ai/internal/core/ports"
)

type RegenerateOptions struct {
	BatchSize  int
	BatchDelay time.Duration
	// Strict aborts the run on the first failed batch instead of counting it.
	Strict       bool
	BatchTimeout time.Duration
}

func DefaultRegenerateOptions() RegenerateOptions {
	return RegenerateOptions{
		BatchSize:    2,
		BatchDelay:   2 * time.Second,
		BatchTimeout: 5 * time.Minute,
	}
}

func (o RegenerateOptions) normalize() RegenerateOptions {
	defaults := DefaultRegenerateOptions()
	if o.BatchSize <= 0 {
		o.BatchSize = defaults.BatchSize
	}
	if o.BatchDelay < 0 {
		o.BatchDelay = 0
	}
	if o.BatchTimeout <= 0 {
		o.BatchTimeout = defaults.BatchTimeout
	}
	return o
}

// RegenerationRecorder receives batch and run outcomes.
type RegenerationRecorder interface {
	RecordRegenerationBatch(err error)
	RecordRegenerationRun(state string)
}

// RegenerateUseCase walks the whole library in sequential batches.
type RegenerateUseCase struct {
	repo     ports.PhotoRepository
	syncer   ports.PhotoSyncer
	opts     RegenerateOptions
	recorder RegenerationRecorder
	logger   *slog.Logger

	sleep func(context.Context, time.Duration) error
	now   func() time.Time
}

func NewRegenerateUseCase(
	repo ports.PhotoRepository,
	syncer ports.PhotoSyncer,
	opts RegenerateOptions,
	recorder RegenerationRecorder,
	logger *slog.Logger,
) *RegenerateUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &RegenerateUseCase{
		repo:     repo,
		syncer:   syncer,
		opts:     opts.normalize(),
		recorder: recorder,
		logger:   logger,
		sleep:    sleepContext,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run executes a fresh run to completion.
func (uc *RegenerateUseCase) Run(ctx context.Context, fields domain.FieldSet, observer ports.ProgressObserver) (domain.RegenerationRun, error) {
	return uc.Execute(ctx, uc.NewRun(fields), fields, observer, nil)
}

// NewRun returns an idle run for fields.
func (uc *RegenerateUseCase) NewRun(fields domain.FieldSet) domain.RegenerationRun {
	names := make([]string, 0, len(fields))
	for _, field := range fields.List() {
		names = append(names, string(field))
	}
	return domain.RegenerationRun{
		ID:        uuid.NewString(),
		State:     domain.RunIdle,
		Fields:    names,
		BatchSize: uc.opts.BatchSize,
		StartedAt: uc.now(),
	}
}

// Execute drives run through its states. snapshot, when set, sees the run
// after every transition and batch.
func (uc *RegenerateUseCase) Execute(
	ctx context.Context,
	run domain.RegenerationRun,
	fields domain.FieldSet,
	observer ports.ProgressObserver,
	snapshot func(domain.RegenerationRun),
) (domain.RegenerationRun, error) {
	emit := func(r domain.RegenerationRun) {
		if snapshot != nil {
			snapshot(r)
		}
	}
	progress := func() {
		if observer != nil {
			observer(run.Progress)
		}
	}

	run.State = domain.RunRunning
	emit(run)

	ids, err := uc.repo.ListPhotoIDs(ctx)
	if err != nil {
		return uc.fail(run, emit, fmt.Errorf("list photo ids: %w", err))
	}

	batches := domain.Batches(ids, uc.opts.BatchSize)
	run.Total = len(ids)
	run.Batches = len(batches)
	emit(run)

	uc.logger.Info("regeneration_started",
		"run_id", run.ID,
		"fields", fields.String(),
		"photos", run.Total,
		"batches", run.Batches,
		"batch_size", uc.opts.BatchSize,
	)

	if len(batches) > 0 {
		horizon := time.Duration(len(batches)) * (uc.opts.BatchTimeout + uc.opts.BatchDelay)
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, horizon)
		defer cancel()
	}

	for i, batch := range batches {
		run.BatchIndex = i + 1

		batchCtx, cancel := context.WithTimeout(ctx, uc.opts.BatchTimeout)
		batchErr := uc.syncer.SyncPhotos(batchCtx, batch, fields)
		cancel()

		if uc.recorder != nil {
			uc.recorder.RecordRegenerationBatch(batchErr)
		}
		run.Processed += len(batch)
		run.Progress = domain.Progress(run.Processed, run.Total)

		if batchErr != nil {
			run.FailedBatches++
			uc.logger.Warn("regeneration_batch_failed",
				"run_id", run.ID,
				"batch", run.BatchIndex,
				"batches", run.Batches,
				"photo_ids", batch,
				"error", batchErr,
			)
			if uc.opts.Strict {
				progress()
				return uc.fail(run, emit, fmt.Errorf("batch %d/%d: %w", run.BatchIndex, run.Batches, batchErr))
			}
		}

		progress()
		emit(run)

		if i < len(batches)-1 {
			if err := uc.sleep(ctx, uc.opts.BatchDelay); err != nil {
				return uc.fail(run, emit, fmt.Errorf("regeneration stopped after batch %d/%d: %w", run.BatchIndex, run.Batches, err))
			}
		}
	}

	if len(batches) == 0 {
		run.Progress = domain.Progress(0, 0)
		progress()
	}

	finished := uc.now()
	run.State = domain.RunCompleted
	run.FinishedAt = &finished
	emit(run)
	if uc.recorder != nil {
		uc.recorder.RecordRegenerationRun(string(run.State))
	}

	uc.logger.Info("regeneration_completed",
		"run_id", run.ID,
		"processed", run.Processed,
		"failed_batches", run.FailedBatches,
		"duration_ms", finished.Sub(run.StartedAt).Milliseconds(),
	)
	return run, nil
}

func (uc *RegenerateUseCase) fail(run domain.RegenerationRun, emit func(domain.RegenerationRun), err error) (domain.RegenerationRun, error) {
	finished := uc.now()
	run.State = domain.RunFailed
	run.Error = err.Error()
	run.FinishedAt = &finished
	emit(run)
	if uc.recorder != nil {
		uc.recorder.RecordRegenerationRun(string(run.State))
	}
	uc.logger.Error("regeneration_failed", "run_id", run.ID, "error", err)
	return run, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
