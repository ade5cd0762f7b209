package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kirillkom/photoblog-ai/internal/core/domain"
	"github.com/kirillkom/photoblog-ai/internal/core/ports"
)

// RunRegistry starts regeneration runs in the background and keeps their
// latest snapshots. Only one run may be active at a time.
type RunRegistry struct {
	baseCtx     context.Context
	regenerator *RegenerateUseCase
	store       ports.RunStore
	observer    ports.ProgressObserver
	logger      *slog.Logger

	mu       sync.Mutex
	runs     map[string]domain.RegenerationRun
	activeID string
	wg       sync.WaitGroup
}

// NewRunRegistry ties run lifetimes to baseCtx rather than to the request
// that started them. store and observer are optional.
func NewRunRegistry(
	baseCtx context.Context,
	regenerator *RegenerateUseCase,
	store ports.RunStore,
	observer ports.ProgressObserver,
	logger *slog.Logger,
) *RunRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunRegistry{
		baseCtx:     baseCtx,
		regenerator: regenerator,
		store:       store,
		observer:    observer,
		logger:      logger,
		runs:        make(map[string]domain.RegenerationRun),
	}
}

func (r *RunRegistry) Start(fields domain.FieldSet) (domain.RegenerationRun, error) {
	if fields.Empty() {
		return domain.RegenerationRun{}, domain.WrapError(domain.ErrInvalidInput, "start regeneration", errors.New("no fields selected"))
	}

	r.mu.Lock()
	if r.activeID != "" {
		activeID := r.activeID
		r.mu.Unlock()
		return domain.RegenerationRun{}, domain.WrapError(domain.ErrConflict, "start regeneration", fmt.Errorf("run %s is still active", activeID))
	}
	run := r.regenerator.NewRun(fields)
	run.State = domain.RunRunning
	r.runs[run.ID] = run
	r.activeID = run.ID
	r.mu.Unlock()

	r.persist(run)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		final, err := r.regenerator.Execute(r.baseCtx, run, fields, r.observer, r.update)
		if err != nil {
			r.logger.Warn("regeneration_run_failed", "run_id", final.ID, "error", err)
		}
		r.mu.Lock()
		r.runs[final.ID] = final
		if r.activeID == final.ID {
			r.activeID = ""
		}
		r.mu.Unlock()
	}()

	return run, nil
}

// Get returns the latest snapshot, falling back to the store for runs from
// earlier processes.
func (r *RunRegistry) Get(ctx context.Context, id string) (domain.RegenerationRun, error) {
	r.mu.Lock()
	run, ok := r.runs[id]
	r.mu.Unlock()
	if ok {
		return run, nil
	}
	if r.store != nil {
		return r.store.GetRun(ctx, id)
	}
	return domain.RegenerationRun{}, domain.WrapError(domain.ErrRunNotFound, "get regeneration run", fmt.Errorf("id=%s", id))
}

// Active reports the id of the running run, if any.
func (r *RunRegistry) Active() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeID, r.activeID != ""
}

// Wait blocks until every started run has finished.
func (r *RunRegistry) Wait() {
	r.wg.Wait()
}

func (r *RunRegistry) update(run domain.RegenerationRun) {
	r.mu.Lock()
	r.runs[run.ID] = run
	r.mu.Unlock()
	r.persist(run)
}

func (r *RunRegistry) persist(run domain.RegenerationRun) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveRun(context.WithoutCancel(r.baseCtx), run); err != nil {
		r.logger.Warn("regeneration_snapshot_not_saved", "run_id", run.ID, "state", string(run.State), "error", err)
	}
}
