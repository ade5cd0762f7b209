package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kirillkom/photoblog-ai/internal/core/domain"
)

type modelReply struct {
	text string
	err  error
}

// modelClientFake answers by prompt. Replies are consumed in order and the
// last one repeats.
type modelClientFake struct {
	mu       sync.Mutex
	disabled bool
	replies  map[string][]modelReply
	calls    []string

	stream        []domain.StreamEvent
	streamErr     error
	streamPrompts []string
}

func (f *modelClientFake) Enabled() bool { return !f.disabled }

func (f *modelClientFake) Generate(_ context.Context, _ string, prompt string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disabled {
		return "", false, nil
	}
	f.calls = append(f.calls, prompt)
	queue := f.replies[prompt]
	if len(queue) == 0 {
		return "", true, errors.New("unexpected prompt")
	}
	reply := queue[0]
	if len(queue) > 1 {
		f.replies[prompt] = queue[1:]
	}
	return reply.text, true, reply.err
}

func (f *modelClientFake) Stream(_ context.Context, _ string, prompt string) (<-chan domain.StreamEvent, bool, error) {
	f.mu.Lock()
	f.streamPrompts = append(f.streamPrompts, prompt)
	f.mu.Unlock()
	if f.disabled {
		return nil, false, nil
	}
	if f.streamErr != nil {
		return nil, true, f.streamErr
	}
	events := make(chan domain.StreamEvent, len(f.stream))
	for _, ev := range f.stream {
		events <- ev
	}
	close(events)
	return events, true, nil
}

func (f *modelClientFake) TestConnection(context.Context) (string, bool, error) {
	if f.disabled {
		return "", false, nil
	}
	return "ok", true, nil
}

func (f *modelClientFake) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// retrierFake re-runs fn up to maxAttempts times, stopping on rate limit denials.
type retrierFake struct {
	maxAttempts int
	ops         []string
}

func (r *retrierFake) Retry(ctx context.Context, operation string, fn func(context.Context) error) error {
	r.ops = append(r.ops, operation)
	var err error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if domain.IsKind(err, domain.ErrRateLimited) {
			return err
		}
	}
	return err
}

type fieldRecorderFake struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (r *fieldRecorderFake) RecordFieldResult(field, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = make(map[string]int)
	}
	r.outcomes[field+"/"+outcome]++
}

type photoRepoFake struct {
	mu      sync.Mutex
	ids     []string
	listErr error
	photos  map[string]*domain.Photo
	saved   map[string]domain.GeneratedFields
	saveErr error
}

func newPhotoRepoFake(ids ...string) *photoRepoFake {
	repo := &photoRepoFake{
		ids:    ids,
		photos: make(map[string]*domain.Photo, len(ids)),
		saved:  make(map[string]domain.GeneratedFields),
	}
	for _, id := range ids {
		repo.photos[id] = &domain.Photo{ID: id, StoragePath: id + ".jpg"}
	}
	return repo
}

func (r *photoRepoFake) ListPhotoIDs(context.Context) ([]string, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return append([]string(nil), r.ids...), nil
}

func (r *photoRepoFake) GetByID(_ context.Context, id string) (*domain.Photo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	photo, ok := r.photos[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrPhotoNotFound, "get photo", fmt.Errorf("id=%s", id))
	}
	return photo, nil
}

func (r *photoRepoFake) SaveAIFields(_ context.Context, id string, fields domain.GeneratedFields) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saved[id] = fields
	return nil
}

type imageSourceFake struct{}

func (imageSourceFake) LoadBase64(_ context.Context, photo *domain.Photo) (string, error) {
	if photo.StoragePath == "" {
		return "", nil
	}
	return "aW1hZ2U=", nil
}

type generatorFake struct {
	mu     sync.Mutex
	result domain.GeneratedFields
	calls  int
}

func (g *generatorFake) Generate(context.Context, string, domain.FieldSet) domain.GeneratedFields {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.result
}

// syncerFake records batches. failBatch is keyed by 1-based batch number.
type syncerFake struct {
	mu        sync.Mutex
	batches   [][]string
	failBatch map[int]error
	block     chan struct{}

	single    []string
	singleErr error
	fields    domain.FieldSet
}

func (s *syncerFake) SyncPhoto(_ context.Context, photoID string, fields domain.FieldSet) (domain.GeneratedFields, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.single = append(s.single, photoID)
	s.fields = fields
	if s.singleErr != nil {
		return domain.GeneratedFields{}, s.singleErr
	}
	title := "Silent Dawn | 静谧黎明"
	return domain.GeneratedFields{Title: &title}, nil
}

func (s *syncerFake) SyncPhotos(ctx context.Context, photoIDs []string, _ domain.FieldSet) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]string(nil), photoIDs...))
	return s.failBatch[len(s.batches)]
}

func (s *syncerFake) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

type runStoreFake struct {
	mu    sync.Mutex
	saved []domain.RegenerationRun
}

func (s *runStoreFake) SaveRun(_ context.Context, run domain.RegenerationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, run)
	return nil
}

func (s *runStoreFake) GetRun(_ context.Context, id string) (domain.RegenerationRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.saved) - 1; i >= 0; i-- {
		if s.saved[i].ID == id {
			return s.saved[i], nil
		}
	}
	return domain.RegenerationRun{}, domain.WrapError(domain.ErrRunNotFound, "get run", fmt.Errorf("id=%s", id))
}

func (s *runStoreFake) last() domain.RegenerationRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved[len(s.saved)-1]
}

func noSleep(context.Context, time.Duration) error { return nil }
