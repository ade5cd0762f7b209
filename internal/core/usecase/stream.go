package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/photoblog-ai/internal/core/aiquery"
	"github.com/kirillkom/photoblog-ai/internal/core/domain"
	"github.com/kirillkom/photoblog-ai/internal/core/ports"
)

const apologyProbeLen = len("sorry")

// QueryStreamUseCase streams a single query for a stored photo.
type QueryStreamUseCase struct {
	repo    ports.PhotoRepository
	images  ports.ImageSource
	client  ports.ModelClient
	catalog aiquery.Catalog
}

func NewQueryStreamUseCase(
	repo ports.PhotoRepository,
	images ports.ImageSource,
	client ports.ModelClient,
	catalog aiquery.Catalog,
) *QueryStreamUseCase {
	return &QueryStreamUseCase{
		repo:    repo,
		images:  images,
		client:  client,
		catalog: catalog,
	}
}

func (uc *QueryStreamUseCase) StreamQuery(ctx context.Context, photoID string, kind domain.QueryKind) (<-chan domain.StreamEvent, error) {
	prompt, ok := uc.catalog.StreamPrompt(kind)
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "stream query", fmt.Errorf("no prompt for %q", kind))
	}
	photoID = strings.TrimSpace(photoID)
	if photoID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "stream query", errors.New("photo id is required"))
	}

	photo, err := uc.repo.GetByID(ctx, photoID)
	if err != nil {
		return nil, err
	}
	image, err := uc.images.LoadBase64(ctx, photo)
	if err != nil {
		return nil, fmt.Errorf("load image for %s: %w", photoID, err)
	}
	if image == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "stream query", fmt.Errorf("photo %s has no image", photoID))
	}

	upstream, enabled, err := uc.client.Stream(ctx, image, prompt)
	if err != nil {
		return nil, err
	}
	if !enabled {
		done := make(chan domain.StreamEvent, 1)
		done <- domain.StreamEvent{Done: true}
		close(done)
		return done, nil
	}

	out := make(chan domain.StreamEvent, cap(upstream))
	go relayWithoutApology(ctx, upstream, out)
	return out, nil
}

func (uc *QueryStreamUseCase) TestConnection(ctx context.Context) (string, bool, error) {
	return uc.client.TestConnection(ctx)
}

// relayWithoutApology holds deltas back until enough text has arrived to
// tell whether the reply opens with an apology. An apology ends the stream
// with ErrContentFiltered instead of being shown.
func relayWithoutApology(ctx context.Context, in <-chan domain.StreamEvent, out chan<- domain.StreamEvent) {
	defer close(out)

	var (
		held    []string
		text    strings.Builder
		decided bool
	)
	send := func(ev domain.StreamEvent) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	flush := func() bool {
		for _, delta := range held {
			if !send(domain.StreamEvent{Delta: delta}) {
				return false
			}
		}
		held = nil
		return true
	}
	filtered := func() {
		send(domain.StreamEvent{Err: domain.WrapError(domain.ErrContentFiltered, "stream query", errors.New("model declined to describe the image"))})
		for range in {
		}
	}

	for ev := range in {
		if ev.Done || ev.Err != nil {
			if !decided {
				if aiquery.WithholdApology(text.String()) == "" {
					filtered()
					return
				}
				if !flush() {
					return
				}
			}
			send(ev)
			return
		}

		if decided {
			if !send(ev) {
				return
			}
			continue
		}

		held = append(held, ev.Delta)
		text.WriteString(ev.Delta)
		if len(strings.TrimSpace(text.String())) < apologyProbeLen {
			continue
		}
		decided = true
		if aiquery.WithholdApology(text.String()) == "" {
			filtered()
			return
		}
		if !flush() {
			return
		}
	}
}
