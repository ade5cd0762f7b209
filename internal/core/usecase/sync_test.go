package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/photoblog-ai/internal/core/domain"
)

func TestSyncPhotoSavesGeneratedFields(t *testing.T) {
	repo := newPhotoRepoFake("p1")
	title := "Silent Dawn | 静谧黎明"
	generator := &generatorFake{result: domain.GeneratedFields{Title: &title}}
	uc := NewSyncPhotosUseCase(repo, imageSourceFake{}, generator, nil)

	result, err := uc.SyncPhoto(context.Background(), " p1 ", domain.NewFieldSet(domain.FieldTitle))
	if err != nil {
		t.Fatalf("SyncPhoto() error = %v", err)
	}
	if result.Title == nil || *result.Title != title {
		t.Fatalf("unexpected result %+v", result)
	}
	saved, ok := repo.saved["p1"]
	if !ok || saved.Title == nil || *saved.Title != title {
		t.Fatalf("expected saved title, got %+v", repo.saved)
	}
}

func TestSyncPhotoSkipsSaveWhenNothingGenerated(t *testing.T) {
	repo := newPhotoRepoFake("p1")
	uc := NewSyncPhotosUseCase(repo, imageSourceFake{}, &generatorFake{}, nil)

	if _, err := uc.SyncPhoto(context.Background(), "p1", domain.NewFieldSet(domain.FieldTags)); err != nil {
		t.Fatalf("SyncPhoto() error = %v", err)
	}
	if len(repo.saved) != 0 {
		t.Fatalf("expected no writes, got %+v", repo.saved)
	}
}

func TestSyncPhotoRejectsEmptyID(t *testing.T) {
	uc := NewSyncPhotosUseCase(newPhotoRepoFake(), imageSourceFake{}, &generatorFake{}, nil)
	_, err := uc.SyncPhoto(context.Background(), "  ", domain.NewFieldSet(domain.FieldTags))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSyncPhotosAttemptsEveryPhotoAndJoinsErrors(t *testing.T) {
	repo := newPhotoRepoFake("p1", "p3")
	tags := "street,night,neon,rain,夜晚,霓虹,雨"
	generator := &generatorFake{result: domain.GeneratedFields{Tags: &tags}}
	uc := NewSyncPhotosUseCase(repo, imageSourceFake{}, generator, nil)

	err := uc.SyncPhotos(context.Background(), []string{"p1", "p2", "p3"}, domain.NewFieldSet(domain.FieldTags))
	if !errors.Is(err, domain.ErrPhotoNotFound) {
		t.Fatalf("expected ErrPhotoNotFound in joined error, got %v", err)
	}
	if !strings.Contains(err.Error(), "photo p2") {
		t.Fatalf("expected failing id in error, got %v", err)
	}
	if len(repo.saved) != 2 {
		t.Fatalf("expected the other photos to be saved, got %+v", repo.saved)
	}
	if generator.calls != 2 {
		t.Fatalf("expected 2 generator calls, got %d", generator.calls)
	}
}

func TestSyncPhotosWrapsSaveFailure(t *testing.T) {
	repo := newPhotoRepoFake("p1")
	repo.saveErr = errors.New("connection reset")
	tags := "street"
	uc := NewSyncPhotosUseCase(repo, imageSourceFake{}, &generatorFake{result: domain.GeneratedFields{Tags: &tags}}, nil)

	err := uc.SyncPhotos(context.Background(), []string{"p1"}, domain.NewFieldSet(domain.FieldTags))
	if err == nil || !strings.Contains(err.Error(), "save ai fields for p1") {
		t.Fatalf("expected save failure, got %v", err)
	}
}
