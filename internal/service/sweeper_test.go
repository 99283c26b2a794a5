package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/campus-tf/trove/internal/lock"
)

func newTestSweeper(itemRepo *MockItemRepository, images *MockImageBackend, cfg SweeperConfig) *ImageSweeper {
	return NewImageSweeper(itemRepo, images, lock.NewNoopLocker(), nil, zerolog.Nop(), cfg)
}

func storeOrphan(t *testing.T, images *MockImageBackend) string {
	t.Helper()
	ref, err := images.Store(context.Background(), strings.NewReader("data"), 4, "image/jpeg")
	if err != nil {
		t.Fatalf("store failed: %v", err)
	}
	return ref
}

func TestImageSweeper_DeletesOrphansAfterGracePeriod(t *testing.T) {
	ctx := context.Background()
	itemRepo := NewMockItemRepository()
	images := NewMockImageBackend()
	sw := newTestSweeper(itemRepo, images, SweeperConfig{
		Interval:    time.Hour,
		GracePeriod: 0,
		BatchSize:   100,
	})

	storeOrphan(t, images)

	// First run only records the orphan.
	result := sw.RunOnce(ctx)
	if result.ImagesDeleted != 0 {
		t.Fatalf("first run must not delete, got %d", result.ImagesDeleted)
	}
	if result.OrphansPending != 1 {
		t.Fatalf("expected 1 pending orphan, got %d", result.OrphansPending)
	}

	// Second run sees the grace period (zero) elapsed and deletes.
	result = sw.RunOnce(ctx)
	if result.ImagesDeleted != 1 {
		t.Fatalf("expected 1 deletion, got %d", result.ImagesDeleted)
	}
	if images.count() != 0 {
		t.Errorf("expected store to be empty, %d left", images.count())
	}
}

func TestImageSweeper_KeepsReferencedImages(t *testing.T) {
	ctx := context.Background()
	itemRepo := NewMockItemRepository()
	images := NewMockImageBackend()
	userRepo := NewMockUserRepository()
	finder := userRepo.addUser("finder")
	svc := newTestItemService(itemRepo, userRepo, images)

	input := validReportInput(finder.ID)
	input.Image = &ImageUpload{Reader: strings.NewReader("jpeg"), Size: 4, ContentType: "image/jpeg"}
	if _, err := svc.Report(ctx, input); err != nil {
		t.Fatalf("report failed: %v", err)
	}

	sw := newTestSweeper(itemRepo, images, SweeperConfig{
		Interval:    time.Hour,
		GracePeriod: 0,
		BatchSize:   100,
	})

	sw.RunOnce(ctx)
	result := sw.RunOnce(ctx)
	if result.ImagesDeleted != 0 {
		t.Fatalf("referenced image must not be deleted, got %d deletions", result.ImagesDeleted)
	}
	if images.count() != 1 {
		t.Errorf("expected image to survive, %d left", images.count())
	}
}

func TestImageSweeper_GracePeriodHoldsRecentOrphans(t *testing.T) {
	ctx := context.Background()
	itemRepo := NewMockItemRepository()
	images := NewMockImageBackend()
	sw := newTestSweeper(itemRepo, images, SweeperConfig{
		Interval:    time.Hour,
		GracePeriod: time.Hour,
		BatchSize:   100,
	})

	storeOrphan(t, images)

	sw.RunOnce(ctx)
	result := sw.RunOnce(ctx)
	if result.ImagesDeleted != 0 {
		t.Fatalf("orphan inside grace period must not be deleted, got %d", result.ImagesDeleted)
	}
	if result.OrphansPending != 1 {
		t.Fatalf("expected 1 pending orphan, got %d", result.OrphansPending)
	}
}

func TestImageSweeper_DryRun(t *testing.T) {
	ctx := context.Background()
	itemRepo := NewMockItemRepository()
	images := NewMockImageBackend()
	sw := newTestSweeper(itemRepo, images, SweeperConfig{
		Interval:    time.Hour,
		GracePeriod: 0,
		BatchSize:   100,
		DryRun:      true,
	})

	storeOrphan(t, images)

	sw.RunOnce(ctx)
	result := sw.RunOnce(ctx)
	if result.ImagesDeleted != 1 {
		t.Fatalf("dry run should count would-be deletions, got %d", result.ImagesDeleted)
	}
	if images.count() != 1 {
		t.Errorf("dry run must not actually delete, %d left", images.count())
	}
}
