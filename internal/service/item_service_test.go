package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/campus-tf/trove/internal/domain"
	"github.com/campus-tf/trove/internal/repository"
)

func newTestItemService(itemRepo *MockItemRepository, userRepo *MockUserRepository, images *MockImageBackend) *ItemService {
	return NewItemService(itemRepo, userRepo, images, nil, zerolog.Nop())
}

func validReportInput(foundByID int64) ReportInput {
	return ReportInput{
		Name:          "blue backpack",
		Description:   "left near the window seats",
		LocationFound: "library, 2nd floor",
		ContactInfo:   "front desk, ask for Sam",
		FoundByID:     foundByID,
		Image: &ImageUpload{
			Reader:      strings.NewReader("jpeg bytes"),
			Size:        10,
			ContentType: "image/jpeg",
		},
	}
}

func TestItemService_Report(t *testing.T) {
	tests := []struct {
		name    string
		input   func(finderID int64) ReportInput
		wantErr error
	}{
		{
			name:    "success",
			input:   validReportInput,
			wantErr: nil,
		},
		{
			name: "missing name",
			input: func(id int64) ReportInput {
				in := validReportInput(id)
				in.Name = ""
				return in
			},
			wantErr: ErrInvalidItemName,
		},
		{
			name: "name too long",
			input: func(id int64) ReportInput {
				in := validReportInput(id)
				in.Name = strings.Repeat("x", 201)
				return in
			},
			wantErr: ErrInvalidItemName,
		},
		{
			name: "missing description",
			input: func(id int64) ReportInput {
				in := validReportInput(id)
				in.Description = ""
				return in
			},
			wantErr: ErrInvalidDescription,
		},
		{
			name: "missing location",
			input: func(id int64) ReportInput {
				in := validReportInput(id)
				in.LocationFound = ""
				return in
			},
			wantErr: ErrInvalidLocation,
		},
		{
			name: "missing contact info",
			input: func(id int64) ReportInput {
				in := validReportInput(id)
				in.ContactInfo = ""
				return in
			},
			wantErr: ErrInvalidContact,
		},
		{
			name: "missing image",
			input: func(id int64) ReportInput {
				in := validReportInput(id)
				in.Image = nil
				return in
			},
			wantErr: ErrMissingImage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			itemRepo := NewMockItemRepository()
			userRepo := NewMockUserRepository()
			finder := userRepo.addUser("finder")
			svc := newTestItemService(itemRepo, userRepo, NewMockImageBackend())

			view, err := svc.Report(context.Background(), tt.input(finder.ID))

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if view.ID == 0 {
				t.Error("expected item ID to be set")
			}
			if view.IsClaimed {
				t.Error("new item must be open")
			}
			if view.FoundBy == nil || view.FoundBy.Username != "finder" {
				t.Errorf("expected finder summary, got %+v", view.FoundBy)
			}
		})
	}
}

func TestItemService_Report_StoresImage(t *testing.T) {
	itemRepo := NewMockItemRepository()
	userRepo := NewMockUserRepository()
	images := NewMockImageBackend()
	finder := userRepo.addUser("finder")
	svc := newTestItemService(itemRepo, userRepo, images)

	view, err := svc.Report(context.Background(), validReportInput(finder.ID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.ImageRef == "" {
		t.Fatal("expected image ref to be set")
	}
	if view.ImageURL != "/uploads/"+view.ImageRef {
		t.Errorf("unexpected image URL %q", view.ImageURL)
	}
	if images.count() != 1 {
		t.Errorf("expected 1 stored image, got %d", images.count())
	}
}

func TestItemService_Report_ImageReleasedOnInsertFailure(t *testing.T) {
	itemRepo := NewMockItemRepository()
	itemRepo.createErr = errors.New("disk full")
	userRepo := NewMockUserRepository()
	images := NewMockImageBackend()
	finder := userRepo.addUser("finder")
	svc := newTestItemService(itemRepo, userRepo, images)

	_, err := svc.Report(context.Background(), validReportInput(finder.ID))
	if !errors.Is(err, ErrInternalError) {
		t.Fatalf("expected internal error, got %v", err)
	}
	if images.count() != 0 {
		t.Errorf("expected stored image to be released, got %d left", images.count())
	}
}

func TestItemService_Report_RejectedImageType(t *testing.T) {
	itemRepo := NewMockItemRepository()
	userRepo := NewMockUserRepository()
	finder := userRepo.addUser("finder")
	svc := newTestItemService(itemRepo, userRepo, NewMockImageBackend())

	input := validReportInput(finder.ID)
	input.Image = &ImageUpload{
		Reader:      strings.NewReader("<svg/>"),
		Size:        6,
		ContentType: "image/svg+xml",
	}

	_, err := svc.Report(context.Background(), input)
	if !errors.Is(err, domain.ErrImageTypeNotAllowed) {
		t.Fatalf("expected image type error, got %v", err)
	}
}

func TestItemService_Claim(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*ItemService, *domain.User, *domain.User, *ItemView) {
		t.Helper()
		itemRepo := NewMockItemRepository()
		userRepo := NewMockUserRepository()
		finder := userRepo.addUser("finder")
		claimant := userRepo.addUser("claimant")
		svc := newTestItemService(itemRepo, userRepo, NewMockImageBackend())

		view, err := svc.Report(ctx, validReportInput(finder.ID))
		if err != nil {
			t.Fatalf("report failed: %v", err)
		}
		return svc, finder, claimant, view
	}

	t.Run("success", func(t *testing.T) {
		svc, _, claimant, item := setup(t)

		view, err := svc.Claim(ctx, item.ID, claimant.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !view.IsClaimed {
			t.Error("item should be claimed")
		}
		if view.ClaimedByID == nil || *view.ClaimedByID != claimant.ID {
			t.Errorf("wrong claimant: %v", view.ClaimedByID)
		}
		if view.ClaimedAt == nil {
			t.Error("claimed_at should be set")
		}
		if view.ClaimedBy == nil || view.ClaimedBy.Username != "claimant" {
			t.Errorf("expected claimant summary, got %+v", view.ClaimedBy)
		}
	})

	t.Run("self claim rejected", func(t *testing.T) {
		svc, finder, _, item := setup(t)

		_, err := svc.Claim(ctx, item.ID, finder.ID)
		if !errors.Is(err, domain.ErrSelfClaim) {
			t.Fatalf("expected self-claim error, got %v", err)
		}
	})

	t.Run("already claimed", func(t *testing.T) {
		svc, _, claimant, item := setup(t)

		if _, err := svc.Claim(ctx, item.ID, claimant.ID); err != nil {
			t.Fatalf("first claim failed: %v", err)
		}
		_, err := svc.Claim(ctx, item.ID, claimant.ID)
		if !errors.Is(err, domain.ErrItemAlreadyClaimed) {
			t.Fatalf("expected already-claimed error, got %v", err)
		}
	})

	t.Run("missing item", func(t *testing.T) {
		svc, _, claimant, _ := setup(t)

		_, err := svc.Claim(ctx, 9999, claimant.ID)
		if !errors.Is(err, domain.ErrItemNotFound) {
			t.Fatalf("expected not-found error, got %v", err)
		}
	})
}

func TestItemService_Claim_Concurrent(t *testing.T) {
	ctx := context.Background()
	itemRepo := NewMockItemRepository()
	userRepo := NewMockUserRepository()
	finder := userRepo.addUser("finder")
	svc := newTestItemService(itemRepo, userRepo, NewMockImageBackend())

	item, err := svc.Report(ctx, validReportInput(finder.ID))
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}

	const claimants = 16
	var wg sync.WaitGroup
	results := make([]error, claimants)

	for i := 0; i < claimants; i++ {
		claimant := userRepo.addUser(strings.Repeat("c", 3+i))
		wg.Add(1)
		go func(idx int, claimantID int64) {
			defer wg.Done()
			_, results[idx] = svc.Claim(ctx, item.ID, claimantID)
		}(i, claimant.ID)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
		} else if !errors.Is(err, domain.ErrItemAlreadyClaimed) {
			t.Errorf("unexpected claim error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winning claim, got %d", winners)
	}
}

func TestItemService_Remove(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*ItemService, *MockImageBackend, *domain.User, *domain.User, *ItemView) {
		t.Helper()
		itemRepo := NewMockItemRepository()
		userRepo := NewMockUserRepository()
		images := NewMockImageBackend()
		finder := userRepo.addUser("finder")
		claimant := userRepo.addUser("claimant")
		svc := newTestItemService(itemRepo, userRepo, images)

		view, err := svc.Report(ctx, validReportInput(finder.ID))
		if err != nil {
			t.Fatalf("report failed: %v", err)
		}
		return svc, images, finder, claimant, view
	}

	t.Run("finder removes claimed item and image goes too", func(t *testing.T) {
		svc, images, finder, claimant, item := setup(t)

		if _, err := svc.Claim(ctx, item.ID, claimant.ID); err != nil {
			t.Fatalf("claim failed: %v", err)
		}
		if err := svc.Remove(ctx, item.ID, finder.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := svc.Get(ctx, item.ID); !errors.Is(err, domain.ErrItemNotFound) {
			t.Errorf("expected item to be gone, got %v", err)
		}
		if images.count() != 0 {
			t.Errorf("expected image to be deleted, %d left", images.count())
		}
	})

	t.Run("open item cannot be removed", func(t *testing.T) {
		svc, _, finder, _, item := setup(t)

		err := svc.Remove(ctx, item.ID, finder.ID)
		if !errors.Is(err, domain.ErrItemNotClaimed) {
			t.Fatalf("expected not-claimed error, got %v", err)
		}
	})

	t.Run("non-finder cannot remove", func(t *testing.T) {
		svc, _, _, claimant, item := setup(t)

		if _, err := svc.Claim(ctx, item.ID, claimant.ID); err != nil {
			t.Fatalf("claim failed: %v", err)
		}
		err := svc.Remove(ctx, item.ID, claimant.ID)
		if !errors.Is(err, domain.ErrNotFinder) {
			t.Fatalf("expected not-finder error, got %v", err)
		}
	})

	t.Run("missing item", func(t *testing.T) {
		svc, _, finder, _, _ := setup(t)

		err := svc.Remove(ctx, 9999, finder.ID)
		if !errors.Is(err, domain.ErrItemNotFound) {
			t.Fatalf("expected not-found error, got %v", err)
		}
	})
}

func TestItemService_List(t *testing.T) {
	ctx := context.Background()
	itemRepo := NewMockItemRepository()
	userRepo := NewMockUserRepository()
	finder := userRepo.addUser("finder")
	svc := newTestItemService(itemRepo, userRepo, NewMockImageBackend())

	for i := 0; i < 3; i++ {
		if _, err := svc.Report(ctx, validReportInput(finder.ID)); err != nil {
			t.Fatalf("report failed: %v", err)
		}
	}

	result, err := svc.List(ctx, repository.ItemListOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 3 {
		t.Errorf("expected total 3, got %d", result.Total)
	}
	if len(result.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(result.Items))
	}
	for _, view := range result.Items {
		if view.FoundBy == nil || view.FoundBy.ID != finder.ID {
			t.Errorf("missing finder summary on item %d", view.ID)
		}
	}
}
