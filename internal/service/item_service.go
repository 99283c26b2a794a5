package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/campus-tf/trove/internal/domain"
	"github.com/campus-tf/trove/internal/metrics"
	"github.com/campus-tf/trove/internal/repository"
	"github.com/campus-tf/trove/internal/storage"
)

// ItemService handles the found item lifecycle: reporting, claiming and
// removal. Claims are resolved atomically in the database so concurrent
// claimants can never both win.
type ItemService struct {
	itemRepo repository.ItemRepository
	userRepo repository.UserRepository
	images   storage.Backend
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewItemService creates a new ItemService.
func NewItemService(itemRepo repository.ItemRepository, userRepo repository.UserRepository, images storage.Backend, m *metrics.Metrics, logger zerolog.Logger) *ItemService {
	return &ItemService{
		itemRepo: itemRepo,
		userRepo: userRepo,
		images:   images,
		metrics:  m,
		logger:   logger.With().Str("service", "item").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ItemView is an item enriched with user summaries and the public image URL.
type ItemView struct {
	*domain.Item

	FoundBy   *domain.UserSummary `json:"found_by,omitempty"`
	ClaimedBy *domain.UserSummary `json:"claimed_by,omitempty"`
	ImageURL  string              `json:"image_url,omitempty"`
}

// ImageUpload describes an image attached to a report.
type ImageUpload struct {
	Reader      io.Reader
	Size        int64
	ContentType string
}

// ReportInput contains the data needed to report a found item.
type ReportInput struct {
	Name          string
	Description   string
	LocationFound string
	ContactInfo   string
	FoundByID     int64

	// Image is required: a report without a photo is rejected.
	Image *ImageUpload
}

// Report records a newly found item, storing its image first. If the
// database insert fails the stored image is released so it doesn't leak.
func (s *ItemService) Report(ctx context.Context, input ReportInput) (*ItemView, error) {
	if err := s.validateReportInput(input); err != nil {
		return nil, err
	}

	imageRef, err := s.images.Store(ctx, input.Image.Reader, input.Image.Size, input.Image.ContentType)
	if err != nil {
		if errors.Is(err, domain.ErrImageTypeNotAllowed) || errors.Is(err, domain.ErrImageTooLarge) {
			return nil, err
		}
		s.logger.Error().Err(err).Msg("failed to store item image")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	item := domain.NewItem(input.FoundByID, input.Name, input.Description, input.LocationFound, input.ContactInfo, imageRef)

	if err := s.itemRepo.Create(ctx, item); err != nil {
		if delErr := s.images.Delete(ctx, imageRef); delErr != nil {
			s.logger.Warn().Err(delErr).Str("image_ref", imageRef).Msg("failed to release image after insert failure")
		}
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		s.logger.Error().Err(err).Msg("failed to create item")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if s.metrics != nil {
		s.metrics.ItemsReported.Inc()
	}

	s.logger.Info().
		Int64("item_id", item.ID).
		Int64("found_by", item.FoundByID).
		Str("name", item.Name).
		Str("image_ref", imageRef).
		Msg("item reported")

	return s.toView(ctx, item), nil
}

// Claim marks an item as claimed by the given user. The claim is a single
// conditional update: exactly one of any set of concurrent claimants wins
// and the rest get ErrItemAlreadyClaimed.
func (s *ItemService) Claim(ctx context.Context, itemID, claimantID int64) (*ItemView, error) {
	claimed, err := s.itemRepo.ClaimIfOpen(ctx, itemID, claimantID, s.now())
	if err != nil {
		s.logger.Error().Err(err).Int64("item_id", itemID).Msg("failed to claim item")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if !claimed {
		// The update matched no row. Re-read to find out why.
		item, err := s.itemRepo.GetByID(ctx, itemID)
		if err != nil {
			if errors.Is(err, domain.ErrItemNotFound) {
				return nil, domain.ErrItemNotFound
			}
			return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
		}

		if s.metrics != nil {
			s.metrics.ClaimConflicts.Inc()
		}
		if reason := item.CanBeClaimedBy(claimantID); reason != nil {
			return nil, reason
		}
		// The update missed but the item looks claimable. Should not
		// happen; report it rather than pretend the claim succeeded.
		return nil, fmt.Errorf("%w: claim update matched no row", ErrInternalError)
	}

	item, err := s.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		s.logger.Error().Err(err).Int64("item_id", itemID).Msg("failed to reload claimed item")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if s.metrics != nil {
		s.metrics.ItemsClaimed.Inc()
	}

	s.logger.Info().
		Int64("item_id", itemID).
		Int64("claimed_by", claimantID).
		Msg("item claimed")

	return s.toView(ctx, item), nil
}

// Remove deletes an item. Only the user who reported the item may remove
// it. The attached image is deleted best-effort after the row is gone.
func (s *ItemService) Remove(ctx context.Context, itemID, userID int64) error {
	item, err := s.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, domain.ErrItemNotFound) {
			return domain.ErrItemNotFound
		}
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := item.CanBeRemovedBy(userID); err != nil {
		return err
	}

	if err := s.itemRepo.Delete(ctx, itemID); err != nil {
		if errors.Is(err, domain.ErrItemNotFound) {
			// Lost a race with another remove.
			return domain.ErrItemNotFound
		}
		s.logger.Error().Err(err).Int64("item_id", itemID).Msg("failed to delete item")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if item.ImageRef != "" {
		if err := s.images.Delete(ctx, item.ImageRef); err != nil && !errors.Is(err, domain.ErrImageNotFound) {
			// The sweeper picks up anything left behind.
			s.logger.Warn().Err(err).Str("image_ref", item.ImageRef).Msg("failed to delete item image")
		}
	}

	if s.metrics != nil {
		s.metrics.ItemsRemoved.Inc()
	}

	s.logger.Info().
		Int64("item_id", itemID).
		Int64("removed_by", userID).
		Msg("item removed")

	return nil
}

// Get retrieves a single item.
func (s *ItemService) Get(ctx context.Context, itemID int64) (*ItemView, error) {
	item, err := s.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, domain.ErrItemNotFound) {
			return nil, domain.ErrItemNotFound
		}
		s.logger.Error().Err(err).Int64("item_id", itemID).Msg("failed to get item")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return s.toView(ctx, item), nil
}

// ListResult holds a page of item views.
type ListResult struct {
	Items  []*ItemView `json:"items"`
	Total  int64       `json:"total"`
	Offset int         `json:"offset"`
	Limit  int         `json:"limit"`
}

// List returns items newest first.
func (s *ItemService) List(ctx context.Context, opts repository.ItemListOptions) (*ListResult, error) {
	result, err := s.itemRepo.List(ctx, opts)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list items")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	views := make([]*ItemView, 0, len(result.Items))
	summaries := make(map[int64]*domain.UserSummary)
	for _, item := range result.Items {
		views = append(views, s.toViewCached(ctx, item, summaries))
	}

	return &ListResult{
		Items:  views,
		Total:  result.Total,
		Offset: result.Offset,
		Limit:  result.Limit,
	}, nil
}

// toView enriches an item with user summaries and its image URL.
func (s *ItemService) toView(ctx context.Context, item *domain.Item) *ItemView {
	return s.toViewCached(ctx, item, make(map[int64]*domain.UserSummary))
}

func (s *ItemService) toViewCached(ctx context.Context, item *domain.Item, summaries map[int64]*domain.UserSummary) *ItemView {
	view := &ItemView{Item: item}

	view.FoundBy = s.userSummary(ctx, item.FoundByID, summaries)
	if item.ClaimedByID != nil {
		view.ClaimedBy = s.userSummary(ctx, *item.ClaimedByID, summaries)
	}
	if item.ImageRef != "" {
		view.ImageURL = s.images.URLPath(item.ImageRef)
	}
	return view
}

func (s *ItemService) userSummary(ctx context.Context, userID int64, summaries map[int64]*domain.UserSummary) *domain.UserSummary {
	if summary, ok := summaries[userID]; ok {
		return summary
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		// A deleted account leaves the summary empty rather than failing
		// the whole request.
		s.logger.Debug().Err(err).Int64("user_id", userID).Msg("failed to load user summary")
		summaries[userID] = nil
		return nil
	}

	summary := user.Summary()
	summaries[userID] = summary
	return summary
}

func (s *ItemService) validateReportInput(input ReportInput) error {
	if input.Name == "" || len(input.Name) > 200 {
		return ErrInvalidItemName
	}
	if input.Description == "" {
		return ErrInvalidDescription
	}
	if input.LocationFound == "" {
		return ErrInvalidLocation
	}
	if input.ContactInfo == "" {
		return ErrInvalidContact
	}
	if input.Image == nil {
		return ErrMissingImage
	}
	return nil
}
