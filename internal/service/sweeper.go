package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/campus-tf/trove/internal/domain"
	"github.com/campus-tf/trove/internal/lock"
	"github.com/campus-tf/trove/internal/metrics"
	"github.com/campus-tf/trove/internal/repository"
	"github.com/campus-tf/trove/internal/storage"
)

// ImageSweeper deletes stored images that no item references anymore.
// Orphans appear when a report's database insert fails after its image was
// stored, or when an image delete after item removal fails.
type ImageSweeper struct {
	itemRepo repository.ItemRepository
	images   storage.Backend
	locker   lock.Locker
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	config   SweeperConfig

	// firstSeen tracks when each candidate was first observed orphaned.
	// An image is only deleted once it stays orphaned for the grace
	// period, so an upload that hasn't reached the database yet is safe.
	firstSeen map[string]time.Time

	// Control
	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
}

// SweeperConfig contains image sweeper configuration.
type SweeperConfig struct {
	// Enabled determines if the sweeper runs automatically.
	Enabled bool

	// Interval is how often to run a sweep.
	Interval time.Duration

	// GracePeriod is how long an image must stay orphaned before deletion.
	GracePeriod time.Duration

	// BatchSize is the maximum number of images to delete per run.
	BatchSize int

	// DryRun logs what would be deleted without actually deleting.
	DryRun bool
}

// DefaultSweeperConfig returns sensible defaults.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Enabled:     true,
		Interval:    1 * time.Hour,
		GracePeriod: 24 * time.Hour,
		BatchSize:   1000,
		DryRun:      false,
	}
}

// NewImageSweeper creates a new image sweeper.
func NewImageSweeper(
	itemRepo repository.ItemRepository,
	images storage.Backend,
	locker lock.Locker,
	m *metrics.Metrics,
	logger zerolog.Logger,
	config SweeperConfig,
) *ImageSweeper {
	return &ImageSweeper{
		itemRepo:  itemRepo,
		images:    images,
		locker:    locker,
		metrics:   m,
		logger:    logger.With().Str("service", "sweeper").Logger(),
		config:    config,
		firstSeen: make(map[string]time.Time),
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}
}

// Start begins the sweep scheduler.
func (sw *ImageSweeper) Start() {
	sw.mu.Lock()
	if sw.running {
		sw.mu.Unlock()
		return
	}
	sw.running = true
	sw.mu.Unlock()

	sw.logger.Info().
		Dur("interval", sw.config.Interval).
		Dur("grace_period", sw.config.GracePeriod).
		Int("batch_size", sw.config.BatchSize).
		Bool("dry_run", sw.config.DryRun).
		Msg("starting image sweeper")

	go sw.runLoop()
}

// Stop stops the sweep scheduler.
func (sw *ImageSweeper) Stop() {
	sw.mu.Lock()
	if !sw.running {
		sw.mu.Unlock()
		return
	}
	sw.running = false
	sw.mu.Unlock()

	close(sw.stopChan)
	<-sw.doneChan

	sw.logger.Info().Msg("image sweeper stopped")
}

func (sw *ImageSweeper) runLoop() {
	defer close(sw.doneChan)

	sw.RunOnce(context.Background())

	ticker := time.NewTicker(sw.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sw.RunOnce(context.Background())
		case <-sw.stopChan:
			return
		}
	}
}

// SweepResult contains the result of a sweep run.
type SweepResult struct {
	// ImagesDeleted is the number of orphaned images deleted.
	ImagesDeleted int

	// OrphansPending is the number of orphans still inside the grace period.
	OrphansPending int

	// Errors is the number of errors encountered.
	Errors int

	// Duration is how long the run took.
	Duration time.Duration
}

// RunOnce executes a single sweep. Safe to call manually alongside the
// scheduler; a lock ensures only one sweep runs at a time.
func (sw *ImageSweeper) RunOnce(ctx context.Context) SweepResult {
	start := time.Now()
	result := SweepResult{}

	sw.logger.Debug().Msg("starting sweep run")

	lockKey := lock.Keys.ImageSweep()
	lockTTL := sw.config.Interval / 2
	if lockTTL < 5*time.Minute {
		lockTTL = 5 * time.Minute
	}

	acquired, err := sw.locker.Acquire(ctx, lockKey, lockTTL)
	if err != nil {
		sw.logger.Error().Err(err).Msg("failed to acquire sweep lock")
		result.Errors++
		result.Duration = time.Since(start)
		return result
	}
	if !acquired {
		sw.logger.Debug().Msg("sweep lock held by another process, skipping run")
		result.Duration = time.Since(start)
		return result
	}
	defer func() {
		if _, err := sw.locker.Release(ctx, lockKey); err != nil {
			sw.logger.Error().Err(err).Msg("failed to release sweep lock")
		}
	}()

	stored, err := sw.images.List(ctx)
	if err != nil {
		sw.logger.Error().Err(err).Msg("failed to list stored images")
		result.Errors++
		result.Duration = time.Since(start)
		return result
	}

	referenced, err := sw.itemRepo.ListImageRefs(ctx)
	if err != nil {
		sw.logger.Error().Err(err).Msg("failed to list referenced images")
		result.Errors++
		result.Duration = time.Since(start)
		return result
	}

	refSet := make(map[string]struct{}, len(referenced))
	for _, ref := range referenced {
		refSet[ref] = struct{}{}
	}

	now := time.Now()
	var expired []string
	orphans := make(map[string]struct{})

	for _, ref := range stored {
		if _, ok := refSet[ref]; ok {
			continue
		}
		orphans[ref] = struct{}{}

		seen, ok := sw.firstSeen[ref]
		if !ok {
			sw.firstSeen[ref] = now
			continue
		}
		if now.Sub(seen) >= sw.config.GracePeriod && len(expired) < sw.config.BatchSize {
			expired = append(expired, ref)
		}
	}

	// Forget candidates that got referenced or disappeared since last run.
	for ref := range sw.firstSeen {
		if _, ok := orphans[ref]; !ok {
			delete(sw.firstSeen, ref)
		}
	}

	for _, ref := range expired {
		if sw.config.DryRun {
			sw.logger.Info().Str("image_ref", ref).Msg("[DRY RUN] would delete orphaned image")
			result.ImagesDeleted++
			continue
		}

		if err := sw.images.Delete(ctx, ref); err != nil {
			if !errors.Is(err, domain.ErrImageNotFound) {
				sw.logger.Error().Err(err).Str("image_ref", ref).Msg("failed to delete orphaned image")
				result.Errors++
				continue
			}
		}

		delete(sw.firstSeen, ref)
		result.ImagesDeleted++
		sw.logger.Debug().Str("image_ref", ref).Msg("deleted orphaned image")
	}

	result.OrphansPending = len(sw.firstSeen)
	result.Duration = time.Since(start)

	if sw.metrics != nil {
		sw.metrics.SweepRuns.Inc()
		sw.metrics.SweepImagesDeleted.Add(float64(result.ImagesDeleted))
		sw.metrics.SweepOrphans.Set(float64(result.OrphansPending))
		sw.metrics.SweepLastRun.SetToCurrentTime()
	}

	sw.logger.Info().
		Int("deleted", result.ImagesDeleted).
		Int("pending", result.OrphansPending).
		Int("errors", result.Errors).
		Dur("duration", result.Duration).
		Msg("sweep run complete")

	return result
}
