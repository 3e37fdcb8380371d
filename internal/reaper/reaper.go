package reaper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/vladimiradmaev/food-diary/internal/database"
	"github.com/vladimiradmaev/food-diary/internal/logger"
	"github.com/vladimiradmaev/food-diary/internal/storage"
	"gorm.io/gorm"
)

const dayLayout = "2006-01-02"

// Reaper deletes stale temporary analysis rows and their photo files once
// their calendar day has passed without confirmation. One instance runs per
// deployment, guarded by an inter-process file lock.
type Reaper struct {
	db     *gorm.DB
	photos *storage.PhotoStore
	lock   *flock.Flock

	mu          sync.Mutex
	cancelSweep context.CancelFunc
}

func New(db *gorm.DB, photos *storage.PhotoStore, lockPath string) *Reaper {
	return &Reaper{
		db:     db,
		photos: photos,
		lock:   flock.New(lockPath),
	}
}

// Run sweeps once at startup and then once after every local midnight, until
// the context is cancelled. If another process holds the lock this instance
// stays idle.
func (r *Reaper) Run(ctx context.Context) error {
	locked, err := r.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire reaper lock: %w", err)
	}
	if !locked {
		logger.Info("Reaper lock held by another process, sweeps disabled here")
		return nil
	}
	defer r.lock.Unlock()

	logger.Info("Reaper started")
	for {
		r.startSweep(ctx)

		delta := untilNextMidnight(time.Now().UTC())
		logger.Debug("Reaper sleeping until next midnight", "hours", delta.Hours())
		select {
		case <-ctx.Done():
			r.stopSweep()
			return ctx.Err()
		case <-time.After(delta):
		}
	}
}

// startSweep launches the sweep as a cancellable task; a still-running
// previous sweep is cancelled first.
func (r *Reaper) startSweep(ctx context.Context) {
	r.mu.Lock()
	if r.cancelSweep != nil {
		r.cancelSweep()
		logger.Info("Previous sweep still running, cancelled")
	}
	sweepCtx, cancel := context.WithCancel(ctx)
	r.cancelSweep = cancel
	r.mu.Unlock()

	go func() {
		defer cancel()
		if err := r.Sweep(sweepCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorf("Sweep failed: %v", err)
		}
	}()
}

func (r *Reaper) stopSweep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelSweep != nil {
		r.cancelSweep()
		r.cancelSweep = nil
	}
}

// Sweep deletes every temporary analysis row from a past calendar day.
// An unconfirmed row's photo is deleted with it; a recorded row's photo is
// owned by the diary and left alone even though the row itself goes.
func (r *Reaper) Sweep(ctx context.Context) error {
	logger.Info("Sweep started")

	var rows []database.TemporaryAnalysis
	if err := r.db.WithContext(ctx).Order("datetime").Find(&rows).Error; err != nil {
		return fmt.Errorf("failed to load temporary analyses: %w", err)
	}

	today := time.Now().UTC().Format(dayLayout)
	stale := make([]uint, 0)
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if row.Datetime.Format(dayLayout) == today {
			continue
		}
		if !row.Recorded && r.photos.Exists(row.PathToPhoto) {
			if err := r.photos.Remove(row.PathToPhoto); err != nil {
				logger.Warnf("Failed to remove stale photo %s: %v", row.PathToPhoto, err)
			} else {
				logger.Debug("Unused photo deleted", "path", row.PathToPhoto)
			}
		}
		stale = append(stale, row.ID)
	}

	if len(stale) > 0 {
		if err := r.db.WithContext(ctx).Delete(&database.TemporaryAnalysis{}, stale).Error; err != nil {
			return fmt.Errorf("failed to delete stale rows: %w", err)
		}
	}

	logger.Infof("Sweep finished, %d rows removed", len(stale))
	return nil
}

func untilNextMidnight(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	return next.Sub(now)
}
