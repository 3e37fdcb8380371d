package reaper

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vladimiradmaev/food-diary/internal/database"
	"github.com/vladimiradmaev/food-diary/internal/logger"
	"github.com/vladimiradmaev/food-diary/internal/storage"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	if err := logger.InitWithConfig(logger.Config{
		Level:      logger.LevelError,
		OutputPath: "stdout",
		Format:     "text",
	}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database.Models()...))
	return db
}

func stage(t *testing.T, db *gorm.DB, photos *storage.PhotoStore, userID uint, at time.Time, recorded bool) (*database.TemporaryAnalysis, string) {
	t.Helper()
	path, err := photos.Save(userID, []byte("jpeg-bytes"), at)
	require.NoError(t, err)
	row := &database.TemporaryAnalysis{
		UserID:      userID,
		PathToPhoto: path,
		Text:        "Калории: 100",
		Recorded:    recorded,
		Datetime:    at,
	}
	require.NoError(t, db.Create(row).Error)
	return row, path
}

func TestSweep(t *testing.T) {
	db := newTestDB(t)
	photos := storage.NewPhotoStore(t.TempDir())
	r := New(db, photos, filepath.Join(t.TempDir(), "reaper.lock"))

	now := time.Now().UTC()
	yesterday := now.AddDate(0, 0, -1)

	staleUnrecorded, stalePath := stage(t, db, photos, 1, yesterday, false)
	staleRecorded, keptPath := stage(t, db, photos, 2, yesterday, true)
	fresh, freshPath := stage(t, db, photos, 3, now, false)

	require.NoError(t, r.Sweep(context.Background()))

	// Unconfirmed rows from a past day go together with their photo.
	var gone database.TemporaryAnalysis
	assert.ErrorIs(t, db.First(&gone, staleUnrecorded.ID).Error, gorm.ErrRecordNotFound)
	assert.False(t, photos.Exists(stalePath))

	// Confirmed rows go too, but their photo belongs to the diary now.
	assert.ErrorIs(t, db.First(&gone, staleRecorded.ID).Error, gorm.ErrRecordNotFound)
	assert.True(t, photos.Exists(keptPath))

	// Same-day rows are untouched either way.
	var kept database.TemporaryAnalysis
	require.NoError(t, db.First(&kept, fresh.ID).Error)
	assert.True(t, photos.Exists(freshPath))
}

func TestSweepMissingPhotoIsNotFatal(t *testing.T) {
	db := newTestDB(t)
	photos := storage.NewPhotoStore(t.TempDir())
	r := New(db, photos, filepath.Join(t.TempDir(), "reaper.lock"))

	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	row := &database.TemporaryAnalysis{
		UserID:      1,
		PathToPhoto: "/static/images/2024-01-01/1/00-00-00.jpg",
		Datetime:    yesterday,
	}
	require.NoError(t, db.Create(row).Error)

	require.NoError(t, r.Sweep(context.Background()))

	var gone database.TemporaryAnalysis
	assert.ErrorIs(t, db.First(&gone, row.ID).Error, gorm.ErrRecordNotFound)
}

func TestSweepEmptyTable(t *testing.T) {
	db := newTestDB(t)
	photos := storage.NewPhotoStore(t.TempDir())
	r := New(db, photos, filepath.Join(t.TempDir(), "reaper.lock"))

	assert.NoError(t, r.Sweep(context.Background()))
}

func TestRunRespectsForeignLock(t *testing.T) {
	db := newTestDB(t)
	photos := storage.NewPhotoStore(t.TempDir())
	lockPath := filepath.Join(t.TempDir(), "reaper.lock")

	holder := New(db, photos, lockPath)
	locked, err := holder.lock.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer holder.lock.Unlock()

	// A second instance against the same lock file stays idle.
	idle := New(db, photos, lockPath)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, idle.Run(ctx))
}

func TestUntilNextMidnight(t *testing.T) {
	now := time.Date(2024, 1, 5, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Hour, untilNextMidnight(now))

	justAfter := time.Date(2024, 1, 5, 0, 0, 1, 0, time.UTC)
	assert.Equal(t, 24*time.Hour-time.Second, untilNextMidnight(justAfter))
}
