package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	dayLayout  = "2006-01-02"
	timeLayout = "15-04-05"

	// WebPrefix is the URL prefix under which photos are served.
	WebPrefix = "/static/images"
)

// PhotoStore persists uploaded meal photos on the local filesystem,
// partitioned as {date}/{user_id}/{time}.jpg. Paths handed out to callers
// and recorded in the database are web-relative.
type PhotoStore struct {
	root string
}

func NewPhotoStore(root string) *PhotoStore {
	return &PhotoStore{root: root}
}

// Save writes the image under the per-day, per-user directory, naming the
// file by time-of-day to avoid collisions within the same user-day.
// Returns the web-relative path.
func (p *PhotoStore) Save(userID uint, data []byte, now time.Time) (string, error) {
	dir := filepath.Join(p.root, now.Format(dayLayout), fmt.Sprintf("%d", userID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create photo directory: %w", err)
	}

	name := now.Format(timeLayout) + ".jpg"
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		return "", fmt.Errorf("failed to write photo: %w", err)
	}

	return fmt.Sprintf("%s/%s/%d/%s", WebPrefix, now.Format(dayLayout), userID, name), nil
}

// DiskPath maps a web-relative photo path back to its location on disk.
func (p *PhotoStore) DiskPath(webPath string) string {
	rel := strings.TrimPrefix(webPath, WebPrefix)
	rel = strings.TrimPrefix(rel, "/")
	return filepath.Join(p.root, filepath.FromSlash(rel))
}

// Exists reports whether the backing file for the given web path is present.
func (p *PhotoStore) Exists(webPath string) bool {
	_, err := os.Stat(p.DiskPath(webPath))
	return err == nil
}

// Remove deletes the backing file for the given web path. Missing files are
// not an error.
func (p *PhotoStore) Remove(webPath string) error {
	err := os.Remove(p.DiskPath(webPath))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove photo: %w", err)
	}
	return nil
}
