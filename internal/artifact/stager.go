// Package artifact manages the single locally staged attachment file.
//
// At most one staged artifact exists for the currently processing form. It is
// guaranteed absent before the download begins and absent again after the form
// finishes, whatever the outcome; the pipeline defers Release on every exit
// path.
package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"journalize_robot_backend/platform/apperr"
	"journalize_robot_backend/platform/logger"
)

// Downloader fetches attachment bytes from the forms platform.
type Downloader interface {
	DownloadBytes(ctx context.Context, url string) ([]byte, error)
}

// Stager stages and releases the per-form artifact file.
type Stager struct {
	downloader Downloader
	log        *logger.Logger
}

// New creates a new artifact stager.
func New(downloader Downloader, log *logger.Logger) *Stager {
	return &Stager{downloader: downloader, log: log}
}

// Stage downloads the attachment at url to destination. It ensures the parent
// directory exists, removes any stale file from a previous run, writes the
// bytes atomically and verifies the file is in place.
func (s *Stager) Stage(ctx context.Context, url, destination string) error {
	dir := filepath.Dir(destination)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.Filesystem(fmt.Sprintf("failed to create staging directory %q", dir), err)
	}

	if err := removeIfPresent(destination); err != nil {
		return apperr.Filesystem(fmt.Sprintf("failed to remove stale artifact %q", destination), err)
	}

	data, err := s.downloader.DownloadBytes(ctx, url)
	if err != nil {
		return err
	}

	tmp := destination + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return apperr.Filesystem(fmt.Sprintf("failed to write artifact %q", tmp), err)
	}
	if err := os.Rename(tmp, destination); err != nil {
		_ = os.Remove(tmp)
		return apperr.Filesystem(fmt.Sprintf("failed to move artifact into place at %q", destination), err)
	}

	if _, err := os.Stat(destination); err != nil {
		return apperr.Filesystem(fmt.Sprintf("staged artifact %q missing after write", destination), err)
	}

	s.log.Debug("artifact staged", "path", destination, "bytes", len(data))

	return nil
}

// Release deletes the staged file. A missing file is not an error.
func (s *Stager) Release(destination string) error {
	if err := removeIfPresent(destination); err != nil {
		return apperr.Filesystem(fmt.Sprintf("failed to release staged artifact %q", destination), err)
	}
	return nil
}

func removeIfPresent(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
