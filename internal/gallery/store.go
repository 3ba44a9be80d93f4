// Package gallery writes finished photos to disk and keeps a catalog of them.
package gallery

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/logging"
)

const (
	AlbumName = "LandmarkRecognition"

	PrefixWithPrediction = "landmark_with_prediction"
	PrefixPlain          = "landmark"

	SaveJPEGQuality = 90
)

var StorageError = errors.New("failed to save image")

// FileName is <prefix>_<YYYYMMDD_HHmmss>.jpg in t's location.
func FileName(prefix string, t time.Time) string {
	return prefix + "_" + t.Format("20060102_150405") + ".jpg"
}

// DefaultRoot is the user's Pictures directory, or the working directory when there is no home.
func DefaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Pictures")
}

type Entry struct {
	CaptureID uuid.UUID
	Path      string
	Labels    []string
	Location  string
	SavedAt   time.Time
}

type Store struct {
	dir     string
	catalog *Catalog
	now     func() time.Time
}

// NewStore saves under root/AlbumName. catalog may be nil.
func NewStore(root string, catalog *Catalog) *Store {
	return &Store{
		dir:     filepath.Join(root, AlbumName),
		catalog: catalog,
		now:     time.Now,
	}
}

func (s *Store) Dir() string {
	return s.dir
}

// Save encodes img as JPEG and writes it under a timestamped name. A file written in the same
// second with the same prefix is replaced. The returned entry has Path and SavedAt filled in.
func (s *Store) Save(ctx context.Context, img gocv.Mat, prefix string, entry Entry) (Entry, error) {
	logger := logging.For("gallery")

	if err := ctx.Err(); err != nil {
		return entry, errors.Wrapf(StorageError, "%v", err)
	}
	if img.Empty() {
		return entry, errors.Wrap(StorageError, "empty image")
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return entry, errors.Wrapf(StorageError, "failed to create '%s': %v", s.dir, err)
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, SaveJPEGQuality})
	if err != nil {
		return entry, errors.Wrapf(StorageError, "failed to encode: %v", err)
	}
	defer buf.Close()

	entry.SavedAt = s.now()
	entry.Path = filepath.Join(s.dir, FileName(prefix, entry.SavedAt))

	if err := writeFileAtomic(s.dir, entry.Path, buf.GetBytes()); err != nil {
		return entry, errors.Wrapf(StorageError, "%v", err)
	}

	if s.catalog != nil {
		if err := s.catalog.Record(ctx, entry); err != nil {
			// The photo is on disk; a missing catalog row is not worth failing the save.
			logger.WithError(err).Warn("Failed to catalog saved image")
		}
	}

	logger.WithField("path", entry.Path).Info("Image saved")
	return entry, nil
}

func writeFileAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".pending-*.jpg")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to write image")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close image")
	}

	return errors.Wrap(os.Rename(tmp.Name(), path), "failed to move image into place")
}
