// Package capture drives the shutter, classification, location and save steps for one photo at a
// time.
package capture

import (
	"context"
	"image"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/classify"
	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/frame"
	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/gallery"
)

type State int

const (
	Idle State = iota
	Capturing
	Captured
	Classifying
	Result
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	case Captured:
		return "captured"
	case Classifying:
		return "classifying"
	case Result:
		return "result"
	default:
		return "unknown"
	}
}

// HasImage reports whether a photo is on hand in this state.
func (s State) HasImage() bool {
	return s == Captured || s == Classifying || s == Result
}

const (
	LocationFetching = "Fetching location..."
	LocationFailed   = "Failed to get location"

	NoticeCaptureFailed   = "Failed to capture image"
	NoticeSavedWithLabels = "Image saved with prediction!"
	NoticeSaved           = "Image saved!"
	NoticeSaveFailed      = "Failed to save image"
)

type Source interface {
	Capture(ctx context.Context) (*frame.RawFrame, error)
}

type Converter interface {
	Convert(f *frame.RawFrame) (*frame.SquareImage, error)
}

type Classifier interface {
	Classify(ctx context.Context, img *frame.SquareImage) ([]classify.Label, error)
}

type Locator interface {
	Describe(ctx context.Context) (string, error)
}

type Saver interface {
	Save(ctx context.Context, img gocv.Mat, prefix string, entry gallery.Entry) (gallery.Entry, error)
}

// Snapshot is what observers see after each change. It shares nothing mutable with the
// controller.
type Snapshot struct {
	State     State
	CaptureID uuid.UUID

	// Preview of the current photo, nil without one.
	Preview image.Image

	// Labels is nil until the photo is classified, then holds at least the NoLandmark placeholder.
	Labels []string

	// Location is the status line: LocationFetching, LocationFailed or a place description.
	Location        string
	LocationPending bool
	LocationKnown   bool

	// Notice is set only on the snapshot that reports the outcome it describes.
	Notice    string
	SavedPath string
}
