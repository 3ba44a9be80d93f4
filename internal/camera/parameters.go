// Package camera reads frames with OpenCV and packages them into frame.RawFrames.
package camera

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/frame"
)

const (
	flipBoth      int = -1
	flipUpDown    int = 0
	flipLeftRight int = 1
)

// Format selects how a captured frame is handed to the converter.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatYUV  Format = "yuv"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJPEG, FormatYUV:
		return f, nil
	default:
		return "", errors.Errorf("unknown frame format '%s'", s)
	}
}

type Parameters struct {
	// SourceID is a device ID, a file name, a URL, etc.
	// See https://pkg.go.dev/gocv.io/x/gocv#OpenVideoCapture
	SourceID string

	// FromFile opens SourceID as a video file instead of a capture device.
	FromFile bool

	LRFlip bool
	UDFlip bool

	Format Format

	// SemiPlanar exposes YUV chroma as interleaved VU views (pixel stride 2) instead of separate
	// planes.
	SemiPlanar bool

	// Rotation is reported with every frame. Webcams do not know their mounting, so it comes from
	// configuration.
	Rotation frame.Rotation
}

func NewParameters(sourceID string) *Parameters {
	return &Parameters{
		SourceID: sourceID,
		LRFlip:   false,
		UDFlip:   false,
		Format:   FormatJPEG,
		Rotation: frame.Rotate0,
	}
}
