package frame

import (
	"bytes"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/logging"
)

var (
	jpegSOI = []byte{0xff, 0xd8}
	jpegEOI = []byte{0xff, 0xd9}
)

// Converter maps RawFrames to SquareImages. It has no state and is safe for concurrent use.
type Converter struct{}

func NewConverter() *Converter {
	return &Converter{}
}

// Convert decodes, rotates and center-crops f. The frame is released before Convert returns,
// whatever the outcome, and is never modified.
func (c *Converter) Convert(f *RawFrame) (*SquareImage, error) {
	if f == nil {
		return nil, errors.Wrap(DecodeError, "nil frame")
	}
	if f.Released() {
		return nil, FrameReleased
	}
	defer f.Release()

	if !f.Rotation.Valid() {
		return nil, errors.Wrapf(InvalidRotation, "%d degrees", int(f.Rotation))
	}

	decoded, err := c.decode(f)
	if err != nil {
		return nil, err
	}

	upright, err := rotate(decoded, f.Rotation)
	if err != nil {
		return nil, err
	}
	defer upright.Close()

	return cropSquare(upright)
}

func (c *Converter) decode(f *RawFrame) (gocv.Mat, error) {
	logger := logging.For("frame").WithField("format", f.Format)

	switch f.Format {
	case FormatJPEG:
		p, err := f.plane(0)
		if err != nil {
			return gocv.Mat{}, err
		}
		return decodeJPEG(p.Data)

	case FormatYUV420888:
		jpg, err := compressYUV(f)
		if err != nil {
			return gocv.Mat{}, err
		}
		return decodeJPEG(jpg)

	default:
		logger.Debugf("Unhandled format, trying plane 0 as JPEG")
		if len(f.Planes) == 0 {
			return gocv.Mat{}, errors.Wrapf(UnsupportedFormatError, "%s without planes", f.Format)
		}
		m, err := decodeJPEG(f.Planes[0].Data)
		if err != nil {
			return gocv.Mat{}, errors.Wrapf(UnsupportedFormatError, "%s: %v", f.Format, err)
		}
		return m, nil
	}
}

func decodeJPEG(data []byte) (gocv.Mat, error) {
	// libjpeg decodes truncated streams into partially grey images instead of failing. An EXIF
	// thumbnail carries its own EOI, so only a marker at the very end (before any zero padding)
	// counts.
	if !bytes.HasPrefix(data, jpegSOI) || !bytes.HasSuffix(bytes.TrimRight(data, "\x00"), jpegEOI) {
		return gocv.Mat{}, errors.Wrapf(DecodeError, "not a complete JPEG stream (%d bytes)", len(data))
	}

	m, err := gocv.IMDecode(data, gocv.IMReadColor|gocv.IMReadIgnoreOrientation)
	if err != nil {
		return gocv.Mat{}, errors.Wrapf(DecodeError, "%v", err)
	}
	if m.Empty() {
		m.Close()
		return gocv.Mat{}, errors.Wrap(DecodeError, "decoder returned no pixels")
	}
	return m, nil
}

// rotate takes ownership of src. A zero rotation returns src itself.
func rotate(src gocv.Mat, r Rotation) (gocv.Mat, error) {
	if r == Rotate0 {
		return src, nil
	}
	defer src.Close()

	dst := gocv.NewMat()
	gocv.Rotate(src, &dst, r.rotateFlag())
	if dst.Empty() {
		dst.Close()
		return gocv.Mat{}, errors.Errorf("rotation by %d degrees produced no pixels", int(r))
	}
	return dst, nil
}

// cropSquare copies the centered square out of src; src stays owned by the caller.
func cropSquare(src gocv.Mat) (*SquareImage, error) {
	region := src.Region(SquareCrop(src.Cols(), src.Rows()))
	defer region.Close()

	return NewSquareImage(region.Clone())
}
