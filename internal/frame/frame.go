// Package frame turns raw camera frames into square, upright BGR images.
//
// A RawFrame is what a capture source hands over: either an encoded JPEG or the three planes of a
// YUV_420_888 image, plus the clockwise rotation needed to show it upright. Converter.Convert
// consumes the frame, releases it, and returns a SquareImage that the caller owns.
package frame

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// PixelFormat tells how the planes of a RawFrame are encoded.
type PixelFormat int

const (
	FormatUnknown PixelFormat = iota
	FormatJPEG
	FormatYUV420888
)

func (f PixelFormat) String() string {
	switch f {
	case FormatJPEG:
		return "JPEG"
	case FormatYUV420888:
		return "YUV_420_888"
	default:
		return fmt.Sprintf("PixelFormat(%d)", int(f))
	}
}

// Rotation is the clockwise correction, in degrees, that makes the frame upright.
type Rotation int

const (
	Rotate0   Rotation = 0
	Rotate90  Rotation = 90
	Rotate180 Rotation = 180
	Rotate270 Rotation = 270
)

func (r Rotation) Valid() bool {
	switch r {
	case Rotate0, Rotate90, Rotate180, Rotate270:
		return true
	default:
		return false
	}
}

func (r Rotation) String() string {
	return fmt.Sprintf("%ddeg", int(r))
}

func (r Rotation) rotateFlag() gocv.RotateFlag {
	switch r {
	case Rotate90:
		return gocv.Rotate90Clockwise
	case Rotate180:
		return gocv.Rotate180Clockwise
	default:
		return gocv.Rotate90CounterClockwise
	}
}

// ParseRotation accepts 0, 90, 180 and 270.
func ParseRotation(degrees int) (Rotation, error) {
	r := Rotation(degrees)
	if !r.Valid() {
		return r, errors.Wrapf(InvalidRotation, "%d degrees", degrees)
	}
	return r, nil
}

// Plane is one image plane as the camera exposes it. For YUV_420_888 the planes are Y, U, V in
// that order; PixelStride is the distance between two samples of the same row.
type Plane struct {
	Data        []byte
	RowStride   int
	PixelStride int
}

// RawFrame is one frame as a capture source hands it over. Convert consumes and releases it.
type RawFrame struct {
	Format   PixelFormat
	Width    int
	Height   int
	Planes   []Plane
	Rotation Rotation

	// ReleaseFunc hands the backing buffers back to the capture source. Called at most once.
	ReleaseFunc func()

	releaseOnce sync.Once
	released    atomic.Bool
}

// NewJPEGFrame wraps an encoded JPEG.
func NewJPEGFrame(data []byte, width, height int, rotation Rotation) *RawFrame {
	return &RawFrame{
		Format:   FormatJPEG,
		Width:    width,
		Height:   height,
		Planes:   []Plane{{Data: data, RowStride: 0, PixelStride: 0}},
		Rotation: rotation,
	}
}

// Release frees the frame. It is safe to call more than once.
func (f *RawFrame) Release() {
	f.releaseOnce.Do(func() {
		f.released.Store(true)
		if f.ReleaseFunc != nil {
			f.ReleaseFunc()
		}
	})
}

func (f *RawFrame) Released() bool {
	return f.released.Load()
}

func (f *RawFrame) plane(i int) (Plane, error) {
	if i >= len(f.Planes) {
		return Plane{}, errors.Wrapf(DecodeError, "%s frame has %d planes, need plane %d", f.Format, len(f.Planes), i)
	}
	return f.Planes[i], nil
}
