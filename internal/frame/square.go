package frame

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// SquareCrop returns the centered d x d rectangle of a w x h image, d = min(w, h). The margin on
// the longer axis is (max-d)/2, rounded down.
func SquareCrop(w, h int) image.Rectangle {
	if w > h {
		x := (w - h) / 2
		return image.Rect(x, 0, x+h, h)
	}
	y := (h - w) / 2
	return image.Rect(0, y, w, y+w)
}

// SquareImage is a BGR image with as many rows as columns. Its owner must Close it.
type SquareImage struct {
	mat    gocv.Mat
	closed bool
}

// NewSquareImage takes ownership of m, which must be square and non-empty.
func NewSquareImage(m gocv.Mat) (*SquareImage, error) {
	if m.Empty() {
		return nil, errors.Wrap(DecodeError, "empty image")
	}
	if m.Rows() != m.Cols() {
		return nil, errors.Errorf("image is %dx%d, not square", m.Cols(), m.Rows())
	}
	return &SquareImage{mat: m}, nil
}

func (s *SquareImage) Side() int {
	return s.mat.Cols()
}

// Mat returns the underlying matrix. It stays owned by the SquareImage.
func (s *SquareImage) Mat() gocv.Mat {
	return s.mat
}

func (s *SquareImage) Clone() *SquareImage {
	return &SquareImage{mat: s.mat.Clone()}
}

func (s *SquareImage) ToImage() (image.Image, error) {
	img, err := s.mat.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert square image")
	}
	return img, nil
}

func (s *SquareImage) EncodeJPEG(quality int) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, s.mat, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode JPEG")
	}
	defer buf.Close()

	encoded := buf.GetBytes()
	out := make([]byte, len(encoded))
	copy(out, encoded)
	return out, nil
}

func (s *SquareImage) Close() error {
	if s == nil || s.closed {
		return nil
	}
	s.closed = true
	return s.mat.Close()
}
