package camera

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/frame"
)

// CaptureJPEGQuality trades detail for capture latency.
const CaptureJPEGQuality = 85

// Package turns a BGR frame into a RawFrame laid out the way a phone camera delivers it. m is
// left untouched and stays owned by the caller.
func Package(m gocv.Mat, p *Parameters) (*frame.RawFrame, error) {
	if m.Empty() {
		return nil, errors.New("empty frame")
	}

	switch p.Format {
	case FormatYUV:
		return packageYUV(m, p.SemiPlanar, p.Rotation)
	default:
		return packageJPEG(m, p.Rotation)
	}
}

func packageJPEG(m gocv.Mat, rotation frame.Rotation) (*frame.RawFrame, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, m, []int{gocv.IMWriteJpegQuality, CaptureJPEGQuality})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode captured frame")
	}

	// The plane aliases the native encoder buffer; releasing the frame frees it.
	f := frame.NewJPEGFrame(buf.GetBytes(), m.Cols(), m.Rows(), rotation)
	f.ReleaseFunc = func() { buf.Close() }
	return f, nil
}

// packageYUV converts to full-range YCrCb and subsamples chroma 2x2, matching what the converter
// expects from a YUV_420_888 sensor frame. Odd trailing rows and columns are dropped.
func packageYUV(m gocv.Mat, semiPlanar bool, rotation frame.Rotation) (*frame.RawFrame, error) {
	w, h := m.Cols()&^1, m.Rows()&^1
	if w == 0 || h == 0 {
		return nil, errors.Errorf("frame %dx%d too small for 4:2:0", m.Cols(), m.Rows())
	}

	even := m.Region(image.Rect(0, 0, w, h))
	defer even.Close()

	ycrcb := gocv.NewMat()
	defer ycrcb.Close()
	gocv.CvtColor(even, &ycrcb, gocv.ColorBGRToYCrCb)

	channels := gocv.Split(ycrcb)
	defer func() {
		for _, c := range channels {
			c.Close()
		}
	}()
	if len(channels) != 3 {
		return nil, errors.Errorf("YCrCb conversion gave %d channels", len(channels))
	}

	cw, ch := w/2, h/2
	crSmall, cbSmall := gocv.NewMat(), gocv.NewMat()
	defer crSmall.Close()
	defer cbSmall.Close()
	gocv.Resize(channels[1], &crSmall, image.Pt(cw, ch), 0, 0, gocv.InterpolationArea)
	gocv.Resize(channels[2], &cbSmall, image.Pt(cw, ch), 0, 0, gocv.InterpolationArea)

	y, cr, cb := channels[0].ToBytes(), crSmall.ToBytes(), cbSmall.ToBytes()

	f := &frame.RawFrame{
		Format:   frame.FormatYUV420888,
		Width:    w,
		Height:   h,
		Rotation: rotation,
	}

	if !semiPlanar {
		f.Planes = []frame.Plane{
			{Data: y, RowStride: w, PixelStride: 1},
			{Data: cb, RowStride: cw, PixelStride: 1},
			{Data: cr, RowStride: cw, PixelStride: 1},
		}
		return f, nil
	}

	vu := make([]byte, 2*cw*ch)
	for i := 0; i < cw*ch; i++ {
		vu[2*i] = cr[i]
		vu[2*i+1] = cb[i]
	}
	f.Planes = []frame.Plane{
		{Data: y, RowStride: w, PixelStride: 1},
		{Data: vu[1:], RowStride: 2 * cw, PixelStride: 2},
		{Data: vu[:len(vu)-1], RowStride: 2 * cw, PixelStride: 2},
	}
	return f, nil
}
