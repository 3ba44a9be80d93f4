package frame

import (
	"bytes"
	"image"
	"image/jpeg"

	"github.com/pkg/errors"
)

// YUVJPEGQuality is the quality used when a YUV frame is compressed on its way to pixels.
const YUVJPEGQuality = 90

// AssembleNV21 concatenates the planes of a YUV_420_888 frame into one buffer of
// len(y)+len(u)+len(v) bytes: Y first, then V, then U. None of the planes is modified.
//
// With packed chroma (pixel stride 1) V and U are copied straight into place. Otherwise the planes
// are views of one interleaved chroma buffer, so V and U are staged in a scratch buffer and copied
// as a whole, which leaves the VU pairs in NV21 order right after Y.
func AssembleNV21(y, u, v Plane) []byte {
	ySize, uSize, vSize := len(y.Data), len(u.Data), len(v.Data)
	nv21 := make([]byte, ySize+uSize+vSize)

	copy(nv21, y.Data)

	if u.PixelStride == 1 {
		copy(nv21[ySize:], v.Data)
		copy(nv21[ySize+vSize:], u.Data)
		return nv21
	}

	uv := make([]byte, vSize+uSize)
	copy(uv, v.Data)
	copy(uv[vSize:], u.Data)
	copy(nv21[ySize:], uv)
	return nv21
}

// chromaLayout says where the samples of an assembled buffer live.
type chromaLayout struct {
	width, height int
	yStride       int
	cStride       int
	vOffset       int
	uOffset       int
	// sampleStep is 1 for planar V then U, 2 for interleaved VU pairs.
	sampleStep int
}

func layoutOf(width, height int, y, u, v Plane) chromaLayout {
	l := chromaLayout{
		width:   width,
		height:  height,
		yStride: y.RowStride,
		cStride: v.RowStride,
		vOffset: len(y.Data),
	}
	if l.yStride <= 0 {
		l.yStride = width
	}

	if u.PixelStride == 1 {
		l.sampleStep = 1
		l.uOffset = len(y.Data) + len(v.Data)
		if l.cStride <= 0 {
			l.cStride = (width + 1) / 2
		}
	} else {
		l.sampleStep = 2
		l.uOffset = l.vOffset + 1
		if l.cStride <= 0 {
			l.cStride = 2 * ((width + 1) / 2)
		}
	}
	return l
}

// ycbcr interprets an assembled buffer as a full-range 4:2:0 image. Packed chroma is used in
// place; interleaved chroma is split into separate planes.
func (l chromaLayout) ycbcr(buf []byte) (*image.YCbCr, error) {
	cw, ch := (l.width+1)/2, (l.height+1)/2

	if need := (l.height-1)*l.yStride + l.width; len(buf) < need || l.vOffset < need {
		return nil, errors.Wrapf(DecodeError, "Y plane holds %d bytes, need %d", l.vOffset, need)
	}

	lastChroma := (ch-1)*l.cStride + (cw-1)*l.sampleStep
	if l.vOffset+lastChroma >= len(buf) || l.uOffset+lastChroma >= len(buf) {
		return nil, errors.Wrapf(DecodeError, "chroma planes too short for %dx%d", l.width, l.height)
	}

	if l.sampleStep == 1 && l.uOffset-l.vOffset <= lastChroma {
		return nil, errors.Wrapf(DecodeError, "V plane too short for %dx%d", l.width, l.height)
	}

	img := &image.YCbCr{
		Y:              buf[:l.vOffset],
		YStride:        l.yStride,
		SubsampleRatio: image.YCbCrSubsampleRatio420,
		Rect:           image.Rect(0, 0, l.width, l.height),
	}

	if l.sampleStep == 1 {
		img.Cr = buf[l.vOffset:l.uOffset]
		img.Cb = buf[l.uOffset:]
		img.CStride = l.cStride
		return img, nil
	}

	img.Cb = make([]byte, cw*ch)
	img.Cr = make([]byte, cw*ch)
	img.CStride = cw
	for row := 0; row < ch; row++ {
		for col := 0; col < cw; col++ {
			src := row*l.cStride + col*2
			img.Cr[row*cw+col] = buf[l.vOffset+src]
			img.Cb[row*cw+col] = buf[l.uOffset+src]
		}
	}
	return img, nil
}

// compressYUV assembles the planes and encodes them as a JPEG covering the whole frame.
func compressYUV(f *RawFrame) ([]byte, error) {
	if f.Width <= 0 || f.Height <= 0 {
		return nil, errors.Wrapf(DecodeError, "invalid frame size %dx%d", f.Width, f.Height)
	}

	var planes [3]Plane
	for i := range planes {
		p, err := f.plane(i)
		if err != nil {
			return nil, err
		}
		planes[i] = p
	}
	y, u, v := planes[0], planes[1], planes[2]

	buf := AssembleNV21(y, u, v)
	img, err := layoutOf(f.Width, f.Height, y, u, v).ycbcr(buf)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	err = jpeg.Encode(&out, img, &jpeg.Options{Quality: YUVJPEGQuality})
	if err != nil {
		return nil, errors.Wrap(err, "failed to compress YUV frame")
	}
	return out.Bytes(), nil
}
