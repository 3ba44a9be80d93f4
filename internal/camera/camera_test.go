package camera

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/frame"
	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/pipeline"
)

func solidMat(t *testing.T, w, h int, bgr gocv.Scalar) gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSizeFromScalar(bgr, h, w, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("YUV")
	require.NoError(t, err)
	assert.Equal(t, FormatYUV, f)

	_, err = ParseFormat("raw10")
	assert.Error(t, err)
}

func TestPreviewSize(t *testing.T) {
	assert.Equal(t, image.Pt(320, 180), PreviewSize(1920, 1080, 320))
	assert.Equal(t, image.Pt(160, 120), PreviewSize(160, 120, 320))
}

func TestPreviewConverterKeepsCameraFlowing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan *gocv.Mat)
	pc := NewPreviewConverter("CNV", in, 16)
	pc.Run(ctx)

	m := solidMat(t, 64, 48, gocv.NewScalar(0, 0, 255, 0))
	sendCtx, sendCancel := context.WithTimeout(ctx, 5*time.Second)
	defer sendCancel()
	for i := 0; i < 3; i++ {
		require.NoError(t, pipeline.BlockingSend(sendCtx, in, &m))
	}

	go func() {
		for pipeline.BlockingSend(ctx, in, &m) == nil {
		}
	}()

	select {
	case img := <-pc.Stream():
		require.NotNil(t, img)
		assert.Equal(t, image.Pt(16, 12), img.Bounds().Size())
	case <-time.After(5 * time.Second):
		t.Fatal("no preview image")
	}

	cancel()
	assert.ErrorIs(t, <-pc.Err(), context.Canceled)
}

func TestPackageJPEGReleasesNativeBuffer(t *testing.T) {
	p := NewParameters("0")
	p.Rotation = frame.Rotate90

	f, err := Package(solidMat(t, 64, 48, gocv.NewScalar(40, 80, 120, 0)), p)
	require.NoError(t, err)

	assert.Equal(t, frame.FormatJPEG, f.Format)
	assert.Equal(t, 64, f.Width)
	assert.Equal(t, 48, f.Height)
	assert.Equal(t, frame.Rotate90, f.Rotation)
	require.NotNil(t, f.ReleaseFunc)

	img, err := frame.NewConverter().Convert(f)
	require.NoError(t, err)
	defer img.Close()

	assert.True(t, f.Released())
	assert.Equal(t, 48, img.Side())
}

func TestPackageYUVRoundTrip(t *testing.T) {
	for _, semiPlanar := range []bool{false, true} {
		p := NewParameters("0")
		p.Format = FormatYUV
		p.SemiPlanar = semiPlanar

		// Odd sizes lose their last row and column.
		f, err := Package(solidMat(t, 65, 49, gocv.NewScalar(40, 80, 200, 0)), p)
		require.NoError(t, err)

		assert.Equal(t, frame.FormatYUV420888, f.Format)
		assert.Equal(t, 64, f.Width)
		assert.Equal(t, 48, f.Height)
		require.Len(t, f.Planes, 3)
		assert.Len(t, f.Planes[0].Data, 64*48)
		if semiPlanar {
			assert.Equal(t, 2, f.Planes[1].PixelStride)
			assert.Len(t, f.Planes[2].Data, 2*32*24-1)
		} else {
			assert.Equal(t, 1, f.Planes[1].PixelStride)
			assert.Len(t, f.Planes[2].Data, 32*24)
		}

		img, err := frame.NewConverter().Convert(f)
		require.NoError(t, err)

		mean := gocv.Mean(img.Mat())
		assert.InDelta(t, 40, mean.Val1, 6, "blue, semiPlanar=%v", semiPlanar)
		assert.InDelta(t, 80, mean.Val2, 6, "green, semiPlanar=%v", semiPlanar)
		assert.InDelta(t, 200, mean.Val3, 6, "red, semiPlanar=%v", semiPlanar)
		img.Close()
	}
}

func TestFileSourceJPEGPassthrough(t *testing.T) {
	path := filepath.Join(t.TempDir(), "still.jpg")
	out, err := os.Create(path)
	require.NoError(t, err)
	rgba := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for i := range rgba.Pix {
		rgba.Pix[i] = 0xff
	}
	rgba.Set(0, 0, color.Black)
	require.NoError(t, jpeg.Encode(out, rgba, nil))
	require.NoError(t, out.Close())

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)

	p := NewParameters(path)
	f, err := NewFileSource(path, p).Capture(context.Background())
	require.NoError(t, err)

	assert.Equal(t, frame.FormatJPEG, f.Format)
	assert.Equal(t, 40, f.Width)
	assert.Equal(t, 30, f.Height)
	assert.Equal(t, onDisk, f.Planes[0].Data)
}

func TestFileSourceMissingFile(t *testing.T) {
	p := NewParameters("missing.jpg")
	_, err := NewFileSource(filepath.Join(t.TempDir(), "missing.jpg"), p).Capture(context.Background())
	assert.Error(t, err)
}

func TestCaptureCanceledBeforeFirstFrame(t *testing.T) {
	src := NewSource("CAM", NewParameters("0"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Capture(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
