package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/camera"
	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/frame"
	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/gallery"
)

func writeJPEG(t *testing.T, w, h int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 40, G: 120, B: 200, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))

	path := filepath.Join(t.TempDir(), "in.jpg")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*CliArgs)
		wantErr string
	}{
		{name: "defaults", modify: func(*CliArgs) {}},
		{name: "bad log level", modify: func(a *CliArgs) { a.LogLevelString = "LOUD" }, wantErr: "not a valid logrus Level"},
		{name: "bad format", modify: func(a *CliArgs) { a.FormatString = "png" }, wantErr: "unknown frame format"},
		{name: "bad rotation", modify: func(a *CliArgs) { a.RotationDegrees = 45 }, wantErr: "45"},
		{name: "model without labels", modify: func(a *CliArgs) { a.ModelFile = "m.onnx" }, wantErr: "labels file"},
		{name: "threshold out of range", modify: func(a *CliArgs) {
			a.ModelFile, a.LabelsFile, a.Threshold = "m.onnx", "l.txt", 1.5
		}, wantErr: "threshold"},
		{name: "latitude out of range", modify: func(a *CliArgs) {
			a.hasPosition, a.Latitude = true, 91
		}, wantErr: "latitude"},
		{name: "unset position is not checked", modify: func(a *CliArgs) { a.Latitude = 500 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := defaultArgs()
			tt.modify(args)

			err := args.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateParsesValues(t *testing.T) {
	args := defaultArgs()
	args.FormatString = "YUV"
	args.RotationDegrees = 270
	args.LogLevelString = "debug"

	require.NoError(t, args.Validate())
	assert.Equal(t, camera.FormatYUV, args.format)
	assert.Equal(t, frame.Rotate270, args.rotation)
	assert.Equal(t, "debug", args.logLevel.String())
}

func TestConvertCommand(t *testing.T) {
	in := writeJPEG(t, 120, 80)
	out := filepath.Join(t.TempDir(), "out.jpg")

	app := newApp(defaultArgs())
	err := app.Run([]string{"landmarkcam", "--log-level", "WARN", "convert", "--in", in, "--out", out, "--rotation", "90", "--format", "yuv"})
	require.NoError(t, err)

	img := gocv.IMRead(out, gocv.IMReadColor)
	defer img.Close()
	require.False(t, img.Empty())
	assert.Equal(t, 80, img.Cols())
	assert.Equal(t, 80, img.Rows())

	mean := gocv.Mean(img)
	assert.InDelta(t, 200, mean.Val1, 8, "blue")
	assert.InDelta(t, 120, mean.Val2, 8, "green")
	assert.InDelta(t, 40, mean.Val3, 8, "red")
}

func TestConvertCommandRejectsBadRotation(t *testing.T) {
	in := writeJPEG(t, 16, 16)
	app := newApp(defaultArgs())
	err := app.Run([]string{"landmarkcam", "convert", "--in", in, "--out", filepath.Join(t.TempDir(), "x.jpg"), "--rotation", "45"})
	assert.Error(t, err)
}

func TestSnapAndGallery(t *testing.T) {
	args := defaultArgs()
	args.StillImage = writeJPEG(t, 96, 64)
	args.GalleryRoot = t.TempDir()
	args.GeocoderURL = ""
	args.hasPosition = true
	args.Latitude, args.Longitude = 41.89021, 12.492231
	require.NoError(t, args.Validate())

	var out bytes.Buffer
	require.NoError(t, snapMain(context.Background(), args, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	saved := lines[0]
	assert.Equal(t, filepath.Join(args.GalleryRoot, gallery.AlbumName), filepath.Dir(saved))
	assert.True(t, strings.HasPrefix(filepath.Base(saved), gallery.PrefixPlain+"_"))
	assert.Equal(t, "Location: 41.890210, 12.492231", lines[1])

	img := gocv.IMRead(saved, gocv.IMReadColor)
	defer img.Close()
	require.False(t, img.Empty())
	assert.Equal(t, 64, img.Cols())
	assert.Equal(t, 64, img.Rows())

	var listing bytes.Buffer
	require.NoError(t, galleryMain(context.Background(), args, &listing))
	assert.Contains(t, listing.String(), saved)
	assert.Contains(t, listing.String(), "41.890210, 12.492231")
}
