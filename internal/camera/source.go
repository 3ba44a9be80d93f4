package camera

import (
	"bytes"
	"context"
	"image/jpeg"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/frame"
	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/logging"
	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/pipeline"
)

var SourceClosed = errors.New("capture source closed")

// Source streams frames from an OpenCV video capture and remembers the latest one for Capture.
type Source struct {
	*pipeline.SourceNode[*gocv.Mat]
	p *Parameters

	latestMu  sync.Mutex
	latest    gocv.Mat
	hasLatest bool
	closed    bool
	ready     chan struct{}
	readyOnce sync.Once
}

var _ pipeline.Node = &Source{}

func NewSource(name string, p *Parameters) *Source {
	src := &Source{
		SourceNode: pipeline.NewSourceNode[*gocv.Mat](name),
		p:          p,
		ready:      make(chan struct{}),
	}

	var (
		videoCapture *gocv.VideoCapture
		frameBuffer  gocv.Mat
	)

	src.SetupFunc(func() error {
		logger := logging.For("camera").WithField("source", src.p.SourceID)

		var err error
		if src.p.FromFile {
			videoCapture, err = gocv.VideoCaptureFile(src.p.SourceID)
		} else {
			// NOTE: This turns on the camera; its status LED should light up.
			videoCapture, err = gocv.OpenVideoCapture(src.p.SourceID)
		}
		if err != nil {
			logger.WithError(err).Errorf("OpenVideoCapture failed")
			return errors.Wrapf(err, "failed to open video capture source '%s'", src.p.SourceID)
		}

		frameBuffer = gocv.NewMat()

		src.latestMu.Lock()
		src.latest = gocv.NewMat()
		src.latestMu.Unlock()

		logger.Debug("Capture opened")
		return nil
	})

	src.TeardownFunc(func() error {
		src.latestMu.Lock()
		defer src.latestMu.Unlock()
		src.closed = true

		return pipeline.FlattenErrors(
			errors.Wrapf(videoCapture.Close(), "video capture source teardown error"),
			errors.Wrapf(frameBuffer.Close(), "video capture frame buffer teardown error"),
			errors.Wrapf(src.latest.Close(), "latest frame teardown error"),
		)
	})

	src.StepFunc(func() (*gocv.Mat, error) {
		if ok := videoCapture.Read(&frameBuffer); !ok {
			return nil, io.EOF
		}

		if src.p.LRFlip && src.p.UDFlip {
			gocv.Flip(frameBuffer, &frameBuffer, flipBoth)
		} else if src.p.LRFlip {
			gocv.Flip(frameBuffer, &frameBuffer, flipLeftRight)
		} else if src.p.UDFlip {
			gocv.Flip(frameBuffer, &frameBuffer, flipUpDown)
		}

		if !frameBuffer.Empty() {
			src.remember(frameBuffer)
		}

		// NOTE: Returned frame may be empty!
		return &frameBuffer, nil
	})

	return src
}

// Parameters are read on every frame; flips may be toggled while the source runs.
func (src *Source) Parameters() *Parameters {
	return src.p
}

func (src *Source) remember(m gocv.Mat) {
	src.latestMu.Lock()
	defer src.latestMu.Unlock()

	m.CopyTo(&src.latest)
	src.hasLatest = true
	src.readyOnce.Do(func() { close(src.ready) })
}

// Capture packages the most recent frame. It waits for the first frame if none arrived yet.
func (src *Source) Capture(ctx context.Context) (*frame.RawFrame, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-src.ready:
	}

	src.latestMu.Lock()
	if src.closed || !src.hasLatest {
		src.latestMu.Unlock()
		return nil, SourceClosed
	}
	snapshot := src.latest.Clone()
	src.latestMu.Unlock()
	defer snapshot.Close()

	return Package(snapshot, src.p)
}

// FileSource captures a still image from disk on every call.
type FileSource struct {
	path string
	p    *Parameters
}

func NewFileSource(path string, p *Parameters) *FileSource {
	return &FileSource{path: path, p: p}
}

func (fs *FileSource) Capture(ctx context.Context) (*frame.RawFrame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// JPEG files go through untouched, like a camera that encodes on the sensor side.
	if fs.p.Format == FormatJPEG {
		data, err := os.ReadFile(fs.path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read '%s'", fs.path)
		}
		if len(data) > 2 && data[0] == 0xff && data[1] == 0xd8 {
			cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
			if err != nil {
				return nil, errors.Wrapf(err, "failed to read JPEG header of '%s'", fs.path)
			}
			return frame.NewJPEGFrame(data, cfg.Width, cfg.Height, fs.p.Rotation), nil
		}
	}

	img := gocv.IMRead(fs.path, gocv.IMReadColor)
	defer img.Close()
	if img.Empty() {
		return nil, errors.Errorf("failed to read image '%s'", fs.path)
	}

	return Package(img, fs.p)
}
