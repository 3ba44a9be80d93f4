package camera

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/pipeline"
)

// NewPreviewConverter scales frames to width pixels (keeping the aspect ratio) and converts them
// to images for display. Empty frames become nil images. Frames converted while the viewer is
// still busy with an earlier one are dropped, so the camera is never held up by the display.
func NewPreviewConverter(name string, inChan <-chan *gocv.Mat, width int) *pipeline.ConverterNode[*gocv.Mat, image.Image] {
	pc := pipeline.NewConverterNode[*gocv.Mat, image.Image](name, inChan)
	pc.DropWhenBusy()

	var previewBuffer gocv.Mat

	pc.SetupFunc(func() error {
		previewBuffer = gocv.NewMat()
		return nil
	})

	pc.TeardownFunc(func() error {
		return errors.Wrapf(previewBuffer.Close(), "preview buffer teardown error")
	})

	pc.StepFunc(func(rawFrame *gocv.Mat) (image.Image, error) {
		if rawFrame == nil || rawFrame.Empty() {
			return nil, nil
		}

		gocv.Resize(*rawFrame, &previewBuffer, PreviewSize(rawFrame.Cols(), rawFrame.Rows(), width), 0, 0, gocv.InterpolationLinear)

		img, err := previewBuffer.ToImage()
		if err != nil {
			return nil, errors.Wrap(err, "failed to convert raw frame")
		}

		return img, nil
	})

	return pc
}

// PreviewSize scales w x h to the given width. Frames narrower than width keep their size.
func PreviewSize(w, h, width int) image.Point {
	if w <= width || w == 0 {
		return image.Pt(w, h)
	}
	return image.Pt(width, (h*width+w/2)/w)
}
