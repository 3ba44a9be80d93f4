package main

import (
	"image"
	"sync"
	"sync/atomic"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/camera"
	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/pipeline"
)

// photoView shows the live preview until a photo is taken, then the photo.
type photoView struct {
	container *fyne.Container
	objIdx    int
	size      fyne.Size

	live atomic.Bool

	mu      sync.Mutex
	viewImg *canvas.Image
}

func newPhotoView(size fyne.Size) *photoView {
	v := &photoView{
		container: container.New(layout.NewCenterLayout(), defaultNoSignalImage(size)),
		objIdx:    0, // added the default image above as the first in container
		size:      size,
	}
	v.live.Store(true)
	return v
}

func (v *photoView) show(img image.Image) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if img == nil {
		v.viewImg = nil
		v.container.Objects[v.objIdx] = defaultNoSignalImage(v.size)
	} else if v.viewImg != nil {
		v.viewImg.Image = img
	} else {
		v.viewImg = canvas.NewImageFromImage(img)
		v.viewImg.SetMinSize(v.size)
		v.viewImg.FillMode = canvas.ImageFillContain
		v.container.Objects[v.objIdx] = v.viewImg
	}

	v.container.Refresh()
}

func (v *photoView) showPhoto(img image.Image) {
	v.live.Store(false)
	v.show(img)
}

// showLive clears the photo; the next preview frame replaces the placeholder.
func (v *photoView) showLive() {
	if v.live.Swap(true) {
		return
	}
	v.show(nil)
}

// newPreviewViewer puts live previews into view while it is not showing a photo.
func newPreviewViewer(name string, inChan <-chan image.Image, view *photoView) *pipeline.SinkNode[image.Image] {
	viewer := pipeline.NewSinkNode[image.Image](name, inChan)

	viewer.StepFunc(func(img image.Image) error {
		if img == nil || !view.live.Load() {
			return nil
		}

		view.show(img)
		return nil
	})

	return viewer
}

func defaultNoSignalImage(size fyne.Size) *canvas.Image {
	img := canvas.NewImageFromResource(theme.MediaVideoIcon())
	img.SetMinSize(size)

	return img
}

func makeSourceSettingsContainer(p *camera.Parameters) *fyne.Container {
	lrFlipCheck := widget.NewCheckWithData("LR", binding.BindBool(&p.LRFlip))
	udFlipCheck := widget.NewCheckWithData("UD", binding.BindBool(&p.UDFlip))

	return container.New(layout.NewGridLayout(2),
		widget.NewLabel("SourceId:"),
		widget.NewLabel(p.SourceID),

		widget.NewLabel("Format:"),
		widget.NewLabel(string(p.Format)),

		widget.NewLabel("Rotation:"),
		widget.NewLabel(p.Rotation.String()),

		widget.NewLabel("Flip:"),
		container.New(layout.NewHBoxLayout(),
			lrFlipCheck,
			udFlipCheck,
		),
	)
}
