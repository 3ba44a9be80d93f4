package main

import (
	"context"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/camera"
	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/capture"
	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/classify"
	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/logging"
	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/pipeline"
)

const (
	appTitle = "Landmark Recognition"
	viewSide = 480
)

// controls are the widgets that follow the controller state.
type controls struct {
	app  fyne.App
	view *photoView

	shutter *widget.Button
	retake  *widget.Button
	predict *widget.Button
	save    *widget.Button

	location *widget.Label
	landmark *widget.Label
	notice   *widget.Label

	lastMu sync.Mutex
	last   capture.Snapshot
}

func (ui *controls) render(s capture.Snapshot) {
	ui.lastMu.Lock()
	ui.last = s
	ui.lastMu.Unlock()

	if s.State.HasImage() {
		ui.view.showPhoto(s.Preview)
	} else {
		ui.view.showLive()
	}

	enable(ui.shutter, s.State == capture.Idle)
	enable(ui.retake, s.State.HasImage())
	enable(ui.predict, s.State == capture.Captured || s.State == capture.Result)
	enable(ui.save, s.State == capture.Captured || s.State == capture.Result)

	if s.Location != "" {
		ui.location.SetText("Location:\n" + s.Location)
	} else {
		ui.location.SetText("")
	}

	switch {
	case s.State == capture.Classifying:
		ui.landmark.SetText("Classifying...")
	case s.Labels != nil:
		ui.landmark.SetText("Detected Landmark:\n" + strings.Join(s.Labels, "\n"))
	default:
		ui.landmark.SetText("")
	}

	if s.Notice != "" {
		ui.notice.SetText(s.Notice)
		ui.app.SendNotification(fyne.NewNotification(appTitle, s.Notice))
	}
}

func (ui *controls) lastSnapshot() capture.Snapshot {
	ui.lastMu.Lock()
	defer ui.lastMu.Unlock()
	return ui.last
}

func enable(b *widget.Button, on bool) {
	if on {
		b.Enable()
	} else {
		b.Disable()
	}
}

// showSaveDialog asks whether to burn the prediction into the saved image. Without a prediction
// there is nothing to ask.
func showSaveDialog(win fyne.Window, ctrl *capture.Controller, hasPrediction bool) {
	if !hasPrediction {
		ctrl.Save(false)
		return
	}

	var d dialog.Dialog
	yes := widget.NewButton("Yes", func() {
		d.Hide()
		ctrl.Save(true)
	})
	no := widget.NewButton("No", func() {
		d.Hide()
		ctrl.Save(false)
	})

	content := container.New(layout.NewVBoxLayout(),
		widget.NewLabel("Save the image with the prediction?"),
		container.New(layout.NewHBoxLayout(),
			layout.NewSpacer(),
			yes,
			no,
			layout.NewSpacer(),
		),
	)

	d = dialog.NewCustom("Save Image", "Cancel", content, win)
	d.Show()
}

func guiMain(parentCtx context.Context, args *CliArgs) error {
	logger := logging.For("gui")

	svc, err := newServices(args)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.WithError(err).Warn("Teardown failed")
		}
	}()

	// Create app.

	landmarkcam := app.NewWithID("landmarkcam")
	landmarkcam.SetIcon(theme.SearchIcon())

	// Create app window.

	window := landmarkcam.NewWindow(appTitle)
	window.SetFixedSize(true)
	window.SetMaster()

	// Create GUI components.

	ui := &controls{
		app:      landmarkcam,
		view:     newPhotoView(fyne.NewSize(viewSide, viewSide)),
		location: widget.NewLabel(""),
		landmark: widget.NewLabel(""),
		notice:   widget.NewLabel(""),
	}

	var ctrl *capture.Controller
	ui.shutter = widget.NewButtonWithIcon("Capture", theme.MediaRecordIcon(), func() { ctrl.Shutter() })
	ui.retake = widget.NewButtonWithIcon("Retake", theme.ViewRefreshIcon(), func() { ctrl.Retake() })
	ui.predict = widget.NewButtonWithIcon("Predict", theme.SearchIcon(), func() { ctrl.Predict() })
	ui.save = widget.NewButtonWithIcon("Save", theme.DocumentSaveIcon(), func() {
		last := ui.lastSnapshot()
		hasPrediction := last.State == capture.Result && len(last.Labels) > 0 && last.Labels[0] != classify.NoLandmark
		showSaveDialog(window, ctrl, hasPrediction)
	})

	cfg := svc.controllerConfig(args)
	cfg.OnChange = ui.render
	ctrl = capture.NewController(cfg)

	photoPanel := container.New(layout.NewVBoxLayout(),
		ui.view.container,
		ui.location,
		ui.landmark,
	)
	buttons := container.New(layout.NewHBoxLayout(),
		layout.NewSpacer(),
		ui.shutter,
		ui.retake,
		ui.predict,
		ui.save,
		layout.NewSpacer(),
	)

	mainView := photoPanel
	if svc.live != nil {
		settings := container.New(layout.NewVBoxLayout(),
			widget.NewSeparator(),
			makeSourceSettingsContainer(svc.live.Parameters()),
			widget.NewSeparator(),
		)
		mainView = container.New(layout.NewHBoxLayout(), settings, photoPanel)
	}

	// Populate window.
	window.SetContent(container.New(layout.NewVBoxLayout(),
		widget.NewLabelWithStyle(appTitle, fyne.TextAlignCenter, fyne.TextStyle{Bold: true}),
		mainView,
		buttons,
		ui.notice,
	))

	// Run background loops.
	ctx, cancelCtx := context.WithCancel(parentCtx)
	defer cancelCtx()

	ctrlErr := make(chan error, 1)
	go func() { ctrlErr <- ctrl.Run(ctx) }()

	graphErr := make(chan error, 1)
	if svc.live != nil {
		graph := previewGraph(svc.live, ui.view)
		logger.Tracef("Starting preview graph.")
		graph.Run(ctx)
		go func() {
			err := <-graph.Err()
			graphErr <- err
			if err != nil {
				window.Close()
			}
		}()
	} else {
		graphErr <- nil
	}

	// Start GUI.
	logger.Infof("Starting GUI application.")
	window.ShowAndRun()
	cancelCtx()
	logger.Tracef("GUI application stopped.")

	// Shutdown.
	logger.Tracef("Waiting for the background loops to stop...")
	if err := <-ctrlErr; err != nil {
		logger.WithError(err).Error("Controller failed.")
	}
	if err := <-graphErr; err != nil {
		logger.WithError(err).Error("Preview graph failed.")
	}

	logger.Infof("Shutdown complete.")
	return nil
}

// previewGraph streams the live source into view.
func previewGraph(src *camera.Source, view *photoView) *pipeline.Graph {
	graph := pipeline.NewGraph("PREVIEW")

	preview := camera.NewPreviewConverter("CNV", src.Stream(), viewSide)
	viewer := newPreviewViewer("VIEW", preview.Stream(), view)
	graph.SetNodes(src, preview, viewer)

	return graph
}
