package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/camera"
	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/capture"
	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/logging"
	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/pipeline"
)

// headless follows a controller without a GUI, watching the camera graph for failures.
type headless struct {
	snaps    chan capture.Snapshot
	graphErr <-chan error
	last     capture.Snapshot
}

func (h *headless) await(ctx context.Context, what string, done func(capture.Snapshot) bool) (capture.Snapshot, error) {
	logger := logging.For("snap")

	for {
		select {
		case <-ctx.Done():
			return h.last, errors.Wrapf(ctx.Err(), "gave up waiting for %s", what)

		case err := <-h.graphErr:
			h.graphErr = nil
			if err == nil {
				err = camera.SourceClosed
			}
			return h.last, errors.Wrap(err, "capture source stopped")

		case s := <-h.snaps:
			h.last = s
			logger.WithField("state", s.State).Trace("Snapshot")
			if done(s) {
				return s, nil
			}
		}
	}
}

func snapMain(parentCtx context.Context, args *CliArgs, out io.Writer) error {
	logger := logging.For("snap")

	svc, err := newServices(args)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.WithError(err).Warn("Teardown failed")
		}
	}()

	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	h := &headless{snaps: make(chan capture.Snapshot, 16)}

	// A live source only has frames while its graph runs.
	var graph *pipeline.Graph
	if svc.live != nil {
		graph = pipeline.NewGraph("SNAP")
		graph.SetNodes(svc.live, pipeline.NewDrainNode[*gocv.Mat]("DRAIN", svc.live.Stream()))
		graph.Run(ctx)
		h.graphErr = graph.Err()
	}

	cfg := svc.controllerConfig(args)
	cfg.OnChange = func(s capture.Snapshot) {
		select {
		case h.snaps <- s:
		case <-ctx.Done():
		}
	}
	ctrl := capture.NewController(cfg)

	ctrlErr := make(chan error, 1)
	go func() { ctrlErr <- ctrl.Run(ctx) }()

	defer func() {
		cancel()
		<-ctrlErr
		if h.graphErr != nil {
			if err := <-h.graphErr; err != nil {
				logger.WithError(err).Warn("Capture graph failed")
			}
		}
	}()

	ctrl.Shutter()
	shot, err := h.await(ctx, "the capture", func(s capture.Snapshot) bool {
		return s.State == capture.Captured || s.Notice == capture.NoticeCaptureFailed
	})
	if err != nil {
		return err
	}
	if shot.State != capture.Captured {
		return errors.New(capture.NoticeCaptureFailed)
	}

	withPrediction := cfg.Classifier != nil
	if withPrediction {
		ctrl.Predict()
		if _, err := h.await(ctx, "the prediction", func(s capture.Snapshot) bool { return s.State == capture.Result }); err != nil {
			return err
		}
	}

	if h.last.LocationPending {
		if _, err := h.await(ctx, "the location", func(s capture.Snapshot) bool { return !s.LocationPending }); err != nil {
			return err
		}
	}

	ctrl.Save(withPrediction)
	saved, err := h.await(ctx, "the save", func(s capture.Snapshot) bool {
		switch s.Notice {
		case capture.NoticeSaved, capture.NoticeSavedWithLabels, capture.NoticeSaveFailed:
			return true
		default:
			return false
		}
	})
	if err != nil {
		return err
	}
	if saved.Notice == capture.NoticeSaveFailed {
		return errors.New(capture.NoticeSaveFailed)
	}

	fmt.Fprintln(out, saved.SavedPath)
	if saved.Labels != nil {
		fmt.Fprintln(out, "Landmark:", strings.Join(saved.Labels, ", "))
	}
	if saved.LocationKnown {
		fmt.Fprintln(out, "Location:", strings.TrimPrefix(saved.Location, "Location: "))
	}
	return nil
}
