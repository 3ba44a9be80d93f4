package main

import (
	"context"
	"os"

	"github.com/pkg/errors"

	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/camera"
	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/frame"
	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/gallery"
	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/logging"
)

// convertMain runs one image file through the same path a camera capture takes.
func convertMain(ctx context.Context, args *CliArgs) error {
	logger := logging.For("convert").WithField("in", args.InFile)

	raw, err := camera.NewFileSource(args.InFile, cameraParameters(args)).Capture(ctx)
	if err != nil {
		return err
	}
	logger.Debugf("Captured %s frame %dx%d", raw.Format, raw.Width, raw.Height)

	img, err := frame.NewConverter().Convert(raw)
	if err != nil {
		return errors.Wrapf(err, "failed to convert '%s'", args.InFile)
	}
	defer img.Close()

	data, err := img.EncodeJPEG(gallery.SaveJPEGQuality)
	if err != nil {
		return err
	}

	if err := os.WriteFile(args.OutFile, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write '%s'", args.OutFile)
	}

	logger.WithField("out", args.OutFile).Infof("Wrote %dx%d image", img.Side(), img.Side())
	return nil
}
