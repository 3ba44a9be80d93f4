package main

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/camera"
	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/capture"
	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/classify"
	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/frame"
	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/gallery"
	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/geo"
	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/pipeline"
)

// services are the collaborators of the capture controller, built from the command line.
type services struct {
	// live is set when frames come from a video source; its node has to run in a graph.
	live   *camera.Source
	source capture.Source

	classifier *classify.Net
	locator    *geo.Locator
	catalog    *gallery.Catalog
	store      *gallery.Store
}

func cameraParameters(args *CliArgs) *camera.Parameters {
	p := camera.NewParameters(args.SourceId)
	p.FromFile = args.FromFile
	p.LRFlip = args.LRFlip
	p.UDFlip = args.UDFlip
	p.Format = args.format
	p.SemiPlanar = args.SemiPlanar
	p.Rotation = args.rotation
	return p
}

func captureSource(args *CliArgs) (capture.Source, *camera.Source) {
	p := cameraParameters(args)
	if args.StillImage != "" {
		return camera.NewFileSource(args.StillImage, p), nil
	}
	live := camera.NewSource("VSRC", p)
	return live, live
}

func catalogPath(args *CliArgs) string {
	if args.CatalogFile != "" {
		return args.CatalogFile
	}
	return filepath.Join(args.GalleryRoot, gallery.AlbumName, "catalog.db")
}

func openCatalog(args *CliArgs) (*gallery.Catalog, error) {
	path := catalogPath(args)
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	return gallery.OpenCatalog(path)
}

func newLocator(args *CliArgs) *geo.Locator {
	var pos *geo.Position
	if args.hasPosition {
		pos = &geo.Position{Latitude: args.Latitude, Longitude: args.Longitude}
	}

	var geocoder geo.ReverseGeocoder
	if args.GeocoderURL != "" {
		geocoder = geo.NewNominatim(args.GeocoderURL, args.UserAgent, &http.Client{Timeout: args.LocationTimeout})
	}

	return geo.NewLocator(geo.NewFixedPosition(pos), geocoder, args.LocationTimeout)
}

func newServices(args *CliArgs) (*services, error) {
	s := &services{}
	s.source, s.live = captureSource(args)

	if args.ModelFile != "" {
		p := classify.NewParameters(args.ModelFile, args.LabelsFile)
		p.ConfigFile = args.ConfigFile
		p.InputSize = args.InputSize
		p.Threshold = float32(args.Threshold)
		p.MaxResults = args.MaxResults

		net, err := classify.Open(p)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load classifier")
		}
		s.classifier = net
	}

	catalog, err := openCatalog(args)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.catalog = catalog
	s.store = gallery.NewStore(args.GalleryRoot, catalog)
	s.locator = newLocator(args)

	return s, nil
}

func (s *services) controllerConfig(args *CliArgs) capture.Config {
	cfg := capture.Config{
		Source:    s.source,
		Converter: frame.NewConverter(),
		Saver:     s.store,
		Locator:   s.locator,
		Cooldown:  args.Cooldown,
	}
	// A nil *classify.Net must not end up in the interface.
	if s.classifier != nil {
		cfg.Classifier = s.classifier
	}
	return cfg
}

func (s *services) Close() error {
	var errs []error
	if s.classifier != nil {
		errs = append(errs, errors.Wrap(s.classifier.Close(), "classifier teardown error"))
	}
	if s.catalog != nil {
		errs = append(errs, errors.Wrap(s.catalog.Close(), "catalog teardown error"))
	}
	return pipeline.FlattenErrors(errs...)
}

func ensureDir(dir string) error {
	return errors.Wrapf(os.MkdirAll(dir, 0o755), "failed to create '%s'", dir)
}
