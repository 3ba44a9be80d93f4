package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/camera"
	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/capture"
	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/frame"
	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/gallery"
	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/geo"
	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/logging"
)

// CliArgs stores the parsed command line arguments.
type CliArgs struct {
	// SourceId identifies the source for the frames for GoCV.
	// It can be a device ID, a file name, a URL, etc.
	// See https://pkg.go.dev/gocv.io/x/gocv#OpenVideoCapture
	SourceId string

	// FromFile opens SourceId as a video file.
	FromFile bool

	// StillImage, when set, replaces the video source with a single image file.
	StillImage string

	LRFlip bool
	UDFlip bool

	// FormatString selects how captures reach the converter: jpeg or yuv.
	FormatString string
	SemiPlanar   bool

	// RotationDegrees is the clockwise correction reported with every capture.
	RotationDegrees int

	ModelFile  string
	ConfigFile string
	LabelsFile string
	InputSize  int
	Threshold  float64
	MaxResults int

	Latitude        float64
	Longitude       float64
	GeocoderURL     string
	UserAgent       string
	LocationTimeout time.Duration

	GalleryRoot string
	CatalogFile string

	Cooldown time.Duration

	// Used by the convert and gallery commands.
	InFile  string
	OutFile string
	Limit   int

	// LogLevelString can be used to override the default log level.
	LogLevelString string

	// Parsed forms of the strings above.
	logLevel    logrus.Level
	format      camera.Format
	rotation    frame.Rotation
	hasPosition bool
}

func (args *CliArgs) Validate() error {
	for _, validate := range []func() error{
		args.ValidateLogLevelString,
		args.ValidateFormat,
		args.ValidateRotation,
		args.ValidateClassifier,
		args.ValidatePosition,
	} {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (args *CliArgs) ValidateLogLevelString() error {
	l, err := logrus.ParseLevel(args.LogLevelString)
	if err != nil {
		return err
	}

	args.logLevel = l
	return nil
}

func (args *CliArgs) ValidateFormat() error {
	f, err := camera.ParseFormat(args.FormatString)
	if err != nil {
		return err
	}

	args.format = f
	return nil
}

func (args *CliArgs) ValidateRotation() error {
	r, err := frame.ParseRotation(args.RotationDegrees)
	if err != nil {
		return err
	}

	args.rotation = r
	return nil
}

func (args *CliArgs) ValidateClassifier() error {
	if args.ModelFile == "" {
		return nil
	}
	if args.LabelsFile == "" {
		return errors.New("a model needs a labels file")
	}
	if args.InputSize <= 0 {
		return errors.Errorf("input size must be positive, got %d", args.InputSize)
	}
	if args.Threshold < 0 || args.Threshold > 1 {
		return errors.Errorf("threshold must be in [0, 1], got %v", args.Threshold)
	}
	if args.MaxResults <= 0 {
		return errors.Errorf("max results must be positive, got %d", args.MaxResults)
	}
	return nil
}

func (args *CliArgs) ValidatePosition() error {
	if !args.hasPosition {
		return nil
	}
	if args.Latitude < -90 || args.Latitude > 90 {
		return errors.Errorf("latitude %v out of range", args.Latitude)
	}
	if args.Longitude < -180 || args.Longitude > 180 {
		return errors.Errorf("longitude %v out of range", args.Longitude)
	}
	return nil
}

func defaultArgs() *CliArgs {
	return &CliArgs{
		SourceId:        "0",
		FormatString:    string(camera.FormatJPEG),
		RotationDegrees: 0,
		InputSize:       321,
		Threshold:       0.5,
		MaxResults:      1,
		GeocoderURL:     geo.DefaultNominatimURL,
		UserAgent:       "landmarkcam",
		LocationTimeout: geo.DefaultTimeout,
		GalleryRoot:     gallery.DefaultRoot(),
		Cooldown:        capture.DefaultCooldown,
		Limit:           20,
		LogLevelString:  "INFO",
		logLevel:        logrus.InfoLevel,
		format:          camera.FormatJPEG,
		rotation:        frame.Rotate0,
	}
}

func sourceFlags(args *CliArgs) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "source",
			Aliases:     []string{"s"},
			Usage:       "source frame stream; e.g., device ID, file name, URL, etc.",
			Value:       args.SourceId,
			Destination: &args.SourceId,
		},
		&cli.BoolFlag{
			Name:        "from-file",
			Usage:       "open the source as a video file",
			Destination: &args.FromFile,
		},
		&cli.StringFlag{
			Name:        "still",
			Usage:       "capture from this image file instead of a video source",
			Destination: &args.StillImage,
		},
		&cli.BoolFlag{
			Name:        "lr-flip",
			Usage:       "mirror frames left to right",
			Destination: &args.LRFlip,
		},
		&cli.BoolFlag{
			Name:        "ud-flip",
			Usage:       "mirror frames upside down",
			Destination: &args.UDFlip,
		},
		&cli.StringFlag{
			Name:        "format",
			Usage:       "capture format: [jpeg|yuv]",
			Value:       args.FormatString,
			Destination: &args.FormatString,
		},
		&cli.BoolFlag{
			Name:        "semi-planar",
			Usage:       "hand YUV chroma over interleaved (pixel stride 2)",
			Destination: &args.SemiPlanar,
		},
		&cli.IntFlag{
			Name:        "rotation",
			Usage:       "clockwise rotation of the sensor in degrees: [0|90|180|270]",
			Value:       args.RotationDegrees,
			Destination: &args.RotationDegrees,
		},
	}
}

func classifierFlags(args *CliArgs) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "classification model; e.g., ./landmarks.onnx",
			Destination: &args.ModelFile,
		},
		&cli.StringFlag{
			Name:        "model-config",
			Usage:       "model configuration file, for frameworks that need one",
			Destination: &args.ConfigFile,
		},
		&cli.StringFlag{
			Name:        "labels",
			Usage:       "label names, one per line in model output order",
			Destination: &args.LabelsFile,
		},
		&cli.IntFlag{
			Name:        "input-size",
			Usage:       "side of the square model input",
			Value:       args.InputSize,
			Destination: &args.InputSize,
		},
		&cli.Float64Flag{
			Name:        "threshold",
			Usage:       "minimum confidence of a reported label",
			Value:       args.Threshold,
			Destination: &args.Threshold,
		},
		&cli.IntFlag{
			Name:        "max-results",
			Usage:       "number of labels to report",
			Value:       args.MaxResults,
			Destination: &args.MaxResults,
		},
	}
}

func locationFlags(args *CliArgs) []cli.Flag {
	return []cli.Flag{
		&cli.Float64Flag{
			Name:        "lat",
			Usage:       "latitude of the device; without it location is unavailable",
			Destination: &args.Latitude,
		},
		&cli.Float64Flag{
			Name:        "lon",
			Usage:       "longitude of the device",
			Destination: &args.Longitude,
		},
		&cli.StringFlag{
			Name:        "geocoder-url",
			Usage:       "Nominatim server for place names; empty to report coordinates only",
			Value:       args.GeocoderURL,
			Destination: &args.GeocoderURL,
		},
		&cli.StringFlag{
			Name:        "user-agent",
			Usage:       "User-Agent sent to the geocoder",
			Value:       args.UserAgent,
			Destination: &args.UserAgent,
		},
		&cli.DurationFlag{
			Name:        "location-timeout",
			Usage:       "how long to wait for a location",
			Value:       args.LocationTimeout,
			Destination: &args.LocationTimeout,
		},
	}
}

func galleryFlags(args *CliArgs) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gallery-root",
			Usage:       "directory holding the " + gallery.AlbumName + " album",
			Value:       args.GalleryRoot,
			Destination: &args.GalleryRoot,
		},
		&cli.StringFlag{
			Name:        "catalog",
			Usage:       "sqlite catalog of saved images (default: <album>/catalog.db)",
			Destination: &args.CatalogFile,
		},
	}
}

func concatFlags(groups ...[]cli.Flag) []cli.Flag {
	var all []cli.Flag
	for _, g := range groups {
		all = append(all, g...)
	}
	return all
}

// validateCommand is the Before hook of every command.
func validateCommand(args *CliArgs) cli.BeforeFunc {
	return func(c *cli.Context) error {
		args.hasPosition = c.IsSet("lat") || c.IsSet("lon")
		return args.Validate()
	}
}

func runCommand(args *CliArgs, run func(*cli.Context, *CliArgs) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		logging.Logger.Infof("Running with arguments: %+v", *args)
		return run(c, args)
	}
}

func newApp(args *CliArgs) *cli.App {
	return &cli.App{
		Name:  "landmarkcam",
		Usage: "Photograph landmarks, recognise them and keep them in a gallery",

		Before: func(c *cli.Context) error {
			err := args.ValidateLogLevelString()
			if err != nil {
				return err
			}

			logging.Init(args.logLevel)
			return nil
		},

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       fmt.Sprintf("log level: [%s]", logging.AllLevels),
				Value:       args.LogLevelString,
				Destination: &args.LogLevelString,
			},
		},

		Commands: []*cli.Command{
			{
				Name:  "gui",
				Usage: "Run GUI application",

				Flags: concatFlags(
					sourceFlags(args),
					classifierFlags(args),
					locationFlags(args),
					galleryFlags(args),
					[]cli.Flag{
						&cli.DurationFlag{
							Name:        "cooldown",
							Usage:       "minimum time between two shutter presses",
							Value:       args.Cooldown,
							Destination: &args.Cooldown,
						},
					},
				),

				Before: validateCommand(args),
				Action: runCommand(args, func(c *cli.Context, args *CliArgs) error {
					return guiMain(c.Context, args)
				}),
			},

			{
				Name:  "snap",
				Usage: "Capture, classify and save one photo without a GUI",

				Flags: concatFlags(
					sourceFlags(args),
					classifierFlags(args),
					locationFlags(args),
					galleryFlags(args),
				),

				Before: validateCommand(args),
				Action: runCommand(args, func(c *cli.Context, args *CliArgs) error {
					return snapMain(c.Context, args, os.Stdout)
				}),
			},

			{
				Name:  "convert",
				Usage: "Convert an image file into a square, upright JPEG",

				Flags: concatFlags(
					[]cli.Flag{
						&cli.StringFlag{
							Name:        "in",
							Aliases:     []string{"i"},
							Usage:       "input image",
							Required:    true,
							Destination: &args.InFile,
						},
						&cli.StringFlag{
							Name:        "out",
							Aliases:     []string{"o"},
							Usage:       "output JPEG",
							Required:    true,
							Destination: &args.OutFile,
						},
					},
					sourceFlags(args),
				),

				Before: validateCommand(args),
				Action: runCommand(args, func(c *cli.Context, args *CliArgs) error {
					return convertMain(c.Context, args)
				}),
			},

			{
				Name:  "gallery",
				Usage: "List recently saved photos",

				Flags: concatFlags(
					galleryFlags(args),
					[]cli.Flag{
						&cli.IntFlag{
							Name:        "limit",
							Aliases:     []string{"n"},
							Usage:       "number of photos to list",
							Value:       args.Limit,
							Destination: &args.Limit,
						},
					},
				),

				Before: validateCommand(args),
				Action: runCommand(args, func(c *cli.Context, args *CliArgs) error {
					return galleryMain(c.Context, args, os.Stdout)
				}),
			},
		},
	}
}

func main() {
	err := newApp(defaultArgs()).Run(os.Args)
	if err != nil {
		fmt.Println("Application failed:", err.Error())
		os.Exit(1)
	}
}
