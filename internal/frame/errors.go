package frame

import "github.com/pkg/errors"

// Errors returned by Converter.Convert, usually wrapped with details. Match them with errors.Is.
var (
	DecodeError            = errors.New("image decode failed")
	UnsupportedFormatError = errors.New("unsupported pixel format")
	InvalidRotation        = errors.New("rotation must be 0, 90, 180 or 270 degrees")
	FrameReleased          = errors.New("frame already released")
)
