package gallery

import (
	"image/color"

	"gocv.io/x/gocv"
)

// scalarFromColor converts to the BGRA order OpenCV uses.
func scalarFromColor(c color.Color) gocv.Scalar {
	rgba := color.RGBAModel.Convert(c).(color.RGBA)
	return gocv.Scalar{
		Val1: float64(rgba.B),
		Val2: float64(rgba.G),
		Val3: float64(rgba.R),
		Val4: float64(rgba.A),
	}
}

func rgbaFromColor(c color.Color) color.RGBA {
	return color.RGBAModel.Convert(c).(color.RGBA)
}
