package gallery

import (
	"image"
	"image/color"
	"strings"

	"gocv.io/x/gocv"
)

const (
	overlayMargin     = 20
	overlayPadding    = 20
	overlayLineGap    = 5
	overlayTextRatio  = 0.02 // text height relative to image width
	overlayBackground = 180  // alpha of the box behind the text
	overlayFont       = gocv.FontHersheySimplex
)

const locationPrefix = "Location: "

// OverlayText builds the lines burned into a saved image. Either part may be empty.
func OverlayText(labels []string, location string) []string {
	var lines []string
	if len(labels) > 0 {
		lines = append(lines, "Landmark: "+strings.Join(labels, ", "))
	}
	if location != "" {
		lines = append(lines, locationPrefix+strings.TrimPrefix(location, locationPrefix))
	}
	return lines
}

// OverlayBox is where Overlay puts the text box for an image of the given size.
func OverlayBox(w, h int, lines []string) image.Rectangle {
	if len(lines) == 0 {
		return image.Rectangle{}
	}

	textHeight, scale, thickness := textMetrics(w)

	maxLineWidth := 0
	for _, line := range lines {
		if lw := gocv.GetTextSize(line, overlayFont, scale, thickness).X; lw > maxLineWidth {
			maxLineWidth = lw
		}
	}

	boxW := maxLineWidth + 2*overlayPadding
	boxH := (textHeight+overlayLineGap)*len(lines) + 2*overlayPadding
	y := h - boxH - overlayMargin

	return image.Rect(overlayMargin, y, overlayMargin+boxW, y+boxH).Intersect(image.Rect(0, 0, w, h))
}

// Overlay returns a copy of img with lines written over a translucent box near the bottom-left
// corner. img itself is not modified; the caller owns the result.
func Overlay(img gocv.Mat, lines []string) gocv.Mat {
	out := img.Clone()
	if len(lines) == 0 || img.Empty() {
		return out
	}

	box := OverlayBox(out.Cols(), out.Rows(), lines)
	if !box.Empty() {
		shadeRegion(&out, box)
	}

	textHeight, scale, thickness := textMetrics(out.Cols())
	white, black := rgbaFromColor(color.White), rgbaFromColor(color.Black)

	textX := box.Min.X + overlayPadding
	textY := box.Min.Y + overlayPadding + textHeight
	for _, line := range lines {
		gocv.PutTextWithParams(&out, line, image.Pt(textX+2, textY+2), overlayFont, scale, black, thickness, gocv.LineAA, false)
		gocv.PutTextWithParams(&out, line, image.Pt(textX, textY), overlayFont, scale, white, thickness, gocv.LineAA, false)
		textY += textHeight + overlayLineGap
	}

	return out
}

// shadeRegion blends box towards black in place.
func shadeRegion(m *gocv.Mat, box image.Rectangle) {
	region := m.Region(box)
	defer region.Close()

	shade := gocv.NewMatWithSizeFromScalar(scalarFromColor(color.Black), region.Rows(), region.Cols(), region.Type())
	defer shade.Close()

	alpha := float64(overlayBackground) / 255.0
	gocv.AddWeighted(region, 1-alpha, shade, alpha, 0, &region)
}

// textMetrics scales the Hershey font so capital letters are about 2% of the image width tall.
func textMetrics(width int) (textHeight int, scale float64, thickness int) {
	textHeight = int(float64(width) * overlayTextRatio)
	if textHeight < 8 {
		textHeight = 8
	}

	unit := gocv.GetTextSize("H", overlayFont, 1.0, 1).Y
	if unit <= 0 {
		unit = 22
	}
	scale = float64(textHeight) / float64(unit)

	thickness = textHeight / 12
	if thickness < 1 {
		thickness = 1
	}
	return textHeight, scale, thickness
}
