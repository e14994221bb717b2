package imagegen

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
)

// CardData is the content of a forecast preview card.
type CardData struct {
	Temperature  float64
	Location     string
	Description  string
	RainTomorrow bool
}

// OGWidth and OGHeight are the standard Open Graph image dimensions.
const (
	OGWidth  = 1200
	OGHeight = 630
)

// RenderCard draws an Open Graph preview card for a forecast.
func RenderCard(data CardData) ([]byte, error) {
	loadFonts()
	if fontErr != nil {
		return nil, fmt.Errorf("load fonts: %w", fontErr)
	}

	img := image.NewRGBA(image.Rect(0, 0, OGWidth, OGHeight))
	drawBackground(img)
	drawGradientOverlay(img)

	white := color.RGBA{255, 255, 255, 255}
	lightGray := color.RGBA{200, 200, 200, 255}

	drawText(img, fmt.Sprintf("%.0f°", data.Temperature), 60, OGHeight-260, white, fontLarge)
	if data.Description != "" {
		drawText(img, data.Description, 60, OGHeight-190, lightGray, fontTitle)
	}

	verdict := "No rain expected tomorrow"
	verdictColor := lineBottom
	if data.RainTomorrow {
		verdict = "Rain expected tomorrow"
		verdictColor = lineTop
	}
	drawText(img, verdict, 60, OGHeight-130, verdictColor, fontTitle)

	if data.Location != "" {
		drawText(img, data.Location, 60, OGHeight-50, lightGray, fontLabel)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode card: %w", err)
	}
	return buf.Bytes(), nil
}

// drawGradientOverlay darkens the bottom of the image so text stays readable.
func drawGradientOverlay(img *image.RGBA) {
	bounds := img.Bounds()
	gradientHeight := min(300, bounds.Dy())

	for y := bounds.Max.Y - gradientHeight; y < bounds.Max.Y; y++ {
		progress := float64(y-(bounds.Max.Y-gradientHeight)) / float64(gradientHeight)
		alpha := uint8(progress * progress * 0.85 * 255)
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			blend(img, x, y, color.RGBA{0, 0, 0, alpha})
		}
	}
}
