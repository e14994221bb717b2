package imagegen

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var (
	fontLabel font.Face
	fontTitle font.Face
	fontLarge font.Face
	fontOnce  sync.Once
	fontErr   error

	// faceMu guards the shared faces, which are not safe for concurrent use.
	faceMu sync.Mutex
)

func loadFonts() {
	fontOnce.Do(func() {
		fontLabel, fontErr = newFace(goregular.TTF, 14)
		if fontErr != nil {
			fontErr = fmt.Errorf("go regular: %w", fontErr)
			return
		}
		fontTitle, fontErr = newFace(gobold.TTF, 18)
		if fontErr != nil {
			fontErr = fmt.Errorf("go bold: %w", fontErr)
			return
		}
		fontLarge, fontErr = newFace(goregular.TTF, 120)
		if fontErr != nil {
			fontErr = fmt.Errorf("go regular large: %w", fontErr)
		}
	})
}

func newFace(ttf []byte, size float64) (font.Face, error) {
	f, err := opentype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// ChartWidth and ChartHeight are the dimensions of a rendered chart.
const (
	ChartWidth  = 720
	ChartHeight = 320
)

// ValuePadding is added above the highest and below the lowest value so the
// line never touches the plot edges.
const ValuePadding = 5.0

const (
	marginLeft   = 64
	marginRight  = 32
	marginTop    = 48
	marginBottom = 44
)

var (
	lineTop    = color.RGBA{250, 0, 0, 255}
	lineBottom = color.RGBA{136, 255, 0, 255}
	gridColor  = color.RGBA{200, 200, 200, 40}
	textColor  = color.RGBA{220, 220, 220, 255}
)

var ErrNoPoints = errors.New("chart: no points")

// ChartData is one series of labelled values, e.g. hourly temperatures.
type ChartData struct {
	Title  string
	Unit   string // appended to axis labels, e.g. "°C"
	Labels []string
	Values []float64
}

// plot maps values to pixel coordinates inside the plot area.
type plot struct {
	min, max float64
	n        int
}

func newPlot(values []float64) plot {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return plot{min: lo - ValuePadding, max: hi + ValuePadding, n: len(values)}
}

func (p plot) x(i int) float64 {
	w := float64(ChartWidth - marginLeft - marginRight)
	if p.n == 1 {
		return marginLeft + w/2
	}
	return marginLeft + w*float64(i)/float64(p.n-1)
}

func (p plot) y(v float64) float64 {
	h := float64(ChartHeight - marginTop - marginBottom)
	return marginTop + h*(p.max-v)/(p.max-p.min)
}

// RenderChart draws data as a PNG line chart. The line shades from red at the
// top of the plot to green at the bottom.
func RenderChart(data ChartData) ([]byte, error) {
	if len(data.Values) == 0 {
		return nil, ErrNoPoints
	}
	if len(data.Labels) != len(data.Values) {
		return nil, fmt.Errorf("chart: %d labels for %d values", len(data.Labels), len(data.Values))
	}
	for i, v := range data.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("chart: value %d is not finite", i)
		}
	}

	loadFonts()
	if fontErr != nil {
		return nil, fmt.Errorf("load fonts: %w", fontErr)
	}

	img := image.NewRGBA(image.Rect(0, 0, ChartWidth, ChartHeight))
	drawBackground(img)

	p := newPlot(data.Values)
	drawGrid(img, p, data.Unit)

	for i := 1; i < len(data.Values); i++ {
		drawSegment(img,
			p.x(i-1), p.y(data.Values[i-1]),
			p.x(i), p.y(data.Values[i]))
	}
	for i, v := range data.Values {
		drawPoint(img, p.x(i), p.y(v))
		drawTextCentered(img, data.Labels[i], int(p.x(i)), ChartHeight-marginBottom/2+5, textColor, fontLabel)
	}

	if data.Title != "" {
		drawText(img, data.Title, marginLeft, marginTop-20, textColor, fontTitle)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode chart: %w", err)
	}
	return buf.Bytes(), nil
}

func drawBackground(img *image.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		progress := float64(y) / float64(b.Dy())
		c := color.RGBA{uint8(20 + progress*10), uint8(20 + progress*15), uint8(40 + progress*20), 255}
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

// drawGrid draws five horizontal grid lines with value labels.
func drawGrid(img *image.RGBA, p plot, unit string) {
	const lines = 5
	for i := 0; i < lines; i++ {
		v := p.min + (p.max-p.min)*float64(i)/float64(lines-1)
		y := int(math.Round(p.y(v)))
		for x := marginLeft; x < ChartWidth-marginRight; x++ {
			blend(img, x, y, gridColor)
		}
		drawText(img, fmt.Sprintf("%.0f%s", v, unit), 8, y+5, textColor, fontLabel)
	}
}

// lineColor interpolates between lineTop and lineBottom by vertical position.
func lineColor(y float64) color.RGBA {
	t := (y - marginTop) / float64(ChartHeight-marginTop-marginBottom)
	t = math.Max(0, math.Min(1, t))
	mix := func(a, b uint8) uint8 {
		return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
	}
	return color.RGBA{mix(lineTop.R, lineBottom.R), mix(lineTop.G, lineBottom.G), mix(lineTop.B, lineBottom.B), 255}
}

func drawSegment(img *image.RGBA, x0, y0, x1, y1 float64) {
	steps := int(math.Ceil(math.Max(math.Abs(x1-x0), math.Abs(y1-y0)) * 2))
	for s := 0; s <= steps; s++ {
		t := float64(s) / float64(max(steps, 1))
		x := x0 + (x1-x0)*t
		y := y0 + (y1-y0)*t
		fillDisc(img, x, y, 1.5, lineColor(y))
	}
}

func drawPoint(img *image.RGBA, x, y float64) {
	fillDisc(img, x, y, 4.5, color.RGBA{0, 0, 0, 255})
	fillDisc(img, x, y, 3, color.RGBA{255, 255, 255, 255})
}

func fillDisc(img *image.RGBA, cx, cy, r float64, c color.RGBA) {
	for y := int(cy - r); y <= int(cy+r)+1; y++ {
		for x := int(cx - r); x <= int(cx+r)+1; x++ {
			dx, dy := float64(x)+0.5-cx, float64(y)+0.5-cy
			if dx*dx+dy*dy <= r*r && image.Pt(x, y).In(img.Bounds()) {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

// blend draws c over the existing pixel using c's alpha.
func blend(img *image.RGBA, x, y int, c color.RGBA) {
	if !image.Pt(x, y).In(img.Bounds()) {
		return
	}
	a := float64(c.A) / 255
	orig := img.RGBAAt(x, y)
	orig.R = uint8(float64(orig.R)*(1-a) + float64(c.R)*a)
	orig.G = uint8(float64(orig.G)*(1-a) + float64(c.G)*a)
	orig.B = uint8(float64(orig.B)*(1-a) + float64(c.B)*a)
	img.SetRGBA(x, y, orig)
}

func drawText(img *image.RGBA, text string, x, y int, col color.Color, face font.Face) {
	faceMu.Lock()
	defer faceMu.Unlock()
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

func drawTextCentered(img *image.RGBA, text string, cx, y int, col color.Color, face font.Face) {
	faceMu.Lock()
	w := font.MeasureString(face, text).Round()
	faceMu.Unlock()
	drawText(img, text, cx-w/2, y, col, face)
}
