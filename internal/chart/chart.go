// Package chart renders concentration curves as PNG images and terminal sparklines
package chart

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/mrcode/bioclear/internal/metrics"
	"github.com/mrcode/bioclear/internal/models"
)

// Plot margins in pixels
const (
	marginLeft   = 80
	marginRight  = 30
	marginTop    = 50
	marginBottom = 60
)

// Options controls chart appearance
type Options struct {
	Width          int
	Height         int
	Title          string
	ThresholdColor string   // Hex color of the detection-limit line
	Palette        []string // Hex colors cycled across patients
	ShowLegend     bool
}

// OptionsFromSettings builds chart options from user settings
func OptionsFromSettings(s *models.Settings) Options {
	c := s.Clone()
	return Options{
		Width:          c.ChartWidth,
		Height:         c.ChartHeight,
		Title:          "Drug Clearance Estimation",
		ThresholdColor: c.ChartColorThreshold,
		Palette:        c.ChartPalette,
		ShowLegend:     c.ChartShowLegend,
	}
}

// plot maps data coordinates to pixels
type plot struct {
	left, top, right, bottom float64
	xMax, yMax               float64
}

func (p plot) x(hours float64) float64 {
	return p.left + hours/p.xMax*(p.right-p.left)
}

func (p plot) y(conc float64) float64 {
	return p.bottom - conc/p.yMax*(p.bottom-p.top)
}

func newPlot(curves []models.PatientCurve, threshold float64, width, height int) plot {
	p := plot{
		left:   marginLeft,
		top:    marginTop,
		right:  float64(width - marginRight),
		bottom: float64(height - marginBottom),
		xMax:   1,
		yMax:   threshold,
	}
	for _, c := range curves {
		p.xMax = math.Max(p.xMax, c.Curve.HorizonHours)
		p.yMax = math.Max(p.yMax, c.Curve.Dose)
	}
	if !(p.yMax > 0) {
		p.yMax = 1
	}
	p.yMax *= 1.05 // Headroom above the highest dose
	return p
}

// Render draws the study chart: one line per patient plus the dashed
// detection limit.
func Render(curves []models.PatientCurve, threshold float64, opts Options) (image.Image, error) {
	if opts.Width < marginLeft+marginRight+50 || opts.Height < marginTop+marginBottom+50 {
		return nil, fmt.Errorf("chart size %dx%d too small", opts.Width, opts.Height)
	}

	dc := gg.NewContext(opts.Width, opts.Height)
	dc.SetColor(color.White)
	dc.Clear()

	p := newPlot(curves, threshold, opts.Width, opts.Height)

	drawAxes(dc, p)

	if opts.Title != "" {
		dc.SetFontFace(fontFace(18))
		dc.SetColor(color.Black)
		dc.DrawStringAnchored(opts.Title, float64(opts.Width)/2, marginTop/2, 0.5, 0.5)
	}

	// Patient curves
	dc.SetLineWidth(2)
	for i, c := range curves {
		if len(c.Curve.Points) == 0 {
			continue
		}
		dc.SetColor(paletteColor(opts.Palette, i))
		for j, pt := range c.Curve.Points {
			if j == 0 {
				dc.MoveTo(p.x(pt.TimeHours), p.y(pt.Concentration))
				continue
			}
			dc.LineTo(p.x(pt.TimeHours), p.y(pt.Concentration))
		}
		dc.Stroke()
	}

	// Detection limit
	if threshold > 0 {
		thresholdColor, err := ParseHexColor(opts.ThresholdColor)
		if err != nil {
			thresholdColor = color.RGBA{R: 0xef, G: 0x44, B: 0x44, A: 0xff}
		}
		ty := p.y(threshold)
		dc.SetColor(thresholdColor)
		dc.SetLineWidth(2)
		dc.SetDash(8, 6)
		dc.DrawLine(p.left, ty, p.right, ty)
		dc.Stroke()
		dc.SetDash()

		dc.SetFontFace(fontFace(12))
		dc.DrawStringAnchored(fmt.Sprintf("Detection limit (%g ng/mL)", threshold), p.right-4, ty-6, 1, 0)
	}

	if len(curves) == 0 {
		dc.SetFontFace(fontFace(14))
		dc.SetColor(color.Gray{Y: 0x80})
		dc.DrawStringAnchored("No patients in study", (p.left+p.right)/2, (p.top+p.bottom)/2, 0.5, 0.5)
	}

	if opts.ShowLegend && len(curves) > 0 {
		drawLegend(dc, p, curves, opts.Palette)
	}

	return dc.Image(), nil
}

// RenderPNG renders the chart and encodes it as PNG
func RenderPNG(w io.Writer, curves []models.PatientCurve, threshold float64, opts Options) error {
	img, err := Render(curves, threshold, opts)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}
	metrics.ChartsRendered.Inc()
	return nil
}

func drawAxes(dc *gg.Context, p plot) {
	dc.SetFontFace(fontFace(12))

	xStep := niceStep(p.xMax, 10)
	yStep := niceStep(p.yMax, 8)

	// Grid
	dc.SetColor(color.Gray{Y: 0xe5})
	dc.SetLineWidth(1)
	for v := xStep; v <= p.xMax+1e-9; v += xStep {
		dc.DrawLine(p.x(v), p.top, p.x(v), p.bottom)
	}
	for v := yStep; v <= p.yMax+1e-9; v += yStep {
		dc.DrawLine(p.left, p.y(v), p.right, p.y(v))
	}
	dc.Stroke()

	// Axes
	dc.SetColor(color.Black)
	dc.SetLineWidth(1.5)
	dc.DrawLine(p.left, p.bottom, p.right, p.bottom)
	dc.DrawLine(p.left, p.top, p.left, p.bottom)
	dc.Stroke()

	// Tick labels
	for v := 0.0; v <= p.xMax+1e-9; v += xStep {
		dc.DrawStringAnchored(formatTick(v), p.x(v), p.bottom+14, 0.5, 0.5)
	}
	for v := 0.0; v <= p.yMax+1e-9; v += yStep {
		dc.DrawStringAnchored(formatTick(v), p.left-8, p.y(v), 1, 0.5)
	}

	// Axis labels
	dc.SetFontFace(fontFace(14))
	dc.DrawStringAnchored("Hours", (p.left+p.right)/2, p.bottom+40, 0.5, 0.5)

	cx, cy := float64(22), (p.top+p.bottom)/2
	dc.Push()
	dc.RotateAbout(gg.Radians(-90), cx, cy)
	dc.DrawStringAnchored("Concentration (ng/mL)", cx, cy, 0.5, 0.5)
	dc.Pop()
}

func drawLegend(dc *gg.Context, p plot, curves []models.PatientCurve, palette []string) {
	const (
		lineHeight = 18.0
		swatch     = 20.0
		padding    = 8.0
	)

	dc.SetFontFace(fontFace(12))

	var maxWidth float64
	for _, c := range curves {
		w, _ := dc.MeasureString(c.Label)
		maxWidth = math.Max(maxWidth, w)
	}

	boxW := padding*3 + swatch + maxWidth
	boxH := padding*2 + lineHeight*float64(len(curves))
	x0 := p.right - boxW - 10
	y0 := p.top + 10

	dc.SetRGBA(1, 1, 1, 0.85)
	dc.DrawRectangle(x0, y0, boxW, boxH)
	dc.Fill()
	dc.SetColor(color.Gray{Y: 0xb0})
	dc.SetLineWidth(1)
	dc.DrawRectangle(x0, y0, boxW, boxH)
	dc.Stroke()

	for i, c := range curves {
		y := y0 + padding + lineHeight*float64(i) + lineHeight/2
		dc.SetColor(paletteColor(palette, i))
		dc.SetLineWidth(2)
		dc.DrawLine(x0+padding, y, x0+padding+swatch, y)
		dc.Stroke()

		dc.SetColor(color.Black)
		dc.DrawStringAnchored(c.Label, x0+padding*2+swatch, y, 0, 0.5)
	}
}

func paletteColor(palette []string, i int) color.Color {
	if len(palette) == 0 {
		return color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	}
	c, err := ParseHexColor(palette[i%len(palette)])
	if err != nil {
		return color.Black
	}
	return c
}

// niceStep returns a 1/2/5 x 10^n tick spacing giving at most about maxTicks ticks
func niceStep(span float64, maxTicks int) float64 {
	if !(span > 0) || maxTicks < 1 {
		return 1
	}
	raw := span / float64(maxTicks)
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	norm := raw / mag

	switch {
	case norm <= 1:
		return mag
	case norm <= 2:
		return 2 * mag
	case norm <= 5:
		return 5 * mag
	default:
		return 10 * mag
	}
}

func formatTick(v float64) string {
	if math.Abs(v-math.Round(v)) < 1e-9 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%g", math.Round(v*1000)/1000)
}

var (
	fontOnce sync.Once
	fontTTF  *truetype.Font
)

// fontFace returns the embedded Go Regular face at the given size
func fontFace(size float64) font.Face {
	fontOnce.Do(func() {
		f, err := truetype.Parse(goregular.TTF)
		if err == nil {
			fontTTF = f
		}
	})
	if fontTTF == nil {
		return basicfont.Face7x13
	}
	return truetype.NewFace(fontTTF, &truetype.Options{Size: size})
}

// ParseHexColor parses "#rrggbb" or "#rgb"
func ParseHexColor(hex string) (color.RGBA, error) {
	c := color.RGBA{A: 0xff}
	var err error
	switch len(hex) {
	case 7:
		if hex[0] != '#' {
			return c, fmt.Errorf("invalid hex color %q", hex)
		}
		_, err = fmt.Sscanf(hex, "#%02x%02x%02x", &c.R, &c.G, &c.B)
	case 4:
		if hex[0] != '#' {
			return c, fmt.Errorf("invalid hex color %q", hex)
		}
		_, err = fmt.Sscanf(hex, "#%1x%1x%1x", &c.R, &c.G, &c.B)
		c.R *= 17
		c.G *= 17
		c.B *= 17
	default:
		return c, fmt.Errorf("invalid hex color %q", hex)
	}
	if err != nil {
		return c, fmt.Errorf("invalid hex color %q: %w", hex, err)
	}
	return c, nil
}
