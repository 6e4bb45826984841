package processor

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"
	"strings"

	"github.com/woozymasta/windlayer/internal/geo"
	"github.com/woozymasta/windlayer/internal/observation"
	"github.com/woozymasta/windlayer/internal/render"

	"github.com/chai2010/webp"
	"golang.org/x/image/colornames"
	xdraw "golang.org/x/image/draw"
)

// previewSupersample is the factor the canvas is drawn at before scaling down.
const previewSupersample = 2

// ErrEmptyPreview is returned when a pass has no observations to draw.
var ErrEmptyPreview = errors.New("nothing to preview")

// PreviewOptions configures the quicklook image.
type PreviewOptions struct {
	Width, Height int
	PointSize     int
}

// RenderPreview draws every feature of every layer, in layer order, as a
// square at its web mercator position. Colors come from a "color" attribute
// when the layer has one and from the symbol color otherwise.
func RenderPreview(pass *Pass, opts PreviewOptions) (image.Image, error) {
	if len(pass.Batch.Observations) == 0 {
		return nil, ErrEmptyPreview
	}
	if opts.Width <= 0 {
		opts.Width = 512
	}
	if opts.Height <= 0 {
		opts.Height = 512
	}
	if opts.PointSize <= 0 {
		opts.PointSize = 4
	}

	w, h := opts.Width*previewSupersample, opts.Height*previewSupersample
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))

	b := pass.Bounds()
	minX, maxY := geo.WebMercator(b.Min[0], b.Max[1])
	maxX, minY := geo.WebMercator(b.Max[0], b.Min[1])

	// pad so edge points stay inside, and give single points some extent
	padX := math.Max((maxX-minX)*0.1, 1000)
	padY := math.Max((maxY-minY)*0.1, 1000)
	minX, maxX, minY, maxY = minX-padX, maxX+padX, minY-padY, maxY+padY

	positions := make(map[int]observation.Position, len(pass.Batch.Observations))
	for _, o := range pass.Batch.Observations {
		positions[o.Index] = o.Position
	}

	half := opts.PointSize * previewSupersample / 2
	for _, out := range pass.Layers {
		for _, f := range out.Features {
			pos, ok := positions[f.Index]
			if !ok {
				continue
			}
			mx, my := geo.WebMercator(pos.X, pos.Y)
			px := int((mx - minX) / (maxX - minX) * float64(w))
			py := int((maxY - my) / (maxY - minY) * float64(h))

			c := featureColor(f.Attributes["color"], out.Layer.Symbol)
			rect := image.Rect(px-half, py-half, px+half+1, py+half+1)
			draw.Draw(canvas, rect, &image.Uniform{C: c}, image.Point{}, draw.Over)
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), canvas, canvas.Bounds(), draw.Over, nil)

	return dst, nil
}

// EncodePreview writes img as lossy WebP.
func EncodePreview(w io.Writer, img image.Image) error {
	return webp.Encode(w, img, &webp.Options{Lossless: false, Quality: 85})
}

func featureColor(v []float64, symbol *render.Symbol) color.Color {
	if len(v) == 3 || len(v) == 4 {
		alpha := 1.0
		if len(v) == 4 {
			alpha = v[3]
		}
		return color.NRGBA64{
			R: unit16(v[0]),
			G: unit16(v[1]),
			B: unit16(v[2]),
			A: unit16(alpha),
		}
	}
	if symbol != nil {
		if c, ok := colornames.Map[strings.ToLower(symbol.Color)]; ok {
			return c
		}
	}
	return colornames.Black
}

func unit16(x float64) uint16 {
	return uint16(math.Round(math.Max(0, math.Min(1, x)) * 0xffff))
}
