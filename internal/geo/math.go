// Package geo provides the coordinate transforms applied to observations
// before they are handed to the renderer.
package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// MaxLat is the latitude limit of the web mercator square.
const MaxLat = 85.05112878

// HalfCircumference is half the equator length in EPSG:3857 metres.
const HalfCircumference = 20037508.342789244

// Projection transforms a coordinate pair from source to render space.
// Implementations must be pure.
type Projection func(x, y float64) (float64, float64)

// Projection names accepted by ByName.
const (
	NameIdentity    = "identity"
	NameWebMercator = "web-mercator"
	NameClipSpace   = "clip-space"
)

// Identity returns the pair unchanged.
func Identity(x, y float64) (float64, float64) {
	return x, y
}

// WebMercator converts WGS84 longitude/latitude in degrees to EPSG:3857
// metres. Latitude is clamped to the mercator square.
func WebMercator(lon, lat float64) (float64, float64) {
	p := project.WGS84.ToMercator(orb.Point{lon, clampLat(lat)})
	return p[0], p[1]
}

// ClipSpace converts longitude/latitude to web mercator normalized to the
// [-1, 1] square, the space a point shader writes straight to gl_Position.
func ClipSpace(lon, lat float64) (float64, float64) {
	x, y := WebMercator(lon, lat)
	return x / HalfCircumference, y / HalfCircumference
}

// ByName resolves a projection by configuration name. An empty name is
// the identity.
func ByName(name string) (Projection, error) {
	switch name {
	case "", NameIdentity:
		return Identity, nil
	case NameWebMercator:
		return WebMercator, nil
	case NameClipSpace:
		return ClipSpace, nil
	}

	return nil, fmt.Errorf("unknown projection %q", name)
}

func clampLat(lat float64) float64 {
	return math.Max(-MaxLat, math.Min(MaxLat, lat))
}
