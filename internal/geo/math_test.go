package geo

import (
	"math"
	"testing"
)

func near(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestWebMercator(t *testing.T) {
	tests := []struct {
		name     string
		lon, lat float64
		x, y     float64
	}{
		{"origin", 0, 0, 0, 0},
		{"antimeridian", 180, 0, HalfCircumference, 0},
		{"clamped north", 0, 90, 0, HalfCircumference},
		{"clamped south", 0, -90, 0, -HalfCircumference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := WebMercator(tt.lon, tt.lat)
			if !near(x, tt.x, 1) || !near(y, tt.y, 1) {
				t.Errorf("WebMercator(%v, %v) = (%v, %v), want (%v, %v)", tt.lon, tt.lat, x, y, tt.x, tt.y)
			}
		})
	}
}

func TestClipSpace(t *testing.T) {
	x, y := ClipSpace(-180, MaxLat)
	if !near(x, -1, 1e-9) || !near(y, 1, 1e-6) {
		t.Errorf("ClipSpace corner = (%v, %v), want (-1, 1)", x, y)
	}

	x, y = ClipSpace(-8.711, 30.35)
	if x >= 0 || y <= 0 || x < -1 || y > 1 {
		t.Errorf("ClipSpace(-8.711, 30.35) = (%v, %v) out of quadrant", x, y)
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"", NameIdentity, NameWebMercator, NameClipSpace} {
		p, err := ByName(name)
		if err != nil || p == nil {
			t.Errorf("ByName(%q) = %v", name, err)
		}
	}

	if _, err := ByName("lambert"); err == nil {
		t.Error("expected error for unknown projection")
	}

	p, _ := ByName("")
	if x, y := p(3, 4); x != 3 || y != 4 {
		t.Errorf("identity = (%v, %v)", x, y)
	}
}
