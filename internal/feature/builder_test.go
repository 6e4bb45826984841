package feature

import (
	"errors"
	"math"
	"math/rand/v2"
	"reflect"
	"testing"

	"github.com/woozymasta/windlayer/internal/geo"
	"github.com/woozymasta/windlayer/internal/observation"

	"github.com/paulmach/orb"
)

func obs(index int, x, y float64, speed, deg *float64) observation.Observation {
	return observation.Observation{
		Index:    index,
		Position: observation.Position{X: x, Y: y},
		Wind:     observation.Wind{Speed: speed, HeadingDeg: deg},
	}
}

var f = observation.Float

func sampleObservations() []observation.Observation {
	return []observation.Observation{
		obs(0, -8.711, 30.35, f(59.58), f(8)),
		obs(1, 4, -10.237, f(42.4), f(50)),
		obs(2, 24.236, 20.263, f(38.17), f(316)),
		obs(3, 4.531, 40.392, f(52.51), f(91)),
		obs(4, -6.499, 5, f(55.52), f(192)),
	}
}

func TestBuildEndToEnd(t *testing.T) {
	in := []observation.Observation{obs(0, -8.711, 30.35, f(59.58), f(8))}
	spec := AttributeSpec{{Name: "speed", Derive: DeriveSpeed, Arity: 1}}

	res, err := Build(in, spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Feature{{
		Index:      0,
		Position:   [2]float64{-8.711, 30.35},
		LonLat:     [2]float64{-8.711, 30.35},
		Attributes: map[string][]float64{"speed": {59.58}},
	}}
	if !reflect.DeepEqual(res.Features, want) {
		t.Errorf("features = %+v, want %+v", res.Features, want)
	}
	if len(res.Failures) != 0 {
		t.Errorf("failures = %v, want none", res.Failures)
	}
}

func TestBuildMissingField(t *testing.T) {
	in := []observation.Observation{
		obs(0, 1, 2, f(5), nil),
		obs(1, 3, 4, f(6), f(90)),
	}
	spec := AttributeSpec{{Name: "heading", Derive: DeriveHeading, Arity: 1}}

	res, err := Build(in, spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Features) != 1 || res.Features[0].Index != 1 {
		t.Fatalf("features = %+v, want only index 1", res.Features)
	}
	if len(res.Failures) != 1 {
		t.Fatalf("failures = %v, want one", res.Failures)
	}

	fail := res.Failures[0]
	if fail.Index != 0 || fail.Field != "wind.heading_deg" {
		t.Errorf("failure = %+v", fail)
	}
	if !errors.Is(&fail, ErrMissingField) {
		t.Errorf("failure %v is not ErrMissingField", fail.Err)
	}
}

func TestBuildArityMismatch(t *testing.T) {
	spec := AttributeSpec{{Name: "color", Derive: DeriveRandomColor, Arity: 3}}

	res, err := Build(sampleObservations()[:1], spec, WithSeed(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Features) != 0 {
		t.Errorf("features = %+v, want none", res.Features)
	}
	if len(res.Failures) != 1 {
		t.Fatalf("failures = %v, want one", res.Failures)
	}
	if fail := res.Failures[0]; !errors.Is(&fail, ErrArityMismatch) || fail.Field != "color" {
		t.Errorf("failure = %v, want arity mismatch on color", fail.Error())
	}
}

func TestBuildCounts(t *testing.T) {
	in := sampleObservations()
	in = append(in, obs(5, 0, 0, nil, f(1)), obs(6, 0, 0, f(1), nil))

	spec := AttributeSpec{
		{Name: "speed", Derive: DeriveSpeed, Arity: 1},
		{Name: "wind", Derive: DeriveWindVector, Arity: 2},
	}

	res, err := Build(in, spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Features)+len(res.Failures) != len(in) {
		t.Errorf("features %d + failures %d != %d", len(res.Features), len(res.Failures), len(in))
	}
	if len(res.Features) != 5 {
		t.Errorf("got %d features, want 5", len(res.Features))
	}
	for i, feat := range res.Features {
		if feat.Index != i {
			t.Errorf("feature %d has index %d, order not preserved", i, feat.Index)
		}
	}
}

func TestBuildDeterministic(t *testing.T) {
	spec := AttributeSpec{
		{Name: "coords", Derive: DeriveCoords, Arity: 2},
		{Name: "color", Derive: DeriveRandomColor, Arity: 4, Value: []float64{0.5}},
	}

	a, err := Build(sampleObservations(), spec, WithProjection(geo.ClipSpace), WithSeed(42))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Build(sampleObservations(), spec, WithProjection(geo.ClipSpace), WithRand(rand.New(rand.NewPCG(42, 42))))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(a, b) {
		t.Error("same seed produced different output")
	}

	c, _ := Build(sampleObservations(), spec, WithProjection(geo.ClipSpace), WithSeed(43))
	if reflect.DeepEqual(a, c) {
		t.Error("different seeds produced identical colors")
	}

	for _, feat := range a.Features {
		if alpha := feat.Attributes["color"][3]; alpha != 0.5 {
			t.Errorf("alpha = %v, want 0.5", alpha)
		}
	}
}

func TestBuildRequiresRandSource(t *testing.T) {
	spec := AttributeSpec{{Name: "color", Derive: DeriveRandomColor, Arity: 4}}

	_, err := Build(sampleObservations(), spec)
	if !errors.Is(err, ErrNoRandSource) {
		t.Fatalf("error = %v, want ErrNoRandSource", err)
	}
}

func TestBuildProjection(t *testing.T) {
	spec := AttributeSpec{{Name: "coords", Derive: DeriveCoords, Arity: 2}}

	res, err := Build(sampleObservations(), spec, WithProjection(geo.WebMercator))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, feat := range res.Features {
		o := sampleObservations()[i]
		x, y := geo.WebMercator(o.Position.X, o.Position.Y)
		if feat.Position != [2]float64{x, y} {
			t.Errorf("feature %d position = %v, want (%v, %v)", i, feat.Position, x, y)
		}
		if got := feat.Attributes["coords"]; got[0] != x || got[1] != y {
			t.Errorf("feature %d coords = %v", i, got)
		}
	}
}

func TestDerivations(t *testing.T) {
	o := obs(0, 0.25, 0, f(30), f(90))

	tests := []struct {
		def  AttributeDef
		want []float64
	}{
		{AttributeDef{Name: "s", Derive: DeriveSpeed, Arity: 1}, []float64{30}},
		{AttributeDef{Name: "h", Derive: DeriveHeading, Arity: 1}, []float64{90}},
		{AttributeDef{Name: "r", Derive: DeriveRotation, Arity: 1}, []float64{math.Pi / 2}},
		{AttributeDef{Name: "w", Derive: DeriveWindVector, Arity: 2}, []float64{-30, 0}},
		{AttributeDef{Name: "c", Derive: DeriveConstant, Arity: 4, Value: []float64{1, 0, 0, 0.5}}, []float64{1, 0, 0, 0.5}},
		{AttributeDef{Name: "g", Derive: DeriveHemisphereColor, Arity: 4}, []float64{0.75, 0.75, 0.75, 1}},
		{AttributeDef{Name: "sc", Derive: DeriveSpeedColor, Arity: 4}, []float64{0.5, 0, 0.5, 1}},
		{AttributeDef{Name: "sc2", Derive: DeriveSpeedColor, Arity: 4, Value: []float64{20}}, []float64{1, 0, 0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.def.Derive, func(t *testing.T) {
			res, err := Build([]observation.Observation{o}, AttributeSpec{tt.def})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(res.Features) != 1 {
				t.Fatalf("failures = %v", res.Failures)
			}
			got := res.Features[0].Attributes[tt.def.Name]
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if math.Abs(got[i]-tt.want[i]) > 1e-9 {
					t.Errorf("got %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestHemisphereColor(t *testing.T) {
	spec := AttributeSpec{{Name: "color", Derive: DeriveHemisphereColor, Arity: 4}}
	in := []observation.Observation{obs(0, 0.75, 0, nil, nil), obs(1, -0.1, 0, nil, nil)}

	res, err := Build(in, spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := res.Features[0].Attributes["color"]; got[0] != 1 || got[2] != 0 {
		t.Errorf("right of 0.5 = %v, want red", got)
	}
	if got := res.Features[1].Attributes["color"]; got[0] != 0 || got[2] != 1 {
		t.Errorf("left of 0 = %v, want blue", got)
	}
}

func TestWithDerivation(t *testing.T) {
	double := Derivation{Fn: func(in Input) ([]float64, error) {
		return []float64{in.Position[0] * 2}, nil
	}}
	spec := AttributeSpec{{Name: "dx", Derive: "double_x", Arity: 1}}

	if _, err := Build(sampleObservations(), spec); !errors.Is(err, ErrInvalidSpec) {
		t.Fatalf("error = %v, want ErrInvalidSpec", err)
	}

	res, err := Build(sampleObservations(), spec, WithDerivation("double_x", double))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := res.Features[1].Attributes["dx"][0]; got != 8 {
		t.Errorf("dx = %v, want 8", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		spec AttributeSpec
		ok   bool
	}{
		{"empty", AttributeSpec{}, true},
		{"valid", AttributeSpec{{Name: "speed", Derive: DeriveSpeed, Arity: 1}}, true},
		{"no name", AttributeSpec{{Derive: DeriveSpeed, Arity: 1}}, false},
		{"reserved name", AttributeSpec{{Name: "index", Derive: DeriveSpeed, Arity: 1}}, false},
		{"duplicate", AttributeSpec{{Name: "a", Derive: DeriveSpeed, Arity: 1}, {Name: "a", Derive: DeriveHeading, Arity: 1}}, false},
		{"duplicate input", AttributeSpec{{Name: "a", Input: "a_x", Derive: DeriveSpeed, Arity: 1}, {Name: "b", Input: "a_x", Derive: DeriveHeading, Arity: 1}}, false},
		{"arity zero", AttributeSpec{{Name: "a", Derive: DeriveSpeed}}, false},
		{"arity five", AttributeSpec{{Name: "a", Derive: DeriveSpeed, Arity: 5}}, false},
		{"unknown derive", AttributeSpec{{Name: "a", Derive: "pressure", Arity: 1}}, false},
		{"constant without value", AttributeSpec{{Name: "a", Derive: DeriveConstant, Arity: 1}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidSpec) {
				t.Errorf("error = %v, want ErrInvalidSpec", err)
			}
		})
	}
}

func TestCollection(t *testing.T) {
	spec := AttributeSpec{
		{Name: "speed", Derive: DeriveSpeed, Arity: 1},
		{Name: "coords", Derive: DeriveCoords, Arity: 2},
	}
	res, err := Build(sampleObservations(), spec, WithProjection(geo.WebMercator))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fc := Collection(res.Features)
	if len(fc.Features) != 5 {
		t.Fatalf("got %d GeoJSON features, want 5", len(fc.Features))
	}
	props := fc.Features[0].Properties
	if props["speed"] != 59.58 {
		t.Errorf("speed = %v", props["speed"])
	}
	if props[ReservedName] != 0 {
		t.Errorf("index = %v", props[ReservedName])
	}
	if v, ok := props["coords"].([]float64); !ok || len(v) != 2 {
		t.Errorf("coords = %#v", props["coords"])
	}

	// geometry stays in lon/lat while the projected position feeds coords
	for i, gf := range fc.Features {
		o := sampleObservations()[i]
		if p, ok := gf.Geometry.(orb.Point); !ok || p != (orb.Point{o.Position.X, o.Position.Y}) {
			t.Errorf("feature %d geometry = %v, want (%v, %v)", i, gf.Geometry, o.Position.X, o.Position.Y)
		}
	}

	b := Bounds(res.Features)
	minX, minY := geo.WebMercator(-8.711, -10.237)
	maxX, maxY := geo.WebMercator(24.236, 40.392)
	if b.Min != (orb.Point{minX, minY}) || b.Max != (orb.Point{maxX, maxY}) {
		t.Errorf("bounds = %v", b)
	}
}
