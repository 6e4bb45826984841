// Package observation loads raw wind observations from inline lists,
// JSON documents and ERA5 NetCDF files.
package observation

// Position is the coordinate pair of an observation in source space,
// normally longitude (X) and latitude (Y) in degrees.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Wind is the wind record of an observation. Members are optional: a record
// without speed or heading still loads and fails later in the attribute
// derivation that needs the value.
type Wind struct {
	Speed      *float64 `json:"speed,omitempty" yaml:"speed,omitempty"`
	HeadingDeg *float64 `json:"heading_deg,omitempty" yaml:"heading_deg,omitempty"`
}

// Observation is one loaded weather data point. It is never mutated after
// Load returns it.
type Observation struct {
	Index    int      `json:"index" yaml:"index"`
	Position Position `json:"position" yaml:"position"`
	Wind     Wind     `json:"wind" yaml:"wind"`
}

// Batch is the outcome of a single load pass.
type Batch struct {
	Observations []Observation
	Failures     []RecordError
}

// Len returns the number of input records the batch accounts for.
func (b Batch) Len() int {
	return len(b.Observations) + len(b.Failures)
}

// Float returns a pointer to v, handy for building Wind literals.
func Float(v float64) *float64 {
	return &v
}

// Record is the wire form of one list element of an observation document:
//
//	{"coord": {"xPos": -8.711, "yPos": 30.35}, "wind": {"speed": 59.58, "deg": 8}}
type Record struct {
	Coord *RecordCoord `json:"coord" yaml:"coord"`
	Wind  *RecordWind  `json:"wind" yaml:"wind"`
}

// RecordCoord is the position object of a Record.
type RecordCoord struct {
	X *float64 `json:"xPos" yaml:"xPos"`
	Y *float64 `json:"yPos" yaml:"yPos"`
}

// RecordWind is the wind object of a Record.
type RecordWind struct {
	Speed *float64 `json:"speed" yaml:"speed"`
	Deg   *float64 `json:"deg" yaml:"deg"`
}

// Observation validates the record structure and converts it to an
// Observation carrying index.
func (r Record) Observation(index int) (Observation, error) {
	switch {
	case r.Coord == nil:
		return Observation{}, &RecordError{Index: index, Field: "coord", Err: ErrMalformedRecord}
	case r.Coord.X == nil:
		return Observation{}, &RecordError{Index: index, Field: "coord.xPos", Err: ErrMalformedRecord}
	case r.Coord.Y == nil:
		return Observation{}, &RecordError{Index: index, Field: "coord.yPos", Err: ErrMalformedRecord}
	case r.Wind == nil:
		return Observation{}, &RecordError{Index: index, Field: "wind", Err: ErrMalformedRecord}
	}

	return Observation{
		Index:    index,
		Position: Position{X: *r.Coord.X, Y: *r.Coord.Y},
		Wind: Wind{
			Speed:      copyFloat(r.Wind.Speed),
			HeadingDeg: copyFloat(r.Wind.Deg),
		},
	}, nil
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return Float(*v)
}
