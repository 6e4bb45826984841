package observation

import (
	"fmt"
	"math"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/rs/zerolog/log"
)

// loadNetCDF reads the first time step of 10m wind components from an ERA5
// single levels file and turns every grid cell into an observation.
func loadNetCDF(path string, stride int) (Batch, error) {
	if stride <= 0 {
		stride = 1
	}

	nc, err := netcdf.Open(path)
	if err != nil {
		return Batch{}, err
	}
	defer nc.Close()

	lat, err := axisValues(nc, "latitude")
	if err != nil {
		return Batch{}, err
	}
	lon, err := axisValues(nc, "longitude")
	if err != nil {
		return Batch{}, err
	}

	u10, err := firstStep(nc, "u10")
	if err != nil {
		return Batch{}, err
	}
	v10, err := firstStep(nc, "v10")
	if err != nil {
		return Batch{}, err
	}

	if len(u10) != len(lat) || len(v10) != len(lat) {
		return Batch{}, fmt.Errorf("wind grid has %d rows, latitude axis has %d", len(u10), len(lat))
	}

	log.Debug().
		Str("path", path).
		Int("lat", len(lat)).
		Int("lon", len(lon)).
		Int("stride", stride).
		Msg("ERA5 grid opened")

	batch := Batch{Observations: make([]Observation, 0, (len(lat)/stride+1)*(len(lon)/stride+1))}
	index := 0
	for i := 0; i < len(lat); i += stride {
		if len(u10[i]) != len(lon) || len(v10[i]) != len(lon) {
			return Batch{}, fmt.Errorf("wind grid row %d has %d columns, longitude axis has %d", i, len(u10[i]), len(lon))
		}
		for j := 0; j < len(lon); j += stride {
			u, v := u10[i][j], v10[i][j]
			if math.IsNaN(u) || math.IsNaN(v) {
				batch.Failures = append(batch.Failures, RecordError{Index: index, Field: "wind", Err: ErrMalformedRecord})
				index++
				continue
			}

			batch.Observations = append(batch.Observations, Observation{
				Index:    index,
				Position: Position{X: normalizeLon(lon[j]), Y: lat[i]},
				Wind: Wind{
					Speed:      Float(math.Hypot(u, v)),
					HeadingDeg: Float(WindDirection(u, v)),
				},
			})
			index++
		}
	}

	return batch, nil
}

// WindDirection converts zonal (u) and meridional (v) components to the
// meteorological direction the wind blows from, in degrees [0, 360).
func WindDirection(u, v float64) float64 {
	deg := math.Mod(270-math.Atan2(v, u)*180/math.Pi, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

func normalizeLon(lon float64) float64 {
	if lon > 180 {
		return lon - 360
	}
	return lon
}

func axisValues(nc api.Group, name string) ([]float64, error) {
	vg, err := nc.GetVarGetter(name)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", name, err)
	}
	v, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", name, err)
	}

	switch vals := v.(type) {
	case []float32:
		out := make([]float64, len(vals))
		for i, x := range vals {
			out[i] = float64(x)
		}
		return out, nil
	case []float64:
		return vals, nil
	}

	return nil, fmt.Errorf("variable %s: unsupported type %T", name, v)
}

// firstStep returns the [lat][lon] grid of the first time step, unpacked
// with the variable's scale_factor and add_offset. Cells holding the fill
// value come back as NaN.
func firstStep(nc api.Group, name string) ([][]float64, error) {
	vg, err := nc.GetVarGetter(name)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", name, err)
	}
	v, err := vg.GetSlice(0, 1)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", name, err)
	}

	scale, offset := 1.0, 0.0
	attrs := vg.Attributes()
	if s, ok := attrs.Get("scale_factor"); ok {
		scale = toFloat(s, 1)
	}
	if o, ok := attrs.Get("add_offset"); ok {
		offset = toFloat(o, 0)
	}
	fill := math.NaN()
	for _, key := range []string{"_FillValue", "missing_value"} {
		if f, ok := attrs.Get(key); ok {
			fill = toFloat(f, fill)
			break
		}
	}

	switch vals := v.(type) {
	case [][][]int16:
		return unpack(vals[0], scale, offset, fill), nil
	case [][][]float32:
		return unpack(vals[0], scale, offset, fill), nil
	case [][][]float64:
		return unpack(vals[0], scale, offset, fill), nil
	}

	return nil, fmt.Errorf("variable %s: unsupported type %T", name, v)
}

func unpack[T int16 | float32 | float64](rows [][]T, scale, offset, fill float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = make([]float64, len(row))
		for j, x := range row {
			if float64(x) == fill {
				out[i][j] = math.NaN()
				continue
			}
			out[i][j] = float64(x)*scale + offset
		}
	}
	return out
}

func toFloat(v any, fallback float64) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int16:
		return float64(x)
	case []int16:
		if len(x) > 0 {
			return float64(x[0])
		}
	case []float64:
		if len(x) > 0 {
			return x[0]
		}
	case []float32:
		if len(x) > 0 {
			return float64(x[0])
		}
	}
	return fallback
}
