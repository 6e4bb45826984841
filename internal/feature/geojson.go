package feature

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Collection exports features as a GeoJSON FeatureCollection. Geometry is
// the source longitude/latitude whatever the layer projection, so documents
// stay RFC 7946. Scalar attributes become numbers, vectors arrays.
func Collection(features []Feature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		gf := geojson.NewFeature(orb.Point{f.LonLat[0], f.LonLat[1]})
		gf.Properties[ReservedName] = f.Index
		for name, v := range f.Attributes {
			if len(v) == 1 {
				gf.Properties[name] = v[0]
				continue
			}
			gf.Properties[name] = v
		}
		fc.Append(gf)
	}
	return fc
}

// Bounds returns the render space bounding box of the feature positions.
func Bounds(features []Feature) orb.Bound {
	mp := make(orb.MultiPoint, len(features))
	for i, f := range features {
		mp[i] = orb.Point{f.Position[0], f.Position[1]}
	}
	return mp.Bound()
}
