package overpass

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// GeoJSON renders the origin and every amenity as a FeatureCollection of
// points, suitable for dropping onto a web map.
func (r *Result) GeoJSON() ([]byte, error) {
	fc := &geojson.FeatureCollection{}
	fc.Features = append(fc.Features, &geojson.Feature{
		Geometry:   geom.NewPointFlat(geom.XY, []float64{r.Origin.Lon, r.Origin.Lat}),
		Properties: map[string]any{"role": "origin"},
	})
	for _, c := range Categories {
		for _, a := range r.List(c) {
			fc.Features = append(fc.Features, &geojson.Feature{
				Geometry: geom.NewPointFlat(geom.XY, []float64{a.Lon, a.Lat}),
				Properties: map[string]any{
					"role":     "amenity",
					"category": string(a.Category),
					"type":     a.Type,
					"name":     a.Name,
					"distance": a.Distance,
				},
			})
		}
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, eris.Wrap(err, "overpass: encode geojson")
	}
	return data, nil
}
