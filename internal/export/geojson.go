package export

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/trackside-analytics/railscan-cli/internal/model"
)

// WriteGeoJSON writes the feature set and labeled track points as one
// GeoJSON FeatureCollection. Infrastructure features and track points are
// distinguished by the "kind" property; both carry marker style hints so any
// GeoJSON-aware map renders them like the house maps.
func WriteGeoJSON(features []model.Feature, points []model.LabeledPoint,
	styles map[model.Category]MarkerStyle, outputPath string) error {

	fc := &geojson.FeatureCollection{}

	for _, f := range features {
		st := Style(styles, f.Category)
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: geom.NewPointFlat(geom.XY, []float64{f.Longitude, f.Latitude}),
			Properties: map[string]any{
				"kind":         "feature",
				"category":     string(f.Category),
				"marker-color": st.Color,
				"marker-size":  st.Size,
			},
		})
	}

	for _, p := range points {
		st := Style(styles, p.Label)
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: geom.NewPointFlat(geom.XY, []float64{p.Longitude, p.Latitude}),
			Properties: map[string]any{
				"kind":         "point",
				"index":        p.Index,
				"label":        string(p.Label),
				"marker-color": st.Color,
				"marker-size":  st.Size,
			},
		})
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return eris.Wrap(err, "export: marshal geojson")
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return eris.Wrap(err, "export: write geojson")
	}
	return nil
}
