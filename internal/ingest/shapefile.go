package ingest

import (
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trackside-analytics/railscan-cli/internal/model"
)

// LoadFeatureShapefile reads point features from a shapefile, taking each
// feature's category from the named DBF attribute field. Non-point shapes
// and rows with unknown categories are skipped.
func LoadFeatureShapefile(path, categoryField string) ([]model.Feature, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	catIdx := fieldIndex(reader, categoryField)
	if catIdx < 0 {
		return nil, eris.Errorf("ingest: shapefile field %q not found", categoryField)
	}

	source := filepath.Base(path)
	var (
		features []model.Feature
		skipped  int
	)
	for reader.Next() {
		_, shape := reader.Shape()
		point, ok := shape.(*shp.Point)
		if !ok {
			skipped++
			continue
		}

		cat, err := model.ParseCategory(strings.TrimSpace(reader.Attribute(catIdx)))
		if err != nil {
			skipped++
			continue
		}

		f := model.Feature{
			Category:  cat,
			Latitude:  point.Y,
			Longitude: point.X,
			Source:    source,
		}
		if !f.Valid() {
			skipped++
			continue
		}
		features = append(features, f)
	}

	zap.L().Info("ingest: loaded feature shapefile",
		zap.String("file", source),
		zap.Int("points", len(features)),
		zap.Int("skipped", skipped),
	)
	return features, nil
}

// fieldIndex returns the index of a named DBF field, or -1 if not found.
// Shapefile field names are fixed-width and NUL padded.
func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}
