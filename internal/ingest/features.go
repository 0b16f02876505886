// Package ingest loads infrastructure feature sets and ride recordings from
// delimited files into domain types.
package ingest

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/trackside-analytics/railscan-cli/internal/model"
)

// featureRow mirrors one row of a feature CSV. Coordinates are decoded as
// strings so malformed values can be dropped instead of failing the file.
type featureRow struct {
	Latitude  string `csv:"Latitude"`
	Longitude string `csv:"Longitude"`
}

// LoadFeatureCSV reads one category's feature file. The file must carry
// Latitude and Longitude header columns (surrounding whitespace is
// tolerated); rows with non-numeric or non-finite coordinates are dropped
// and counted, not fatal.
func LoadFeatureCSV(path string, category model.Category) ([]model.Feature, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	return readFeatures(f, category, path)
}

// LoadFeatureSet loads every category present in paths, in the canonical
// category order. Order matters: the labeler's first-match policy is defined
// over the loaded order.
func LoadFeatureSet(paths map[model.Category]string) ([]model.Feature, error) {
	var features []model.Feature
	for _, cat := range model.FeatureCategories {
		path, ok := paths[cat]
		if !ok || path == "" {
			continue
		}
		fs, err := LoadFeatureCSV(path, cat)
		if err != nil {
			return nil, err
		}
		features = append(features, fs...)
	}
	if len(features) == 0 {
		return nil, eris.New("ingest: no feature points loaded, check file paths and content")
	}
	return features, nil
}

func readFeatures(r io.Reader, category model.Category, name string) ([]model.Feature, error) {
	// Feature exports frequently arrive with a UTF-8 BOM.
	cr := csv.NewReader(transform.NewReader(r, unicode.UTF8BOM.NewDecoder()))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, eris.Errorf("ingest: %s is empty", name)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read %s header", name)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if !contains(header, "Latitude") || !contains(header, "Longitude") {
		return nil, eris.Errorf("ingest: %s missing Latitude/Longitude columns (found %v)", name, header)
	}

	dec, err := csvutil.NewDecoder(cr, header...)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: decode %s", name)
	}

	var (
		features []model.Feature
		dropped  int
	)
	for {
		var row featureRow
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrapf(err, "ingest: read %s row", name)
		}

		lat, latErr := strconv.ParseFloat(strings.TrimSpace(row.Latitude), 64)
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(row.Longitude), 64)
		if latErr != nil || lonErr != nil || !finite(lat) || !finite(lon) {
			dropped++
			continue
		}
		features = append(features, model.Feature{
			Category:  category,
			Latitude:  lat,
			Longitude: lon,
			Source:    name,
		})
	}

	zap.L().Info("ingest: loaded feature file",
		zap.String("category", string(category)),
		zap.String("file", name),
		zap.Int("points", len(features)),
		zap.Int("dropped", dropped),
	)
	return features, nil
}

func contains(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
