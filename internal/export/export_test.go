package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/trackside-analytics/railscan-cli/internal/model"
)

func testPoints() []model.LabeledPoint {
	return []model.LabeledPoint{
		{TrackPoint: model.TrackPoint{Index: 0, Latitude: 57.70, Longitude: 11.97}, Label: model.CategoryBridge},
		{TrackPoint: model.TrackPoint{Index: 1, Latitude: 57.71, Longitude: 11.98}, Label: model.CategoryOther},
	}
}

func TestWritePointsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.csv")
	require.NoError(t, WritePointsCSV(testPoints(), path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Index", "Latitude", "Longitude", "Label"}, rows[0])
	assert.Equal(t, "0", rows[1][0])
	assert.Equal(t, "Bridge", rows[1][3])
	assert.Equal(t, "Other", rows[2][3])
}

func TestWriteGeoJSON(t *testing.T) {
	features := []model.Feature{
		{Category: model.CategoryTurnout, Latitude: 57.69, Longitude: 11.96},
	}
	path := filepath.Join(t.TempDir(), "survey.geojson")
	require.NoError(t, WriteGeoJSON(features, testPoints(), DefaultStyles, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 3)

	turnout := fc.Features[0]
	assert.Equal(t, "Point", turnout.Geometry.Type)
	// GeoJSON is lon/lat ordered.
	assert.InDelta(t, 11.96, turnout.Geometry.Coordinates[0], 1e-9)
	assert.InDelta(t, 57.69, turnout.Geometry.Coordinates[1], 1e-9)
	assert.Equal(t, "feature", turnout.Properties["kind"])
	assert.Equal(t, "green", turnout.Properties["marker-color"])

	point := fc.Features[1]
	assert.Equal(t, "point", point.Properties["kind"])
	assert.Equal(t, "Bridge", point.Properties["label"])
	assert.Equal(t, "red", point.Properties["marker-color"])
}

func TestLoadStyles_Defaults(t *testing.T) {
	styles, err := LoadStyles("")
	require.NoError(t, err)
	assert.Equal(t, MarkerStyle{Color: "red", Size: 10}, styles[model.CategoryBridge])
	assert.Equal(t, MarkerStyle{Color: "blue", Size: 8}, styles[model.CategoryRailJoint])
	assert.Equal(t, MarkerStyle{Color: "green", Size: 12}, styles[model.CategoryTurnout])
}

func TestLoadStyles_Override(t *testing.T) {
	path := filepath.Join(t.TempDir(), "styles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("Bridge:\n  color: orange\n  size: 14\n"), 0o644))

	styles, err := LoadStyles(path)
	require.NoError(t, err)
	assert.Equal(t, MarkerStyle{Color: "orange", Size: 14}, styles[model.CategoryBridge])
	// Untouched categories keep defaults.
	assert.Equal(t, MarkerStyle{Color: "blue", Size: 8}, styles[model.CategoryRailJoint])
}

func TestStyle_UnknownFallsBackToOther(t *testing.T) {
	st := Style(DefaultStyles, model.Category("Tunnel"))
	assert.Equal(t, DefaultStyles[model.CategoryOther], st)
}

func TestWriteXLSXReport(t *testing.T) {
	speed := 18.0
	report := Report{
		Run: &model.Run{ID: "run-1", Name: "survey", Status: model.RunStatusComplete, ThresholdM: 15, PointCount: 2, SegmentCount: 1},
		Counts: map[model.Category]int{
			model.CategoryBridge: 1,
			model.CategoryOther:  1,
		},
		Segments: []model.Segment{
			{
				Index: 0, Start: 0, End: 5000, Labeled: true, Label: model.CategoryBridge,
				Channels: []model.ChannelStats{
					{Name: "vibration1", RMS: 0.5, Peak: 1.2},
					{Name: "vibration2", RMS: 0.4, Peak: 0.9},
				},
				MeanSpeed: &speed,
			},
		},
	}

	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteXLSXReport(report, path))

	file, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, file.Sheets, 2)
	assert.Equal(t, "Summary", file.Sheets[0].Name)
	assert.Equal(t, "Segments", file.Sheets[1].Name)

	segs := file.Sheets[1]
	require.True(t, len(segs.Rows) >= 2)
	assert.Equal(t, "Segment", segs.Rows[0].Cells[0].Value)
	assert.Equal(t, "Bridge", segs.Rows[1].Cells[1].Value)
}
