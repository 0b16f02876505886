package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackside-analytics/railscan-cli/internal/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFeatureCSV(t *testing.T) {
	path := writeFile(t, "bridges.csv", "Latitude,Longitude\n57.7089,11.9746\n57.7100,11.9800\n")

	features, err := LoadFeatureCSV(path, model.CategoryBridge)
	require.NoError(t, err)
	require.Len(t, features, 2)
	assert.Equal(t, model.CategoryBridge, features[0].Category)
	assert.InDelta(t, 57.7089, features[0].Latitude, 1e-9)
	assert.InDelta(t, 11.9746, features[0].Longitude, 1e-9)
}

func TestLoadFeatureCSV_PaddedHeaderAndBOM(t *testing.T) {
	path := writeFile(t, "joints.csv", "\uFEFF Latitude , Longitude \n57.7089, 11.9746\n")

	features, err := LoadFeatureCSV(path, model.CategoryRailJoint)
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.Equal(t, model.CategoryRailJoint, features[0].Category)
}

func TestLoadFeatureCSV_DropsMalformedRows(t *testing.T) {
	path := writeFile(t, "turnouts.csv",
		"Latitude,Longitude\n57.7,11.9\nnot-a-number,11.9\n57.8,\nNaN,11.9\n57.9,12.0\n")

	features, err := LoadFeatureCSV(path, model.CategoryTurnout)
	require.NoError(t, err)
	require.Len(t, features, 2)
	assert.InDelta(t, 57.7, features[0].Latitude, 1e-9)
	assert.InDelta(t, 57.9, features[1].Latitude, 1e-9)
}

func TestLoadFeatureCSV_MissingColumns(t *testing.T) {
	path := writeFile(t, "bad.csv", "Lat,Lon\n57.7,11.9\n")

	_, err := LoadFeatureCSV(path, model.CategoryBridge)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing Latitude/Longitude")
}

func TestLoadFeatureCSV_EmptyFile(t *testing.T) {
	path := writeFile(t, "empty.csv", "")

	_, err := LoadFeatureCSV(path, model.CategoryBridge)
	require.Error(t, err)
}

func TestLoadFeatureSet_CanonicalOrder(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	paths := map[model.Category]string{
		// Deliberately listed out of order; load order must follow
		// model.FeatureCategories regardless.
		model.CategoryTurnout: write("turnouts.csv", "Latitude,Longitude\n3.0,3.0\n"),
		model.CategoryBridge:  write("bridges.csv", "Latitude,Longitude\n1.0,1.0\n"),
	}

	features, err := LoadFeatureSet(paths)
	require.NoError(t, err)
	require.Len(t, features, 2)
	assert.Equal(t, model.CategoryBridge, features[0].Category)
	assert.Equal(t, model.CategoryTurnout, features[1].Category)
}

func TestLoadFeatureSet_NoData(t *testing.T) {
	_, err := LoadFeatureSet(map[model.Category]string{})
	require.Error(t, err)
}
