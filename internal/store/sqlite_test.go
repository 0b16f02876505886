package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackside-analytics/railscan-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testFeatures() []model.Feature {
	return []model.Feature{
		{Category: model.CategoryBridge, Latitude: 57.70, Longitude: 11.97, Source: "bridges.csv"},
		{Category: model.CategoryRailJoint, Latitude: 57.71, Longitude: 11.98, Source: "joints.csv"},
		{Category: model.CategoryRailJoint, Latitude: 57.72, Longitude: 11.99, Source: "joints.csv"},
	}
}

func TestSQLite_ReplaceAndListFeatures(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	n, err := st.ReplaceFeatures(ctx, testFeatures())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	features, err := st.ListFeatures(ctx)
	require.NoError(t, err)
	require.Len(t, features, 3)

	// Insertion order survives: the labeler's first-match policy depends on it.
	assert.Equal(t, model.CategoryBridge, features[0].Category)
	assert.Equal(t, model.CategoryRailJoint, features[1].Category)
	assert.InDelta(t, 57.72, features[2].Latitude, 1e-9)
}

func TestSQLite_ReplaceFeatures_Swaps(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.ReplaceFeatures(ctx, testFeatures())
	require.NoError(t, err)

	_, err = st.ReplaceFeatures(ctx, testFeatures()[:1])
	require.NoError(t, err)

	features, err := st.ListFeatures(ctx)
	require.NoError(t, err)
	assert.Len(t, features, 1)
}

func TestSQLite_CountFeaturesByCategory(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.ReplaceFeatures(ctx, testFeatures())
	require.NoError(t, err)

	counts, err := st.CountFeaturesByCategory(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[model.CategoryBridge])
	assert.Equal(t, 2, counts[model.CategoryRailJoint])
	assert.Equal(t, 0, counts[model.CategoryTurnout])
}

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "morning survey", 15)
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	require.NoError(t, st.CompleteRun(ctx, run.ID, model.RunStatusComplete, 100, 7))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, 100, got.PointCount)
	assert.Equal(t, 7, got.SegmentCount)
	assert.InDelta(t, 15.0, got.ThresholdM, 1e-9)
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_CompleteRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.CompleteRun(context.Background(), "nonexistent", model.RunStatusComplete, 0, 0)
	require.Error(t, err)
}

func TestSQLite_ListRuns_FilterByStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	r1, err := st.CreateRun(ctx, "first", 15)
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, "second", 15)
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, r1.ID, model.RunStatusComplete, 1, 1))

	complete, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, complete, 1)
	assert.Equal(t, "first", complete[0].Name)

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLite_LabeledPointsRoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "survey", 15)
	require.NoError(t, err)

	points := []model.LabeledPoint{
		{TrackPoint: model.TrackPoint{Index: 0, Latitude: 57.70, Longitude: 11.97}, Label: model.CategoryBridge},
		{TrackPoint: model.TrackPoint{Index: 2, Latitude: 57.71, Longitude: 11.98}, Label: model.CategoryOther},
	}
	require.NoError(t, st.InsertLabeledPoints(ctx, run.ID, points))

	got, err := st.ListLabeledPoints(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, points[0].Label, got[0].Label)
	assert.Equal(t, 2, got[1].Index)
}

func TestSQLite_SegmentsRoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "survey", 15)
	require.NoError(t, err)

	speed := 22.5
	segments := []model.Segment{
		{
			Index: 0, Start: 0, End: 5000,
			Labeled: true, Label: model.CategoryBridge,
			Channels: []model.ChannelStats{
				{Name: "vibration1", RMS: 0.5, Peak: 1.2},
				{Name: "vibration2", RMS: 0.4, Peak: 0.9},
			},
			MeanSpeed: &speed,
		},
		{
			Index: 1, Start: 5000, End: 10000,
			Channels: []model.ChannelStats{
				{Name: "vibration1", RMS: 0.1, Peak: 0.2},
				{Name: "vibration2", RMS: 0.1, Peak: 0.3},
			},
		},
	}
	require.NoError(t, st.InsertSegments(ctx, run.ID, segments))

	got, err := st.ListSegments(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.True(t, got[0].Labeled)
	assert.Equal(t, model.CategoryBridge, got[0].Label)
	require.NotNil(t, got[0].MeanSpeed)
	assert.InDelta(t, 22.5, *got[0].MeanSpeed, 1e-9)
	require.Len(t, got[0].Channels, 2)
	assert.InDelta(t, 0.5, got[0].Channels[0].RMS, 1e-9)

	// Unlabeled trailing segment round-trips as unlabeled.
	assert.False(t, got[1].Labeled)
	assert.Empty(t, got[1].Label)
	assert.Nil(t, got[1].MeanSpeed)

	seg, err := st.GetSegment(ctx, run.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 5000, seg.Start)
}

func TestSQLite_GetSegment_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "survey", 15)
	require.NoError(t, err)

	_, err = st.GetSegment(ctx, run.ID, 99)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
