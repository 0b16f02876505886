package segment

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackside-analytics/railscan-cli/internal/model"
)

func TestWindowLen(t *testing.T) {
	assert.Equal(t, 5000, Config{SampleInterval: 0.002, WindowSeconds: 10}.WindowLen())
	assert.Equal(t, 0, Config{SampleInterval: 0, WindowSeconds: 10}.WindowLen())
}

func TestWindow_DropsTrailingPartial(t *testing.T) {
	series := make([][2]float64, 25)
	cfg := Config{SampleInterval: 1, WindowSeconds: 10}

	segments, err := Window(series, nil, cfg)
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, 0, segments[0].Start)
	assert.Equal(t, 10, segments[0].End)
	assert.Equal(t, 10, segments[1].Start)
	assert.Equal(t, 20, segments[1].End)
}

func TestWindow_ChannelStats(t *testing.T) {
	// Constant 3.0 on channel 1, alternating +/-2.0 on channel 2.
	series := make([][2]float64, 10)
	for i := range series {
		series[i][0] = 3.0
		series[i][1] = 2.0
		if i%2 == 1 {
			series[i][1] = -2.0
		}
	}

	segments, err := Window(series, nil, Config{SampleInterval: 1, WindowSeconds: 10})
	require.NoError(t, err)
	require.Len(t, segments, 1)
	require.Len(t, segments[0].Channels, 2)

	ch1, ch2 := segments[0].Channels[0], segments[0].Channels[1]
	assert.Equal(t, "vibration1", ch1.Name)
	assert.InDelta(t, 3.0, ch1.RMS, 1e-9)
	assert.InDelta(t, 3.0, ch1.Peak, 1e-9)
	assert.Equal(t, "vibration2", ch2.Name)
	assert.InDelta(t, 2.0, ch2.RMS, 1e-9)
	assert.InDelta(t, 2.0, ch2.Peak, 1e-9)
}

func TestWindow_MeanSpeed(t *testing.T) {
	series := make([][2]float64, 10)
	speed := []float64{10, 10, 10, 10, 10, 30, 30, 30, 30, 30}

	segments, err := Window(series, speed, Config{SampleInterval: 1, WindowSeconds: 5})
	require.NoError(t, err)
	require.Len(t, segments, 2)
	require.NotNil(t, segments[0].MeanSpeed)
	assert.InDelta(t, 10.0, *segments[0].MeanSpeed, 1e-9)
	require.NotNil(t, segments[1].MeanSpeed)
	assert.InDelta(t, 30.0, *segments[1].MeanSpeed, 1e-9)
}

func TestWindow_SpeedShorterThanSeries(t *testing.T) {
	series := make([][2]float64, 10)
	speed := []float64{10, 10, 10, 10, 10} // covers only the first window

	segments, err := Window(series, speed, Config{SampleInterval: 1, WindowSeconds: 5})
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.NotNil(t, segments[0].MeanSpeed)
	assert.Nil(t, segments[1].MeanSpeed)
}

func TestWindow_InvalidConfig(t *testing.T) {
	_, err := Window(nil, nil, Config{SampleInterval: 0, WindowSeconds: 10})
	require.Error(t, err)
}

func labeledPoints(labels ...model.Category) []model.LabeledPoint {
	points := make([]model.LabeledPoint, len(labels))
	for i, label := range labels {
		points[i] = model.LabeledPoint{
			TrackPoint: model.TrackPoint{Index: i},
			Label:      label,
		}
	}
	return points
}

func TestAssociate_TruncatedPairing(t *testing.T) {
	// 7 segments, 5 labeled points: segments 0-4 take the labels in order,
	// 5 and 6 stay unlabeled.
	segments := make([]model.Segment, 7)
	for i := range segments {
		segments[i].Index = i
	}
	points := labeledPoints(
		model.CategoryBridge,
		model.CategoryRailJoint,
		model.CategoryRailJoint,
		model.CategoryTurnout,
		model.CategoryBridge,
	)

	got := Associate(segments, points)
	require.Len(t, got, 7)
	for i, p := range points {
		assert.True(t, got[i].Labeled)
		assert.Equal(t, p.Label, got[i].Label)
	}
	assert.False(t, got[5].Labeled)
	assert.False(t, got[6].Labeled)

	// Input untouched.
	assert.False(t, segments[0].Labeled)
}

func TestAssociate_ExtraLabelsIgnored(t *testing.T) {
	segments := []model.Segment{{Index: 0}}
	points := labeledPoints(model.CategoryOther, model.CategoryBridge)

	got := Associate(segments, points)
	require.Len(t, got, 1)
	assert.Equal(t, model.CategoryOther, got[0].Label)
}

func TestAssociate_DroppedPointLeavesGap(t *testing.T) {
	// Ingest can drop a malformed GPS row; the surviving points keep their
	// original sequence indexes. The dropped row's segment must stay
	// unlabeled instead of pulling every later label one segment left.
	segments := []model.Segment{{Index: 0}, {Index: 1}, {Index: 2}}
	points := []model.LabeledPoint{
		{TrackPoint: model.TrackPoint{Index: 1}, Label: model.CategoryBridge},
		{TrackPoint: model.TrackPoint{Index: 2}, Label: model.CategoryOther},
	}

	got := Associate(segments, points)
	require.Len(t, got, 3)
	assert.False(t, got[0].Labeled)
	assert.Equal(t, model.Category(""), got[0].Label)
	assert.True(t, got[1].Labeled)
	assert.Equal(t, model.CategoryBridge, got[1].Label)
	assert.True(t, got[2].Labeled)
	assert.Equal(t, model.CategoryOther, got[2].Label)
}

func TestMean_Empty(t *testing.T) {
	assert.Equal(t, 0.0, mean(nil))
}

func TestChannelStats_NaNSafe(t *testing.T) {
	// Stats over an empty window must not divide by zero.
	stats := channelStats("vibration1", nil, 0)
	assert.False(t, math.IsNaN(stats.RMS))
}
