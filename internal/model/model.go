// Package model defines the domain types shared across the survey pipeline.
package model

import (
	"math"
	"time"

	"github.com/rotisserie/eris"
)

// Category classifies an infrastructure feature, or labels a track point with
// the feature type it was recorded nearest to.
type Category string

const (
	CategoryBridge    Category = "Bridge"
	CategoryRailJoint Category = "RailJoint"
	CategoryTurnout   Category = "Turnout"

	// CategoryOther is the sentinel label for track points with no
	// infrastructure feature within the labeling threshold.
	CategoryOther Category = "Other"
)

// FeatureCategories lists the feature categories in their canonical load
// order. Labeling is order-sensitive, so this order is fixed.
var FeatureCategories = []Category{CategoryBridge, CategoryRailJoint, CategoryTurnout}

// ParseCategory converts a string to a feature Category.
// CategoryOther is not a feature category and is rejected.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryBridge, CategoryRailJoint, CategoryTurnout:
		return Category(s), nil
	default:
		return "", eris.Errorf("model: unknown feature category %q", s)
	}
}

// Feature is a fixed infrastructure feature location. The feature set is
// loaded once per labeling pass and never mutated during it.
type Feature struct {
	ID        int64    `json:"id,omitempty"`
	Category  Category `json:"category"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Source    string   `json:"source,omitempty"`
}

// Valid reports whether the feature has finite coordinates and a known
// feature category.
func (f Feature) Valid() bool {
	if _, err := ParseCategory(string(f.Category)); err != nil {
		return false
	}
	return finite(f.Latitude) && finite(f.Longitude)
}

// TrackPoint is one GPS sample from a ride recording. Index is its position
// in the merged time series and never changes after the merge.
type TrackPoint struct {
	Index     int     `json:"index"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LabeledPoint is a track point after a labeling pass. Points are labeled
// exactly once and never re-labeled.
type LabeledPoint struct {
	TrackPoint
	Label Category `json:"label"`
}

// ChannelStats summarizes one vibration channel within a segment.
type ChannelStats struct {
	Name string  `json:"name"`
	RMS  float64 `json:"rms"`
	Peak float64 `json:"peak"`
}

// Segment is a fixed-duration window of the vibration recording. Start and
// End are sample offsets into the merged series (End exclusive). A segment
// beyond the labeled point sequence stays unlabeled.
type Segment struct {
	Index     int            `json:"index"`
	Start     int            `json:"start"`
	End       int            `json:"end"`
	Labeled   bool           `json:"labeled"`
	Label     Category       `json:"label,omitempty"`
	Channels  []ChannelStats `json:"channels"`
	MeanSpeed *float64       `json:"mean_speed,omitempty"`
}

// RunStatus represents the state of a survey processing run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run records one labeling pass over a ride recording.
type Run struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Status       RunStatus `json:"status"`
	ThresholdM   float64   `json:"threshold_m"`
	PointCount   int       `json:"point_count"`
	SegmentCount int       `json:"segment_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
