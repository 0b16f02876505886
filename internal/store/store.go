// Package store persists feature sets, survey runs, labeled points and
// segments behind a driver-agnostic interface.
package store

import (
	"context"

	"github.com/trackside-analytics/railscan-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the survey pipeline.
type Store interface {
	// Features. ReplaceFeatures swaps the whole reference set atomically;
	// ListFeatures returns it in insertion order, which is the order the
	// labeler scans in.
	ReplaceFeatures(ctx context.Context, features []model.Feature) (int, error)
	ListFeatures(ctx context.Context) ([]model.Feature, error)
	CountFeaturesByCategory(ctx context.Context) (map[model.Category]int, error)

	// Runs
	CreateRun(ctx context.Context, name string, thresholdM float64) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, points, segments int) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Labeled points
	InsertLabeledPoints(ctx context.Context, runID string, points []model.LabeledPoint) error
	ListLabeledPoints(ctx context.Context, runID string) ([]model.LabeledPoint, error)

	// Segments
	InsertSegments(ctx context.Context, runID string, segments []model.Segment) error
	ListSegments(ctx context.Context, runID string) ([]model.Segment, error)
	GetSegment(ctx context.Context, runID string, index int) (*model.Segment, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
