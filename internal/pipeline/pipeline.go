// Package pipeline orchestrates a survey run: load the ride recordings,
// label every track point against the reference feature set, window the
// vibration channels into segments, and persist the results.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trackside-analytics/railscan-cli/internal/geo"
	"github.com/trackside-analytics/railscan-cli/internal/ingest"
	"github.com/trackside-analytics/railscan-cli/internal/model"
	"github.com/trackside-analytics/railscan-cli/internal/segment"
	"github.com/trackside-analytics/railscan-cli/internal/store"
)

// Options controls a single survey run.
type Options struct {
	// Name is a human-readable label stored on the run record.
	Name string
	// ThresholdMeters is the proximity threshold used by the labeler.
	ThresholdMeters float64
	// Workers is the labeling parallelism. Values below 1 mean sequential.
	Workers int
	// Nearest switches the labeler from first-match to nearest-match.
	Nearest bool
	// Segment configures vibration windowing.
	Segment segment.Config
}

// Result is everything a run produced, returned for export and display.
type Result struct {
	Run      *model.Run
	Points   []model.LabeledPoint
	Segments []model.Segment
	Counts   map[model.Category]int
}

// Pipeline runs surveys against a persistent store.
type Pipeline struct {
	store store.Store
}

// New creates a Pipeline backed by the given store.
func New(st store.Store) *Pipeline {
	return &Pipeline{store: st}
}

// Run executes a full survey run over the ride at paths. The run record is
// created up front and marked failed if any stage errors, so partial runs
// remain visible in the run history.
func (p *Pipeline) Run(ctx context.Context, paths ingest.RidePaths, opts Options) (*Result, error) {
	log := zap.L().With(zap.String("run_name", opts.Name))
	start := time.Now()

	ride, err := ingest.LoadRide(paths)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load ride")
	}
	log.Info("pipeline: ride loaded",
		zap.Int("points", len(ride.Points)),
		zap.Int("samples", len(ride.Vibration)),
	)

	features, err := p.store.ListFeatures(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list features")
	}
	if len(features) == 0 {
		log.Warn("pipeline: no reference features loaded, all points will label as Other")
	}

	run, err := p.store.CreateRun(ctx, opts.Name, opts.ThresholdMeters)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	log = log.With(zap.String("run_id", run.ID))

	result, err := p.process(ctx, run, ride, features, opts)
	if err != nil {
		if failErr := p.store.CompleteRun(ctx, run.ID, model.RunStatusFailed, 0, 0); failErr != nil {
			log.Warn("pipeline: failed to mark run failed", zap.Error(failErr))
		}
		return nil, err
	}

	if err := p.store.CompleteRun(ctx, run.ID, model.RunStatusComplete,
		len(result.Points), len(result.Segments)); err != nil {
		return nil, eris.Wrap(err, "pipeline: complete run")
	}
	run.Status = model.RunStatusComplete
	run.PointCount = len(result.Points)
	run.SegmentCount = len(result.Segments)

	log.Info("pipeline: run complete",
		zap.Int("points", len(result.Points)),
		zap.Int("segments", len(result.Segments)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

func (p *Pipeline) process(ctx context.Context, run *model.Run, ride *ingest.Ride,
	features []model.Feature, opts Options) (*Result, error) {

	labelerOpts := []geo.Option{geo.WithThreshold(opts.ThresholdMeters)}
	if opts.Nearest {
		labelerOpts = append(labelerOpts, geo.WithNearestMatch())
	}
	labeler := geo.NewLabeler(features, labelerOpts...)

	points, err := labeler.LabelAll(ctx, ride.Points, opts.Workers)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: label points")
	}

	segments, err := segment.Window(ride.Vibration, ride.Speed, opts.Segment)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: window vibration")
	}
	segments = segment.Associate(segments, points)

	if err := p.store.InsertLabeledPoints(ctx, run.ID, points); err != nil {
		return nil, eris.Wrap(err, "pipeline: persist points")
	}
	if err := p.store.InsertSegments(ctx, run.ID, segments); err != nil {
		return nil, eris.Wrap(err, "pipeline: persist segments")
	}

	return &Result{
		Run:      run,
		Points:   points,
		Segments: segments,
		Counts:   CountLabels(points),
	}, nil
}

// CountLabels tallies labeled points per category.
func CountLabels(points []model.LabeledPoint) map[model.Category]int {
	counts := make(map[model.Category]int)
	for _, p := range points {
		counts[p.Label]++
	}
	return counts
}
