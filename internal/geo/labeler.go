// Package geo labels GPS track points by proximity to fixed infrastructure features.
package geo

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/trackside-analytics/railscan-cli/internal/model"
)

// DefaultThresholdMeters is the default match radius around a feature.
const DefaultThresholdMeters = 15.0

// Labeler assigns a category to each track point based on its distance to a
// fixed feature set. The feature slice is held read-only for the lifetime of
// a labeling pass, so a single Labeler is safe for concurrent use.
//
// Both the labeler inputs are assumed clean: coordinates must be finite.
// Ingest drops non-finite rows before they get here.
type Labeler struct {
	features  []model.Feature
	threshold float64
	nearest   bool
}

// Option configures a Labeler.
type Option func(*Labeler)

// WithThreshold sets the match radius in meters. Non-positive values fall
// back to DefaultThresholdMeters.
func WithThreshold(meters float64) Option {
	return func(l *Labeler) {
		if meters > 0 {
			l.threshold = meters
		}
	}
}

// WithNearestMatch switches the labeler from first-match to nearest-match
// semantics. See Label for the difference.
func WithNearestMatch() Option {
	return func(l *Labeler) {
		l.nearest = true
	}
}

// NewLabeler creates a Labeler over the given feature set. The slice is not
// copied; callers must not mutate it while labeling.
func NewLabeler(features []model.Feature, opts ...Option) *Labeler {
	l := &Labeler{features: features, threshold: DefaultThresholdMeters}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Threshold returns the match radius in meters.
func (l *Labeler) Threshold() float64 { return l.threshold }

// Label returns the category of the first feature, in feature-set order,
// whose geodesic distance to the point is within the threshold. Points with
// no feature in range get CategoryOther. An empty feature set therefore
// labels everything CategoryOther.
//
// First match wins, not nearest match: when two features are both in range,
// the one earlier in the set takes the label even if the other is closer.
// Feature sets are small enough that a richer tie-break has never been
// needed; callers that want the closest feature opt in via WithNearestMatch.
func (l *Labeler) Label(pt model.TrackPoint) model.Category {
	if l.nearest {
		return l.labelNearest(pt)
	}
	for _, f := range l.features {
		if Distance(pt.Latitude, pt.Longitude, f.Latitude, f.Longitude) <= l.threshold {
			return f.Category
		}
	}
	return model.CategoryOther
}

// labelNearest returns the category of the closest in-range feature.
func (l *Labeler) labelNearest(pt model.TrackPoint) model.Category {
	label := model.CategoryOther
	best := math.Inf(1)
	for _, f := range l.features {
		d := Distance(pt.Latitude, pt.Longitude, f.Latitude, f.Longitude)
		if d <= l.threshold && d < best {
			label = f.Category
			best = d
		}
	}
	return label
}

// LabelAll labels every point in input order. The scan is O(points x
// features); with tens of features per survey that is cheap, so there is no
// spatial index. Points are sharded across workers when workers > 1 — the
// feature set is never mutated, so the shards need no coordination.
func (l *Labeler) LabelAll(ctx context.Context, points []model.TrackPoint, workers int) ([]model.LabeledPoint, error) {
	out := make([]model.LabeledPoint, len(points))
	if len(points) == 0 {
		return out, nil
	}
	if workers < 1 {
		workers = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	chunk := (len(points) + workers - 1) / workers
	for start := 0; start < len(points); start += chunk {
		end := start + chunk
		if end > len(points) {
			end = len(points)
		}
		start, end := start, end
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return eris.Wrap(err, "geo: labeling cancelled")
				}
				out[i] = model.LabeledPoint{TrackPoint: points[i], Label: l.Label(points[i])}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
