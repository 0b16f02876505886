package ingest

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trackside-analytics/railscan-cli/internal/model"
)

var nan = math.NaN()

// RidePaths maps the logical ride datasets to their file paths. Latitude,
// longitude and both vibration channels are required for a full run; speed
// is optional.
type RidePaths struct {
	Latitude   string
	Longitude  string
	Vibration1 string
	Vibration2 string
	Speed      string
}

// Validate checks that the required dataset paths are set.
func (p RidePaths) Validate() error {
	switch {
	case p.Latitude == "":
		return eris.New("ingest: latitude dataset path is required")
	case p.Longitude == "":
		return eris.New("ingest: longitude dataset path is required")
	case p.Vibration1 == "":
		return eris.New("ingest: vibration1 dataset path is required")
	case p.Vibration2 == "":
		return eris.New("ingest: vibration2 dataset path is required")
	}
	return nil
}

// ReadColumn reads a headerless single-column CSV of float64 samples, the
// raw format the survey logger writes. Blank and non-numeric cells decode
// as NaN so row indexes stay aligned across columns; it is the caller's job
// to reject non-finite values before they reach the labeler.
func ReadColumn(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	var samples []float64
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: read %s", path)
		}
		if len(record) == 0 {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(record[0]), 64)
		if err != nil {
			v = nan
		}
		samples = append(samples, v)
	}
	return samples, nil
}

// MergeTrack zips latitude and longitude samples by row index into ordered
// track points. The shorter column truncates the pairing. Pairs with a
// non-finite member are dropped — the labeler assumes finite coordinates —
// but surviving points keep their original row index.
func MergeTrack(lats, lons []float64) []model.TrackPoint {
	n := len(lats)
	if len(lons) < n {
		n = len(lons)
	}

	points := make([]model.TrackPoint, 0, n)
	dropped := 0
	for i := 0; i < n; i++ {
		if !finite(lats[i]) || !finite(lons[i]) {
			dropped++
			continue
		}
		points = append(points, model.TrackPoint{Index: i, Latitude: lats[i], Longitude: lons[i]})
	}
	if dropped > 0 {
		zap.L().Warn("ingest: dropped track points with invalid coordinates", zap.Int("dropped", dropped))
	}
	return points
}

// MergeChannels zips two vibration columns into a two-channel series,
// truncating to the shorter column.
func MergeChannels(a, b []float64) [][2]float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	series := make([][2]float64, n)
	for i := 0; i < n; i++ {
		series[i] = [2]float64{a[i], b[i]}
	}
	return series
}

// Ride holds a fully loaded ride recording.
type Ride struct {
	Points    []model.TrackPoint
	Vibration [][2]float64
	Speed     []float64
}

// LoadRide reads all ride datasets and merges them. Speed is loaded only
// when a path is configured.
func LoadRide(paths RidePaths) (*Ride, error) {
	if err := paths.Validate(); err != nil {
		return nil, err
	}

	lats, err := ReadColumn(paths.Latitude)
	if err != nil {
		return nil, err
	}
	lons, err := ReadColumn(paths.Longitude)
	if err != nil {
		return nil, err
	}
	vib1, err := ReadColumn(paths.Vibration1)
	if err != nil {
		return nil, err
	}
	vib2, err := ReadColumn(paths.Vibration2)
	if err != nil {
		return nil, err
	}

	ride := &Ride{
		Points:    MergeTrack(lats, lons),
		Vibration: MergeChannels(vib1, vib2),
	}

	if paths.Speed != "" {
		speed, err := ReadColumn(paths.Speed)
		if err != nil {
			return nil, err
		}
		ride.Speed = speed
	}

	zap.L().Info("ingest: loaded ride recording",
		zap.Int("track_points", len(ride.Points)),
		zap.Int("vibration_samples", len(ride.Vibration)),
		zap.Bool("has_speed", ride.Speed != nil),
	)
	return ride, nil
}
