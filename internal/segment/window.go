// Package segment windows vibration recordings into fixed-duration segments
// and pairs them with track point labels.
package segment

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/trackside-analytics/railscan-cli/internal/model"
)

// Channel names for the two vibration inputs, in series order.
var channelNames = [2]string{"vibration1", "vibration2"}

// Config controls windowing. The survey logger samples at 500 Hz
// (dt = 0.002 s) and segments default to 10 s, i.e. 5000 samples.
type Config struct {
	SampleInterval float64 // seconds between samples
	WindowSeconds  float64 // window duration in seconds
}

// WindowLen returns the number of samples per window.
func (c Config) WindowLen() int {
	if c.SampleInterval <= 0 {
		return 0
	}
	return int(c.WindowSeconds / c.SampleInterval)
}

// Window slices a two-channel series into fixed-length windows, dropping the
// trailing partial window, and computes per-channel summary stats. When a
// speed series is supplied, each segment also carries the mean speed over
// its sample range (speed truncates like everything else; segments past the
// end of the speed series get none).
func Window(series [][2]float64, speed []float64, cfg Config) ([]model.Segment, error) {
	wl := cfg.WindowLen()
	if wl <= 0 {
		return nil, eris.Errorf("segment: invalid window config (dt=%v, window=%vs)",
			cfg.SampleInterval, cfg.WindowSeconds)
	}

	n := len(series) / wl
	segments := make([]model.Segment, 0, n)
	for i := 0; i < n; i++ {
		start, end := i*wl, (i+1)*wl
		seg := model.Segment{
			Index: i,
			Start: start,
			End:   end,
			Channels: []model.ChannelStats{
				channelStats(channelNames[0], series[start:end], 0),
				channelStats(channelNames[1], series[start:end], 1),
			},
		}
		if len(speed) >= end {
			ms := mean(speed[start:end])
			seg.MeanSpeed = &ms
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// Associate assigns point labels to segments by position: segment i receives
// the label of the track point whose sequence index is i. Points carry their
// original merged-row index, so a row dropped at ingest leaves its segment
// unlabeled instead of shifting every later label. Segments past the label
// sequence stay unlabeled — no wraparound, no interpolation. Extra labels
// are ignored.
func Associate(segments []model.Segment, points []model.LabeledPoint) []model.Segment {
	labels := make(map[int]model.Category, len(points))
	for _, p := range points {
		labels[p.Index] = p.Label
	}

	out := make([]model.Segment, len(segments))
	copy(out, segments)
	for i := range out {
		if label, ok := labels[out[i].Index]; ok {
			out[i].Label = label
			out[i].Labeled = true
		} else {
			out[i].Label = ""
			out[i].Labeled = false
		}
	}
	return out
}

func channelStats(name string, window [][2]float64, ch int) model.ChannelStats {
	var sumsq, peak float64
	for _, s := range window {
		v := s[ch]
		sumsq += v * v
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	rms := 0.0
	if len(window) > 0 {
		rms = math.Sqrt(sumsq / float64(len(window)))
	}
	return model.ChannelStats{Name: name, RMS: rms, Peak: peak}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
