// Package relabel runs a trained "teacher" model over a corpus slice and
// turns its raw predictions into bounded pseudo-labels for the next training
// generation.
package relabel

import (
	"fmt"

	"github.com/irislab/gazetrain/internal/batch"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/sbwhitecap/tqdm"
	"github.com/sbwhitecap/tqdm/iterators"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anynet/anysgd"
)

// Config controls the percentile rescale. The ceiling defaults to 0.75
// rather than 1.0: distillation targets deliberately reserve headroom above
// the teacher's confident range.
type Config struct {
	LowPct  float64
	HighPct float64
	Ceiling float64
}

// DefaultConfig returns the standard 5th/95th percentile map onto [0, 0.75].
func DefaultConfig() Config {
	return Config{LowPct: 5, HighPct: 95, Ceiling: 0.75}
}

// DegeneratePredictionError means the teacher's prediction distribution
// collapsed (p-low == p-high), so the linear rescale is undefined. The
// relabeling pass must abort rather than emit NaN or Inf labels.
type DegeneratePredictionError struct {
	Low  float64
	High float64
}

func (e *DegeneratePredictionError) Error() string {
	return fmt.Sprintf("degenerate teacher predictions: low and high percentiles are both %v", e.Low)
}

// Predict runs the teacher over every sample of the stream, in key order,
// and returns the first output component per sample. The stream must be
// non-cyclic and must not augment: pseudo-labels come from the frames as
// stored.
func Predict(net anynet.Layer, st *batch.Stream) ([]float64, error) {
	if st.Cyclic {
		return nil, errors.New("relabel: stream must not be cyclic")
	}
	if f, ok := st.Fetcher.(*batch.Fetcher); ok && f.Augment {
		return nil, errors.New("relabel: stream must not augment")
	}

	st.Reset()
	preds := make([]float64, 0, st.Samples.Len())
	var streamErr error
	err := tqdm.With(iterators.Interval(0, st.Batches()), "relabeling", func(interface{}) (brk bool) {
		b, err := st.Next()
		if err != nil {
			streamErr = err
			return true
		}
		out := net.Apply(b.Inputs, b.Num).Output().Data().([]float32)
		dim := len(out) / b.Num
		for i := 0; i < b.Num; i++ {
			preds = append(preds, float64(out[i*dim]))
		}
		return false
	})
	if streamErr != nil {
		return nil, streamErr
	}
	if err != nil {
		return nil, errors.Wrapf(err, "relabel predictions")
	}
	return preds, nil
}

// Rescale maps predictions linearly so that the LowPct percentile lands on 0
// and the HighPct percentile on the ceiling, then clips to [0, ceiling].
// Applying Rescale to its own output is the identity.
func Rescale(preds []float64, cfg Config) ([]float64, error) {
	if len(preds) == 0 {
		return nil, errors.New("rescale: no predictions")
	}
	data := stats.Float64Data(preds)
	lo, err := stats.Percentile(data, cfg.LowPct)
	if err != nil {
		return nil, errors.Wrapf(err, "percentile %v", cfg.LowPct)
	}
	hi, err := stats.Percentile(data, cfg.HighPct)
	if err != nil {
		return nil, errors.Wrapf(err, "percentile %v", cfg.HighPct)
	}
	if hi == lo {
		return nil, &DegeneratePredictionError{Low: lo, High: hi}
	}

	out := make([]float64, len(preds))
	for i, p := range preds {
		v := (p - lo) / (hi - lo) * cfg.Ceiling
		if v < 0 {
			v = 0
		} else if v > cfg.Ceiling {
			v = cfg.Ceiling
		}
		out[i] = v
	}
	return out, nil
}

// Relabel produces the next generation's training set: streamed teacher
// predictions, percentile-rescaled, paired with the original keys, then
// jointly reshuffled so no ordering artifact of the prediction distribution
// survives into training.
func Relabel(net anynet.Layer, st *batch.Stream, cfg Config) (*batch.KeyList, error) {
	preds, err := Predict(net, st)
	if err != nil {
		return nil, err
	}
	scaled, err := Rescale(preds, cfg)
	if err != nil {
		return nil, err
	}

	labels := make([][]float64, len(scaled))
	for i, v := range scaled {
		labels[i] = []float64{v}
	}
	out := batch.NewKeyList(append([]int64{}, st.Samples.Keys...), labels)
	anysgd.Shuffle(out)
	return out, nil
}
