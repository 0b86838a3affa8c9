package relabel_test

import (
	"testing"

	"github.com/irislab/gazetrain/internal/batch"
	"github.com/irislab/gazetrain/internal/corpus"
	"github.com/irislab/gazetrain/internal/corpus/corpustest"
	"github.com/irislab/gazetrain/internal/relabel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet/anyff"
	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/anyvec/anyvec32"
)

// meanLayer predicts the mean of its input components, one value per sample.
type meanLayer struct{}

func (meanLayer) Apply(in anydiff.Res, n int) anydiff.Res {
	data := in.Output().Data().([]float32)
	dim := len(data) / n
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		var sum float32
		for j := 0; j < dim; j++ {
			sum += data[i*dim+j]
		}
		out[i] = sum / float32(dim)
	}
	return anydiff.NewConst(anyvec32.MakeVectorData(out))
}

// labelFetcher packs each sample's label directly as its input vector, so a
// meanLayer "teacher" predicts exactly the label.
type labelFetcher struct{}

func (labelFetcher) Fetch(s anysgd.SampleList) (anysgd.Batch, error) {
	kl := s.(*batch.KeyList)
	var inputs, outputs []float32
	for _, l := range kl.Labels {
		for _, v := range l {
			inputs = append(inputs, float32(v))
			outputs = append(outputs, float32(v))
		}
	}
	return &anyff.Batch{
		Inputs:  anydiff.NewConst(anyvec32.MakeVectorData(inputs)),
		Outputs: anydiff.NewConst(anyvec32.MakeVectorData(outputs)),
		Num:     kl.Len(),
	}, nil
}

func rampList(n int) *batch.KeyList {
	var keys []int64
	var labels [][]float64
	for i := 1; i <= n; i++ {
		keys = append(keys, int64(i))
		labels = append(labels, []float64{float64(i) / float64(n+1)})
	}
	return batch.NewKeyList(keys, labels)
}

func TestPredictKeyOrder(t *testing.T) {
	st := &batch.Stream{Samples: rampList(23), Fetcher: labelFetcher{}, BatchSize: 5}
	preds, err := relabel.Predict(meanLayer{}, st)
	require.NoError(t, err)
	require.Len(t, preds, 23)
	for i, p := range preds {
		assert.InDelta(t, float64(i+1)/24, p, 1e-5)
	}
}

func TestPredictRejectsCyclicStream(t *testing.T) {
	st := &batch.Stream{Samples: rampList(10), Fetcher: labelFetcher{}, BatchSize: 5, Cyclic: true}
	_, err := relabel.Predict(meanLayer{}, st)
	assert.Error(t, err)
}

func TestPredictRejectsAugmentingFetcher(t *testing.T) {
	f := &batch.Fetcher{Augment: true}
	st := &batch.Stream{Samples: rampList(10), Fetcher: f, BatchSize: 5}
	_, err := relabel.Predict(meanLayer{}, st)
	assert.Error(t, err)
}

func TestRescale(t *testing.T) {
	preds := make([]float64, 100)
	for i := range preds {
		preds[i] = float64(i) / 99
	}
	out, err := relabel.Rescale(preds, relabel.DefaultConfig())
	require.NoError(t, err)
	require.Len(t, out, 100)

	for _, v := range out {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 0.75)
	}
	// The 5th/95th percentile points land on the range ends, and everything
	// beyond them clips.
	assert.InDelta(t, 0, out[4], 1e-9)
	assert.InDelta(t, 0.75, out[94], 1e-9)
	assert.Equal(t, 0.0, out[0])
	assert.Equal(t, 0.75, out[99])
	// Strictly increasing between the clip points.
	for i := 5; i <= 94; i++ {
		assert.Greater(t, out[i], out[i-1])
	}
}

func TestRescaleIdempotent(t *testing.T) {
	preds := make([]float64, 100)
	for i := range preds {
		preds[i] = float64(i) / 99
	}
	cfg := relabel.DefaultConfig()
	once, err := relabel.Rescale(preds, cfg)
	require.NoError(t, err)
	twice, err := relabel.Rescale(once, cfg)
	require.NoError(t, err)

	for i := range once {
		assert.InDelta(t, once[i], twice[i], 1e-9)
	}
}

func TestRescaleDegenerate(t *testing.T) {
	preds := make([]float64, 40)
	for i := range preds {
		preds[i] = 0.4
	}
	_, err := relabel.Rescale(preds, relabel.DefaultConfig())
	require.Error(t, err)
	_, ok := err.(*relabel.DegeneratePredictionError)
	assert.True(t, ok, "expected *DegeneratePredictionError, got %T", err)
}

func TestRescaleEmpty(t *testing.T) {
	_, err := relabel.Rescale(nil, relabel.DefaultConfig())
	assert.Error(t, err)
}

func TestRelabelEndToEnd(t *testing.T) {
	const n = 100
	var rows []corpustest.Row
	for i := 1; i <= n; i++ {
		level := float64(i) / float64(n+1)
		rows = append(rows, corpustest.Row{
			Key:      int64(i),
			Left:     corpustest.GrayImageURI(t, 8, level),
			Type:     "openness",
			Openness: level,
		})
	}
	store, err := corpus.NewStore(corpustest.CreateDB(t, rows))
	require.NoError(t, err)

	samples := rampList(n)
	st := &batch.Stream{
		Samples:   samples,
		Fetcher:   &batch.Fetcher{Store: store, Eyes: corpus.LeftEye, ImageSize: 8},
		BatchSize: 16,
	}

	out, err := relabel.Relabel(meanLayer{}, st, relabel.DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, n, out.Len())
	assert.Equal(t, 1, out.LabelDim())

	// Relabeling reshuffles but never loses or invents keys.
	assert.ElementsMatch(t, samples.Keys, out.Keys)

	byKey := make(map[int64]float64, n)
	for i, k := range out.Keys {
		v := out.Labels[i][0]
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 0.75)
		byKey[k] = v
	}
	// The darkest frames clip to 0, the brightest to the ceiling.
	for i := int64(1); i <= 5; i++ {
		assert.InDelta(t, 0, byKey[i], 0.02, "key %d", i)
	}
	for i := int64(n - 4); i <= n; i++ {
		assert.InDelta(t, 0.75, byKey[i], 0.02, "key %d", i)
	}
}
