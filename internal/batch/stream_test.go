package batch_test

import (
	"io"
	"testing"

	"github.com/irislab/gazetrain/internal/batch"
	"github.com/irislab/gazetrain/internal/corpus"
	"github.com/irislab/gazetrain/internal/corpus/corpustest"
	"github.com/irislab/gazetrain/internal/eyeimage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unixpickle/anynet/anyff"
)

const testImageSize = 8

func testStore(t *testing.T, n int) *corpus.Store {
	t.Helper()
	var rows []corpustest.Row
	for i := 1; i <= n; i++ {
		level := float64(i) / float64(n+1)
		rows = append(rows, corpustest.Row{
			Key:      int64(i),
			Left:     corpustest.GrayImageURI(t, testImageSize, level),
			Right:    corpustest.GrayImageURI(t, testImageSize, level),
			Type:     "openness",
			Openness: level,
		})
	}
	store, err := corpus.NewStore(corpustest.CreateDB(t, rows))
	require.NoError(t, err)
	return store
}

func keyedList(n int) *batch.KeyList {
	var keys []int64
	var labels [][]float64
	for i := 1; i <= n; i++ {
		keys = append(keys, int64(i))
		labels = append(labels, []float64{float64(i) / 100})
	}
	return batch.NewKeyList(keys, labels)
}

func TestStreamCoversAllKeysOnce(t *testing.T) {
	store := testStore(t, 23)
	kl := keyedList(23)
	st := &batch.Stream{
		Samples:   kl,
		Fetcher:   &batch.Fetcher{Store: store, Eyes: corpus.LeftEye, ImageSize: testImageSize},
		BatchSize: 5,
	}

	assert.Equal(t, 5, st.Batches())

	var total int
	var gotLabels []float32
	for {
		b, err := st.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Len(t, b.Inputs.Output().Data().([]float32), b.Num*testImageSize*testImageSize*3)
		gotLabels = append(gotLabels, b.Outputs.Output().Data().([]float32)...)
		total += b.Num
	}
	assert.Equal(t, 23, total)

	// Labels arrive in key-list order, so positional alignment survived the
	// batching.
	require.Len(t, gotLabels, 23)
	for i, v := range gotLabels {
		assert.InDelta(t, float64(i+1)/100, float64(v), 1e-6)
	}

	// Exhausted streams stay exhausted until reset.
	_, err := st.Next()
	assert.Equal(t, io.EOF, err)
	st.Reset()
	_, err = st.Next()
	assert.NoError(t, err)
}

func TestStreamCyclicWraps(t *testing.T) {
	store := testStore(t, 20)
	st := &batch.Stream{
		Samples:   keyedList(20),
		Fetcher:   &batch.Fetcher{Store: store, Eyes: corpus.LeftEye, ImageSize: testImageSize},
		BatchSize: 5,
		Cyclic:    true,
	}

	first, err := st.Next()
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := st.Next()
		require.NoError(t, err)
	}

	// 4 batches per pass; the 5th call wraps to the start.
	wrapped, err := st.Next()
	require.NoError(t, err)
	assert.Equal(t,
		first.Outputs.Output().Data().([]float32),
		wrapped.Outputs.Output().Data().([]float32))
}

func TestFetcherCombinedWidth(t *testing.T) {
	store := testStore(t, 4)
	f := &batch.Fetcher{Store: store, Eyes: corpus.BothEyes, ImageSize: testImageSize}
	raw, err := f.Fetch(keyedList(4))
	require.NoError(t, err)
	b := raw.(*anyff.Batch)
	assert.Equal(t, 4, b.Num)
	assert.Len(t, b.Inputs.Output().Data().([]float32), 4*2*testImageSize*testImageSize*3)
}

func TestFetcherMissingRow(t *testing.T) {
	store := testStore(t, 10)
	kl := batch.NewKeyList([]int64{3, 99}, [][]float64{{0.1}, {0.2}})
	f := &batch.Fetcher{Store: store, Eyes: corpus.LeftEye, ImageSize: testImageSize}

	_, err := f.Fetch(kl)
	require.Error(t, err)
	bfe, ok := err.(*batch.BatchFetchError)
	require.True(t, ok, "expected *BatchFetchError, got %T", err)
	assert.Equal(t, []int64{99}, bfe.Missing)
}

func TestFetcherBadFrame(t *testing.T) {
	rows := []corpustest.Row{
		{Key: 1, Left: "not a data uri", Type: "openness"},
	}
	store, err := corpus.NewStore(corpustest.CreateDB(t, rows))
	require.NoError(t, err)

	f := &batch.Fetcher{Store: store, Eyes: corpus.LeftEye, ImageSize: testImageSize}
	_, err = f.Fetch(batch.NewKeyList([]int64{1}, [][]float64{{0}}))
	require.Error(t, err)
	_, ok := err.(*eyeimage.CodecError)
	assert.True(t, ok, "expected *CodecError, got %T", err)
}
