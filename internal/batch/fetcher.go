package batch

import (
	"fmt"

	"github.com/irislab/gazetrain/internal/corpus"
	"github.com/irislab/gazetrain/internal/eyeimage"
	"github.com/pkg/errors"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet/anyff"
	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/anyvec/anyvec32"
)

// BatchFetchError reports a batch that could not be materialized because
// rows vanished from the corpus between sampling and fetch. The batch (and
// its task) must fail; partial batches would break positional alignment
// between images and labels.
type BatchFetchError struct {
	Missing []int64
	Err     error
}

func (e *BatchFetchError) Error() string {
	return fmt.Sprintf("fetch batch: %v", e.Err)
}

func (e *BatchFetchError) Unwrap() error {
	return e.Err
}

// Fetcher materializes *anyff.Batch values for KeyList slices. Each Fetch
// call refetches its rows from the corpus (one transient connection),
// decodes the frame(s) the task needs, applies jitter when Augment is set,
// and packs the result in key order.
type Fetcher struct {
	Store     *corpus.Store
	Eyes      corpus.Eyes
	ImageSize int

	// Augment applies the random-offset jitter to every decoded frame.
	// Leave false for inference and relabeling.
	Augment   bool
	MaxOffset int
}

// Fetch implements anysgd.Fetcher. The argument must be a *KeyList.
func (f *Fetcher) Fetch(s anysgd.SampleList) (anysgd.Batch, error) {
	kl, ok := s.(*KeyList)
	if !ok {
		return nil, errors.Errorf("fetch batch: expected *batch.KeyList, got %T", s)
	}
	if kl.Len() == 0 {
		return nil, errors.New("fetch batch: empty batch")
	}

	frames, err := f.Store.FetchFrames(kl.Keys)
	if err != nil {
		if mre, isMissing := err.(*corpus.MissingRowError); isMissing {
			return nil, &BatchFetchError{Missing: mre.Keys, Err: err}
		}
		return nil, errors.Wrapf(err, "fetch batch")
	}

	var inputs []float32
	var outputs []float32
	for i, key := range kl.Keys {
		img, err := f.sampleImage(frames[key])
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, img.Pix...)
		for _, v := range kl.Labels[i] {
			outputs = append(outputs, float32(v))
		}
	}

	return &anyff.Batch{
		Inputs:  anydiff.NewConst(anyvec32.MakeVectorData(inputs)),
		Outputs: anydiff.NewConst(anyvec32.MakeVectorData(outputs)),
		Num:     kl.Len(),
	}, nil
}

func (f *Fetcher) sampleImage(fr corpus.Frames) (*eyeimage.Image, error) {
	switch f.Eyes {
	case corpus.LeftEye:
		return f.decodeOne(fr.Left)
	case corpus.RightEye:
		return f.decodeOne(fr.Right)
	default:
		left, err := f.decodeOne(fr.Left)
		if err != nil {
			return nil, err
		}
		right, err := f.decodeOne(fr.Right)
		if err != nil {
			return nil, err
		}
		return eyeimage.Concat(left, right), nil
	}
}

func (f *Fetcher) decodeOne(frame string) (*eyeimage.Image, error) {
	img, err := eyeimage.Decode(frame, f.ImageSize)
	if err != nil {
		return nil, err
	}
	if f.Augment {
		img = eyeimage.Jitter(img, f.MaxOffset)
	}
	return img, nil
}
