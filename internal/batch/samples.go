// Package batch streams mini-batches of decoded eye images out of a corpus
// that is far larger than memory. A KeyList holds only row keys and labels;
// images are fetched, decoded, and (optionally) augmented one batch at a
// time, so memory use is O(batch size) regardless of corpus size.
package batch

import (
	"crypto/md5"
	"strconv"

	"github.com/unixpickle/anynet/anysgd"
)

// KeyList is an ordered set of corpus keys with index-aligned label vectors.
// It implements anysgd.SampleList (and anysgd.Hasher for deterministic
// train/test partitioning) without holding any image data.
type KeyList struct {
	Keys   []int64
	Labels [][]float64
}

// NewKeyList pairs keys with their labels. Both slices must have equal
// length.
func NewKeyList(keys []int64, labels [][]float64) *KeyList {
	if len(keys) != len(labels) {
		panic("batch: keys and labels must be aligned")
	}
	return &KeyList{Keys: keys, Labels: labels}
}

// Len returns the number of samples.
func (k *KeyList) Len() int {
	return len(k.Keys)
}

// Swap swaps two samples, keeping keys and labels aligned.
func (k *KeyList) Swap(i, j int) {
	k.Keys[i], k.Keys[j] = k.Keys[j], k.Keys[i]
	k.Labels[i], k.Labels[j] = k.Labels[j], k.Labels[i]
}

// Slice copies a sub-range of the list.
func (k *KeyList) Slice(i, j int) anysgd.SampleList {
	return &KeyList{
		Keys:   append([]int64{}, k.Keys[i:j]...),
		Labels: append([][]float64{}, k.Labels[i:j]...),
	}
}

// Hash returns a digest of the sample's key, so that hash-based splits are
// stable across runs no matter how the corpus was shuffled.
func (k *KeyList) Hash(i int) []byte {
	sum := md5.Sum([]byte(strconv.FormatInt(k.Keys[i], 10)))
	return sum[:]
}

// LabelDim returns the per-sample label width (1 for openness, 2 for gaze).
func (k *KeyList) LabelDim() int {
	if len(k.Labels) == 0 {
		return 0
	}
	return len(k.Labels[0])
}
