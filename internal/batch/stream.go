package batch

import (
	"io"

	"github.com/unixpickle/anynet/anyff"
	"github.com/unixpickle/anynet/anysgd"
)

// Stream walks a KeyList in fixed order, yielding one fetched batch per Next
// call. In the default mode it returns io.EOF after ceil(N/BatchSize)
// batches. In cyclic mode it wraps back to offset 0 and continues
// indefinitely, which is what steps-per-epoch training over very large
// corpora uses instead of bounded dataset passes.
//
// At most one batch of decoded images is alive per Stream at any time.
type Stream struct {
	Samples   *KeyList
	Fetcher   anysgd.Fetcher
	BatchSize int
	Cyclic    bool

	offset int
}

// Batches returns the number of batches in one full pass.
func (s *Stream) Batches() int {
	if s.Samples.Len() == 0 {
		return 0
	}
	return (s.Samples.Len() + s.BatchSize - 1) / s.BatchSize
}

// Next yields the next batch. Batch i always covers the same slice of the
// key/label arrays that positions [i*B, i*B+len) cover, so images and labels
// stay positionally aligned. Exhaustion is reported as io.EOF; fetch
// failures surface as *BatchFetchError (or a decode error) and poison the
// batch, never silently shrink it.
func (s *Stream) Next() (*anyff.Batch, error) {
	n := s.Samples.Len()
	if n == 0 {
		return nil, io.EOF
	}
	if s.offset >= n {
		if !s.Cyclic {
			return nil, io.EOF
		}
		s.offset = 0
	}

	end := s.offset + s.BatchSize
	if end > n {
		end = n
	}
	sub := s.Samples.Slice(s.offset, end)
	s.offset = end

	b, err := s.Fetcher.Fetch(sub)
	if err != nil {
		return nil, err
	}
	return b.(*anyff.Batch), nil
}

// Reset rewinds the stream to the start of the key set.
func (s *Stream) Reset() {
	s.offset = 0
}
