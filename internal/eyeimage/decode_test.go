package eyeimage_test

import (
	"testing"

	"github.com/irislab/gazetrain/internal/corpus/corpustest"
	"github.com/irislab/gazetrain/internal/eyeimage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeShapeAndRange(t *testing.T) {
	uri := corpustest.GrayImageURI(t, 16, 0.4)
	img, err := eyeimage.Decode(uri, 8)
	require.NoError(t, err)

	assert.Equal(t, 8, img.Width)
	assert.Equal(t, 8, img.Height)
	require.Len(t, img.Pix, 8*8*3)
	for _, v := range img.Pix {
		assert.InDelta(t, 0.4, float64(v), 0.01)
	}
}

func TestDecodeUpscales(t *testing.T) {
	uri := corpustest.GrayImageURI(t, 4, 1)
	img, err := eyeimage.Decode(uri, 16)
	require.NoError(t, err)
	require.Len(t, img.Pix, 16*16*3)
	for _, v := range img.Pix {
		assert.Equal(t, float32(1), v)
	}
}

func TestDecodeErrors(t *testing.T) {
	cases := map[string]string{
		"no comma":     "data:image/png;base64",
		"bad base64":   "data:image/png;base64,!!!not-base64!!!",
		"not an image": "data:image/png;base64,aGVsbG8gd29ybGQ=",
	}
	for name, uri := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := eyeimage.Decode(uri, 8)
			require.Error(t, err)
			_, ok := err.(*eyeimage.CodecError)
			assert.True(t, ok, "expected *CodecError, got %T", err)
		})
	}
}

func TestConcat(t *testing.T) {
	left, err := eyeimage.Decode(corpustest.GrayImageURI(t, 4, 0), 4)
	require.NoError(t, err)
	right, err := eyeimage.Decode(corpustest.GrayImageURI(t, 4, 1), 4)
	require.NoError(t, err)

	joined := eyeimage.Concat(left, right)
	assert.Equal(t, 8, joined.Width)
	assert.Equal(t, 4, joined.Height)
	require.Len(t, joined.Pix, 8*4*3)

	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			want := float32(0)
			if x >= 4 {
				want = 1
			}
			p := (y*8 + x) * 3
			assert.Equal(t, want, joined.Pix[p], "pixel (%d, %d)", x, y)
		}
	}
}
