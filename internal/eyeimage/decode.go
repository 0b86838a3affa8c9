// Package eyeimage decodes stored eye frames into normalized tensors and
// applies the training-time offset augmentation.
package eyeimage

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	xdraw "golang.org/x/image/draw"
)

// Image is a decoded, normalized eye frame: 3 channels, row-major
// (y, x, channel), every value in [0, 1].
type Image struct {
	Width  int
	Height int
	Pix    []float32
}

// CodecError reports a frame that could not be decoded. The containing batch
// must be aborted; substituting a blank image would corrupt label alignment.
type CodecError struct {
	Reason string
	Err    error
}

func (e *CodecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode frame: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode frame: %s", e.Reason)
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

// Decode converts a data-URI frame (MIME header, comma, base64 payload) into
// a size×size normalized Image. The source is forced to 3 color channels and
// resized with a fixed nearest-neighbor policy. Pure; no side effects.
func Decode(dataURI string, size int) (*Image, error) {
	comma := strings.IndexByte(dataURI, ',')
	if comma < 0 {
		return nil, &CodecError{Reason: "not a data URI"}
	}
	raw, err := base64.StdEncoding.DecodeString(dataURI[comma+1:])
	if err != nil {
		return nil, &CodecError{Reason: "invalid base64 payload", Err: err}
	}
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, &CodecError{Reason: "undecodable image payload", Err: err}
	}

	rgba := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.NearestNeighbor.Scale(rgba, rgba.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	out := &Image{Width: size, Height: size, Pix: make([]float32, size*size*3)}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			o := rgba.PixOffset(x, y)
			p := (y*size + x) * 3
			out.Pix[p] = float32(rgba.Pix[o]) / 255
			out.Pix[p+1] = float32(rgba.Pix[o+1]) / 255
			out.Pix[p+2] = float32(rgba.Pix[o+2]) / 255
		}
	}
	return out, nil
}

// Concat joins a left and right frame along the width axis, producing the
// (H, 2W, 3) input used by combined models. Both images must have the same
// height.
func Concat(left, right *Image) *Image {
	out := &Image{
		Width:  left.Width + right.Width,
		Height: left.Height,
		Pix:    make([]float32, (left.Width+right.Width)*left.Height*3),
	}
	lw := left.Width * 3
	rw := right.Width * 3
	ow := out.Width * 3
	for y := 0; y < out.Height; y++ {
		copy(out.Pix[y*ow:y*ow+lw], left.Pix[y*lw:(y+1)*lw])
		copy(out.Pix[y*ow+lw:(y+1)*ow], right.Pix[y*rw:(y+1)*rw])
	}
	return out
}
