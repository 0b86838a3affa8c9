package eyeimage

import "math/rand"

// Shift copies img into a zero-filled output of the same shape, offset by
// (dx, dy). Pixels shifted out of the frame are dropped; pixels shifted in
// from outside are black. Shift(img, 0, 0) is the identity.
func Shift(img *Image, dx, dy int) *Image {
	out := &Image{
		Width:  img.Width,
		Height: img.Height,
		Pix:    make([]float32, len(img.Pix)),
	}

	srcX, dstX, spanX := shiftRange(img.Width, dx)
	srcY, dstY, spanY := shiftRange(img.Height, dy)
	if spanX <= 0 || spanY <= 0 {
		return out
	}

	row := img.Width * 3
	for y := 0; y < spanY; y++ {
		srcOff := (srcY+y)*row + srcX*3
		dstOff := (dstY+y)*row + dstX*3
		copy(out.Pix[dstOff:dstOff+spanX*3], img.Pix[srcOff:srcOff+spanX*3])
	}
	return out
}

func shiftRange(extent, offset int) (src, dst, span int) {
	if offset >= 0 {
		return 0, offset, extent - offset
	}
	return -offset, 0, extent + offset
}

// Jitter applies a random spatial offset with dx, dy drawn independently and
// uniformly from [-maxOffset, maxOffset] inclusive. It is drawn fresh per
// image per training step; results are never cached, so every epoch sees a
// differently shifted copy. Training only — inference and relabeling use the
// unshifted frame.
func Jitter(img *Image, maxOffset int) *Image {
	dx := rand.Intn(2*maxOffset+1) - maxOffset
	dy := rand.Intn(2*maxOffset+1) - maxOffset
	return Shift(img, dx, dy)
}
