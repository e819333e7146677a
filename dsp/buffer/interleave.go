package buffer

import (
	"fmt"

	"github.com/cwbudde/algo-audiograph/dsp/core"
)

func checkConversion(dst, src *Buffer, dstLayout, srcLayout Layout) error {
	if dst.layout != dstLayout || src.layout != srcLayout {
		return fmt.Errorf("%w: expected %s destination and %s source, got %s and %s",
			core.ErrConfiguration, dstLayout, srcLayout, dst.layout, src.layout)
	}
	if dst.numChannels != src.numChannels || dst.numFrames != src.numFrames {
		return fmt.Errorf("%w: shape mismatch %dx%d != %dx%d",
			core.ErrConfiguration, dst.numFrames, dst.numChannels, src.numFrames, src.numChannels)
	}
	return nil
}

// Interleave writes planar src into interleaved dst. Both buffers must have
// the same frame and channel counts.
func Interleave(dst, src *Buffer) error {
	if err := checkConversion(dst, src, LayoutInterleaved, LayoutPlanar); err != nil {
		return err
	}
	interleave(dst.Data(), src)
	return nil
}

// Deinterleave writes interleaved src into planar dst. Both buffers must have
// the same frame and channel counts.
func Deinterleave(dst, src *Buffer) error {
	if err := checkConversion(dst, src, LayoutPlanar, LayoutInterleaved); err != nil {
		return err
	}
	deinterleave(dst, src.Data())
	return nil
}

// InterleaveTo writes planar src into a raw interleaved slice such as a
// device output block. out must hold exactly Size() samples.
func InterleaveTo(out []float32, src *Buffer) error {
	if src.layout != LayoutPlanar {
		return fmt.Errorf("%w: source must be planar", core.ErrConfiguration)
	}
	if len(out) != src.Size() {
		return fmt.Errorf("%w: output holds %d samples, need %d", core.ErrConfiguration, len(out), src.Size())
	}
	interleave(out, src)
	return nil
}

// DeinterleaveFrom reads a raw interleaved slice into planar dst. in must
// hold exactly Size() samples.
func DeinterleaveFrom(dst *Buffer, in []float32) error {
	if dst.layout != LayoutPlanar {
		return fmt.Errorf("%w: destination must be planar", core.ErrConfiguration)
	}
	if len(in) != dst.Size() {
		return fmt.Errorf("%w: input holds %d samples, need %d", core.ErrConfiguration, len(in), dst.Size())
	}
	deinterleave(dst, in)
	return nil
}

func interleave(out []float32, src *Buffer) {
	channels := src.numChannels
	for ch := 0; ch < channels; ch++ {
		c := src.Channel(ch)
		for i, v := range c {
			out[i*channels+ch] = v
		}
	}
}

func deinterleave(dst *Buffer, in []float32) {
	channels := dst.numChannels
	for ch := 0; ch < channels; ch++ {
		c := dst.Channel(ch)
		for i := range c {
			c[i] = in[i*channels+ch]
		}
	}
}
