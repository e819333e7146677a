package audiofile

import "github.com/cwbudde/algo-audiograph/dsp/buffer"

// copyFrames copies n frames of the channels dst and src share. Both
// buffers are planar.
func copyFrames(dst *buffer.Buffer, dstOff int, src *buffer.Buffer, srcOff, n int) {
	channels := min(dst.NumChannels(), src.NumChannels())
	for ch := range channels {
		copy(dst.Channel(ch)[dstOff:dstOff+n], src.Channel(ch)[srcOff:srcOff+n])
	}
}

// mapFrames copies n frames from src into dst, converting the channel count:
// mono is broadcast, a mono destination takes the average and otherwise the
// shared channels are copied and the rest zeroed.
func mapFrames(dst *buffer.Buffer, dstOff int, src *buffer.Buffer, srcOff, n int) {
	dc, sc := dst.NumChannels(), src.NumChannels()
	switch {
	case dc == sc:
		copyFrames(dst, dstOff, src, srcOff, n)
	case sc == 1:
		in := src.Channel(0)[srcOff : srcOff+n]
		for ch := range dc {
			copy(dst.Channel(ch)[dstOff:dstOff+n], in)
		}
	case dc == 1:
		out := dst.Channel(0)[dstOff : dstOff+n]
		clear(out)
		for ch := range sc {
			for i, v := range src.Channel(ch)[srcOff : srcOff+n] {
				out[i] += v
			}
		}
		scale := 1 / float32(sc)
		for i := range out {
			out[i] *= scale
		}
	default:
		copyFrames(dst, dstOff, src, srcOff, n)
		for ch := sc; ch < dc; ch++ {
			clear(dst.Channel(ch)[dstOff : dstOff+n])
		}
	}
}
