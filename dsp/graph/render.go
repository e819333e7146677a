package graph

import (
	"github.com/cwbudde/algo-audiograph/dsp/buffer"
)

// Render pulls one block through the graph and writes it interleaved to
// out, which must hold FramesPerBlock frames of the device's output
// channels. A stopped context, or an out of the wrong size, yields silence.
// Render is the device render callback; it holds the context lock for the
// whole block.
func (c *Context) Render(out []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	root := c.nodeLocked(c.root)
	if !c.enabled || root == nil || !root.initialized {
		clear(out)
		return
	}
	fpb := c.FramesPerBlock()
	if fpb <= 0 || len(out) == 0 || len(out)%fpb != 0 {
		clear(out)
		c.dropped.Add(1)
		return
	}

	c.block++
	buf := c.pullLocked(root)
	for _, id := range c.autoPulled {
		if n := c.nodeLocked(id); n != nil && n.initialized {
			c.pullLocked(n)
		}
	}

	channels := len(out) / fpb
	if channels != buf.NumChannels() || buffer.InterleaveTo(out, buf) != nil {
		interleaveMapped(out, channels, buf)
	}
	c.processed.Add(uint64(fpb))
}

// pullLocked renders n at most once per block: its input is assembled from
// its sources, then its Processor runs if the node is enabled.
func (c *Context) pullLocked(n *Node) *buffer.Buffer {
	buf := n.buf
	if n.rendered == c.block {
		return buf
	}
	n.rendered = c.block

	switch {
	case n.role.Has(RoleMixer):
		buf.Zero()
		for _, id := range n.sources {
			if src := c.liveSourceLocked(id); src != nil {
				mixInto(buf, c.pullLocked(src), true)
			}
		}
	default:
		if src := c.liveSourceLocked(c.firstSourceID(n)); src != nil {
			mixInto(buf, c.pullLocked(src), false)
		} else {
			buf.Zero()
		}
	}

	if n.enabled {
		n.proc.Process(buf)
	}
	return buf
}

func (c *Context) firstSourceID(n *Node) ID {
	if len(n.sources) == 0 {
		return NoNode
	}
	return n.sources[0]
}

func (c *Context) liveSourceLocked(id ID) *Node {
	n := c.nodeLocked(id)
	if n == nil || !n.initialized {
		return nil
	}
	return n
}

// mixInto copies or adds src into dst, mapping channels: equal counts map
// one to one, mono is broadcast, a mono destination takes the average and
// any other combination maps the common channels and leaves the rest
// silent.
func mixInto(dst, src *buffer.Buffer, add bool) {
	dc, sc := dst.NumChannels(), src.NumChannels()
	frames := min(dst.NumFrames(), src.NumFrames())

	switch {
	case dc == sc:
		for ch := range dc {
			copyOrAdd(dst.Channel(ch)[:frames], src.Channel(ch)[:frames], add)
		}
	case sc == 1:
		in := src.Channel(0)[:frames]
		for ch := range dc {
			copyOrAdd(dst.Channel(ch)[:frames], in, add)
		}
	case dc == 1:
		out := dst.Channel(0)[:frames]
		if !add {
			clear(out)
		}
		scale := 1 / float32(sc)
		for ch := range sc {
			for i, v := range src.Channel(ch)[:frames] {
				out[i] += v * scale
			}
		}
	default:
		common := min(dc, sc)
		for ch := range common {
			copyOrAdd(dst.Channel(ch)[:frames], src.Channel(ch)[:frames], add)
		}
		if !add {
			for ch := common; ch < dc; ch++ {
				clear(dst.Channel(ch))
			}
		}
	}
	if !add && frames < dst.NumFrames() {
		dst.ZeroFrames(frames, dst.NumFrames())
	}
}

func copyOrAdd(dst, src []float32, add bool) {
	if !add {
		copy(dst, src)
		return
	}
	for i, v := range src {
		dst[i] += v
	}
}

// interleaveMapped writes a planar buffer into an interleaved slice with a
// different channel count. Mono is broadcast; otherwise missing channels
// are silent and surplus channels are dropped.
func interleaveMapped(out []float32, channels int, buf *buffer.Buffer) {
	frames := len(out) / channels
	have := buf.NumChannels()
	for ch := range channels {
		if have == 1 {
			data := buf.Channel(0)
			for i := range frames {
				out[i*channels+ch] = data[i]
			}
			continue
		}
		if ch >= have {
			for i := range frames {
				out[i*channels+ch] = 0
			}
			continue
		}
		data := buf.Channel(ch)
		for i := range frames {
			out[i*channels+ch] = data[i]
		}
	}
}
