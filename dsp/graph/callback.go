package graph

import "github.com/cwbudde/algo-audiograph/dsp/buffer"

// CallbackFunc renders one block in place. It runs on the render goroutine
// with the context lock held.
type CallbackFunc func(buf *buffer.Buffer)

// Callback is a node whose rendering is a user function. As a source the
// function fills a silent block; as an effect it transforms its input.
type Callback struct {
	*Node
	fn CallbackFunc
}

// NewCallback returns a source node driven by fn.
func NewCallback(ctx *Context, fn CallbackFunc, opts ...NodeOption) *Callback {
	return newCallback(ctx, RoleSource, fn, opts)
}

// NewCallbackEffect returns an effect node driven by fn.
func NewCallbackEffect(ctx *Context, fn CallbackFunc, opts ...NodeOption) *Callback {
	return newCallback(ctx, RoleEffect, fn, opts)
}

func newCallback(ctx *Context, role Role, fn CallbackFunc, opts []NodeOption) *Callback {
	c := &Callback{fn: fn}
	c.Node = ctx.MakeNode(c, role, opts...)
	return c
}

// Process implements Processor.
func (c *Callback) Process(buf *buffer.Buffer) {
	if c.fn != nil {
		c.fn(buf)
	}
}
