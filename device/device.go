// Package device defines the contract between the render graph and an audio
// backend: a descriptor of the hardware format, a render callback invoked at
// the hardware cadence, an optional capture callback, and change
// notifications for the device-parameter-change protocol.
package device

import (
	"fmt"

	"github.com/cwbudde/algo-audiograph/dsp/core"
)

// Descriptor describes the stream format a device runs at.
type Descriptor struct {
	Name              string
	SampleRate        float64
	NumInputChannels  int
	NumOutputChannels int
	FramesPerBlock    int
}

// Validate reports whether the descriptor can drive a render graph.
func (d Descriptor) Validate() error {
	if d.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be > 0: %f", core.ErrDevice, d.SampleRate)
	}
	if d.FramesPerBlock <= 0 {
		return fmt.Errorf("%w: frames per block must be > 0: %d", core.ErrDevice, d.FramesPerBlock)
	}
	if d.NumInputChannels < 0 || d.NumOutputChannels < 0 {
		return fmt.Errorf("%w: negative channel count", core.ErrDevice)
	}
	return nil
}

// RenderFunc fills out with one interleaved block of
// FramesPerBlock × NumOutputChannels samples.
type RenderFunc func(out []float32)

// CaptureFunc receives one interleaved block of captured input.
type CaptureFunc func(in []float32)

// Listener is notified around a change of the device format. Between the
// two calls the device does not invoke the render callback.
type Listener interface {
	ParamsWillChange()
	ParamsDidChange()
}

// Device is an audio backend driving a render graph.
type Device interface {
	Descriptor() Descriptor
	SetRenderCallback(fn RenderFunc)
	SetCaptureCallback(fn CaptureFunc)
	Start() error
	Stop() error
	Close() error
	// Subscribe registers l for change notifications and returns a function
	// that removes it.
	Subscribe(l Listener) (unsubscribe func())
}
