// Command audiograph renders a generator through a gain stage and a spectrum
// tap, either offline into a WAV file or live on an audio backend.
//
// Usage:
//
//	audiograph [flags]
//
// Examples:
//
//	audiograph -freq 220 -gain 0.5 -seconds 2 -out tone.wav
//	audiograph -wave triangle -freq 110 -backend portaudio
//	audiograph -freq 440 -spectrum -out /dev/null
//	audiograph -wave noise -filter bandpass -cutoff 800 -q 4 -echo 0.3
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-audiograph/audiofile"
	"github.com/cwbudde/algo-audiograph/device"
	"github.com/cwbudde/algo-audiograph/device/oto"
	"github.com/cwbudde/algo-audiograph/device/portaudio"
	"github.com/cwbudde/algo-audiograph/dsp/biquad"
	"github.com/cwbudde/algo-audiograph/dsp/graph"
	"github.com/cwbudde/algo-audiograph/dsp/spectrum"
)

type options struct {
	wave     string
	freq     float64
	gain     float64
	seconds  float64
	rate     int
	block    int
	channels int
	out      string
	backend  string
	spectrum bool
	fftSize  int
	filter   string
	cutoff   float64
	q        float64
	echo     float64
}

func main() {
	var o options
	flag.StringVar(&o.wave, "wave", "sine", "generator: sine, phasor, triangle or noise")
	flag.Float64Var(&o.freq, "freq", 220, "generator frequency in Hz")
	flag.Float64Var(&o.gain, "gain", 0.5, "linear output gain")
	flag.Float64Var(&o.seconds, "seconds", 2, "duration in seconds")
	flag.IntVar(&o.rate, "rate", 44100, "sample rate in Hz")
	flag.IntVar(&o.block, "block", 512, "frames per block")
	flag.IntVar(&o.channels, "channels", 2, "output channels")
	flag.StringVar(&o.out, "out", "tone.wav", "WAV file written in offline mode")
	flag.StringVar(&o.backend, "backend", "", "play live on portaudio or oto instead of rendering offline")
	flag.BoolVar(&o.spectrum, "spectrum", false, "print the strongest spectrum bin at the end")
	flag.IntVar(&o.fftSize, "fft", graph.DefaultFFTSize, "spectrum FFT size")
	flag.StringVar(&o.filter, "filter", "", "insert a biquad: lowpass, highpass, bandpass, notch, allpass, peak, lowshelf or highshelf")
	flag.Float64Var(&o.cutoff, "cutoff", 1000, "filter frequency in Hz")
	flag.Float64Var(&o.q, "q", biquad.DefaultQ, "filter quality factor")
	flag.Float64Var(&o.echo, "echo", 0, "echo delay in seconds; 0 disables the echo")
	level := flag.String("log-level", "warning", "log level (debug, info, warning, error)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: audiograph [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Renders generator -> gain -> spectrum tap -> output.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	log := logrus.New()
	lvl, err := logrus.ParseLevel(*level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	log.SetLevel(lvl)

	if err := run(o, log); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(o options, log *logrus.Logger) error {
	dev, manual, err := openDevice(o, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := dev.Close(); err != nil {
			log.WithError(err).Warn("closing device")
		}
	}()

	ctx, err := graph.New(graph.WithDevice(dev), graph.WithLogger(log))
	if err != nil {
		return err
	}
	defer func() { _ = ctx.Close() }()

	tap, err := build(ctx, o)
	if err != nil {
		return err
	}
	if err := ctx.Start(); err != nil {
		return err
	}

	if manual != nil {
		err = renderOffline(manual, o)
	} else {
		err = playLive(o.seconds)
	}
	if err != nil {
		return err
	}
	ctx.Stop()

	if clip, ok := ctx.Root().LastClip(); ok {
		log.WithField("frame", clip).Warn("output clipped")
	}
	if o.spectrum {
		printPeak(tap)
	}
	return nil
}

func openDevice(o options, log *logrus.Logger) (device.Device, *device.Manual, error) {
	switch o.backend {
	case "":
		m, err := device.NewManual(device.Descriptor{
			Name:              "offline",
			SampleRate:        float64(o.rate),
			NumOutputChannels: o.channels,
			FramesPerBlock:    o.block,
		})
		return m, m, err
	case "portaudio":
		d, err := portaudio.Open(
			portaudio.WithSampleRate(float64(o.rate)),
			portaudio.WithFramesPerBlock(o.block),
			portaudio.WithChannels(0, o.channels),
			portaudio.WithLogger(log),
		)
		return d, nil, err
	case "oto":
		d, err := oto.Open(
			oto.WithSampleRate(o.rate),
			oto.WithFramesPerBlock(o.block),
			oto.WithChannels(o.channels),
			oto.WithLogger(log),
		)
		return d, nil, err
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", o.backend)
	}
}

func build(ctx *graph.Context, o options) (*graph.SpectrumTap, error) {
	var src interface {
		graph.Handle
		Start() error
	}
	freq := float32(o.freq)
	switch o.wave {
	case "sine":
		src = graph.NewSine(ctx, freq)
	case "phasor":
		src = graph.NewPhasor(ctx, freq)
	case "triangle":
		src = graph.NewTriangle(ctx, freq)
	case "noise":
		src = graph.NewNoise(ctx, time.Now().UnixNano())
	default:
		return nil, fmt.Errorf("unknown wave %q", o.wave)
	}

	chain := []graph.Handle{src, graph.NewGain(ctx, float32(o.gain))}
	if o.filter != "" {
		kind, err := biquad.ParseKind(o.filter)
		if err != nil {
			return nil, err
		}
		f := graph.NewFilter(ctx, kind, float32(o.cutoff))
		f.Q().SetValue(float32(o.q))
		chain = append(chain, f)
	}
	if o.echo > 0 {
		chain = append(chain, graph.NewEcho(ctx, float32(o.echo), o.echo))
	}
	tap, err := graph.NewSpectrumTap(ctx, o.fftSize)
	if err != nil {
		return nil, err
	}
	chain = append(chain, tap, ctx.Root())
	if err := ctx.Chain(chain...); err != nil {
		return nil, err
	}
	ctx.Root().EnableClipDetection(true, 1)
	return tap, src.Start()
}

func renderOffline(dev *device.Manual, o options) error {
	target, err := audiofile.CreateWAV(o.out, o.rate, o.channels, 16)
	if err != nil {
		return err
	}
	rec, err := audiofile.NewRecorder(dev, target)
	if err != nil {
		_ = target.Close()
		return err
	}
	if err := rec.RecordSeconds(o.seconds); err != nil {
		_ = target.Close()
		return err
	}
	if err := target.Close(); err != nil {
		return err
	}
	fmt.Printf("wrote %d frames to %s\n", rec.NumFrames(), o.out)
	return nil
}

func playLive(seconds float64) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	timer := time.NewTimer(time.Duration(seconds * float64(time.Second)))
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
		return ctx.Err()
	}
}

func printPeak(tap *graph.SpectrumTap) {
	peak, db := spectrum.PeakBin(tap.MagSpectrumDB())
	if peak < 0 {
		return
	}
	fmt.Printf("peak bin %d (%.1f Hz) at %.1f dB\n", peak, tap.BinFrequency(peak), db)
}
