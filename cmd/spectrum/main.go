// Command spectrum plays a WAV file through a render graph offline and
// prints the strongest bins of its average magnitude spectrum.
//
// Usage:
//
//	spectrum [flags] file.wav
//	spectrum -windows
//
// Examples:
//
//	spectrum -fft 2048 -top 8 voice.wav
//	spectrum -window hann -rate 48000 drums.wav
package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-audiograph/audiofile"
	"github.com/cwbudde/algo-audiograph/audiofile/samplerate"
	"github.com/cwbudde/algo-audiograph/device"
	"github.com/cwbudde/algo-audiograph/dsp/graph"
	"github.com/cwbudde/algo-audiograph/dsp/spectrum"
	"github.com/cwbudde/algo-audiograph/dsp/window"
)

func main() {
	fftSize := flag.Int("fft", 2048, "FFT size (rounded up to a power of two)")
	top := flag.Int("top", 8, "number of bins to print")
	windowName := flag.String("window", "blackman", "analysis window")
	rate := flag.Int("rate", 0, "render sample rate; 0 keeps the file's rate")
	windows := flag.Bool("windows", false, "list analysis windows and their properties")
	level := flag.String("log-level", "warning", "log level (debug, info, warning, error)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: spectrum [flags] file.wav\n\n")
		fmt.Fprintf(os.Stderr, "Prints the strongest bins of a WAV file's average spectrum.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *windows {
		printWindows(*fftSize)
		return
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	log := logrus.New()
	lvl, err := logrus.ParseLevel(*level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	log.SetLevel(lvl)

	win, err := window.Parse(*windowName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v (use -windows to see available)\n", err)
		os.Exit(2)
	}

	avg, tap, err := analyze(flag.Arg(0), *fftSize, *rate, win, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	printTop(avg, tap, *top)
}

// analyze renders path through FilePlayer -> SpectrumTap -> LineOut and
// returns the magnitude spectrum averaged over all blocks.
func analyze(path string, fftSize, rate int, win window.Type, log *logrus.Logger) ([]float64, *graph.SpectrumTap, error) {
	src, err := audiofile.OpenWAV(path,
		audiofile.WithResampler(samplerate.Factory()),
		audiofile.WithLogger(log),
	)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = src.Close() }()

	sampleRate := src.SampleRate()
	if rate > 0 {
		sampleRate = float64(rate)
	}
	dev, err := device.NewManual(device.Descriptor{
		Name:              "offline",
		SampleRate:        sampleRate,
		NumOutputChannels: src.NumChannels(),
		FramesPerBlock:    max(1, fftSize),
	})
	if err != nil {
		return nil, nil, err
	}

	ctx, err := graph.New(graph.WithDevice(dev), graph.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = ctx.Close() }()

	player := graph.NewFilePlayer(ctx, src)
	player.SetAsync(false)
	tap, err := graph.NewSpectrumTap(ctx, fftSize)
	if err != nil {
		return nil, nil, err
	}
	tap.SetWindow(win)
	if err := ctx.Chain(player, tap, ctx.Root()); err != nil {
		return nil, nil, err
	}
	if err := ctx.Start(); err != nil {
		return nil, nil, err
	}
	if err := player.Start(); err != nil {
		return nil, nil, err
	}

	var avg spectrum.Average
	for player.IsEnabled() {
		dev.RenderBlock()
		avg.Add(tap.MagSpectrum())
	}
	if err := player.Err(); err != nil {
		return nil, nil, err
	}
	mean := avg.Mean()
	if mean == nil {
		mean = make([]float64, tap.NumBins())
	}
	log.WithFields(logrus.Fields{
		"blocks":      avg.Count(),
		"sample_rate": sampleRate,
		"fft":         tap.FFTSize(),
	}).Info("analysis done")
	return mean, tap, nil
}

func printTop(avg []float64, tap *graph.SpectrumTap, top int) {
	bins := spectrum.TopBins(avg, top)
	db := spectrum.ToDecibels(append([]float64(nil), avg...))

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Bin\tFrequency [Hz]\tMagnitude [dB]\n")
	fmt.Fprintf(tw, "---\t--------------\t--------------\n")
	for _, k := range bins {
		fmt.Fprintf(tw, "%d\t%.1f\t%.2f\n", k, tap.BinFrequency(k), db[k])
	}
	if err := tw.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to flush output: %v\n", err)
	}
}

func printWindows(size int) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Window\tSize\tCoherent Gain\tENBW [bins]\n")
	fmt.Fprintf(tw, "------\t----\t-------------\t-----------\n")
	for _, t := range window.Types() {
		coeffs := window.Generate(t, size, window.WithPeriodic())
		gain, err := window.CoherentGain(coeffs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %s: %v\n", t, err)
			continue
		}
		enbw, err := window.EquivalentNoiseBandwidth(coeffs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %s: %v\n", t, err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%.4f\t%.4f\n", t, size, gain, enbw)
	}
	if err := tw.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to flush output: %v\n", err)
	}
}
