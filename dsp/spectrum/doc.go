// Package spectrum provides the magnitude-spectrum analysis behind the
// graph's spectrum tap and small spectrum-domain helpers.
//
// Analyzer keeps the last block of input and computes a windowed forward
// FFT (algo-fft) on demand, emitting FFTSize/2 magnitude bins scaled by
// 1/FFTSize.
package spectrum
