// Package window builds the analysis windows applied by the spectrum tap
// before each FFT.
//
// Every window except Triangle is a cosine sum
// w(x) = a0 - a1·cos(2πx) + a2·cos(4πx) - ...
// evaluated at x = n/N (periodic, for FFT framing) or x = n/(N-1)
// (symmetric). Blackman uses a0 = (1-α)/2, a1 = 1/2, a2 = α/2, so α = 0.16
// gives 0.42, 0.5, 0.08.
package window
