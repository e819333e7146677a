// Package signal provides the block kernels behind generator nodes and a
// Generator for offline test material.
package signal
