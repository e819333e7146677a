// Package biquad implements the second-order IIR sections behind the
// graph's Filter node: RBJ cookbook designs and a multichannel Direct Form
// II Transposed filter running on float32 blocks with float64 state.
package biquad
