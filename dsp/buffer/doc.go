// Package buffer provides the multichannel float32 sample container used by
// every node of the render graph, the explicit planar/interleaved
// conversions between them and a Pool for recycling buffers.
package buffer
