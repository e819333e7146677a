// Package graph is a pull-based audio render graph.
//
// A Context owns an arena of nodes referenced by ID. Each node has a Role
// (source, effect, mixer, tap, output), a negotiated Format and a Processor
// that renders one block in place. The device calls Context.Render once per
// block; the context pulls the root node, which pulls its sources first, so
// every node renders at most once per block in post-order.
//
// Rendering and control share one mutex, taken once per block by Render
// and by every topology or parameter change. Work that must not wait on it,
// such as file reading or device capture, hands samples over through
// lock-free ring buffers.
//
// Nodes that require a native backend get generic sources routed through
// adapter nodes built by AdapterRules; VoiceRule pairs VoiceMixer with
// implicitly inserted Voice nodes.
package graph
