package core

import "errors"

// Error categories shared by every package of the engine. Concrete errors wrap
// one of these with fmt.Errorf("%w: ...") so callers can match with errors.Is.
var (
	// ErrConfiguration reports an invalid bus index, a channel-count mismatch
	// between connected nodes or a buffer capacity violation.
	ErrConfiguration = errors.New("audio: configuration error")
	// ErrFormat reports a channel count that cannot be resolved through the graph.
	ErrFormat = errors.New("audio: format error")
	// ErrState reports an operation that needs an initialized or enabled node
	// or context.
	ErrState = errors.New("audio: state error")
	// ErrDevice reports a backend that failed to open or configure hardware.
	ErrDevice = errors.New("audio: device error")
	// ErrFile reports a source or target file I/O failure.
	ErrFile = errors.New("audio: file error")
)
