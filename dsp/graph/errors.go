package graph

import (
	"fmt"

	"github.com/cwbudde/algo-audiograph/dsp/core"
)

var (
	// ErrBusOccupied is returned when connecting into an input bus that
	// already has a source. Disconnect the existing source first.
	ErrBusOccupied = fmt.Errorf("%w: bus already in use", core.ErrConfiguration)

	// ErrCycle is returned when a connection would make a node its own
	// source.
	ErrCycle = fmt.Errorf("%w: connection would create a cycle", core.ErrConfiguration)

	// ErrForeignNode is returned when nodes from different contexts are
	// connected, or a released node is used.
	ErrForeignNode = fmt.Errorf("%w: node does not belong to this context", core.ErrConfiguration)
)
