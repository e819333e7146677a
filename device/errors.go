package device

import (
	"fmt"

	"github.com/cwbudde/algo-audiograph/dsp/core"
)

// ErrClosed is returned by operations on a closed device.
var ErrClosed = fmt.Errorf("%w: device closed", core.ErrDevice)
