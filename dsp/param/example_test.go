package param_test

import (
	"fmt"

	"github.com/cwbudde/algo-audiograph/dsp/param"
)

func ExampleParam_RampTo() {
	p := param.New(0)
	p.RampTo(1, 1, 0)

	out := make([]float32, 4)
	p.Eval(0, out, 4)

	fmt.Println(out, p.Value())

	// Output:
	// [0 0.25 0.5 0.75] 1
}
