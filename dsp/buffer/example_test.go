package buffer_test

import (
	"fmt"

	"github.com/cwbudde/algo-audiograph/dsp/buffer"
)

func ExampleBuffer() {
	b := buffer.New(3, 2)
	copy(b.Channel(0), []float32{1, 2, 3})
	copy(b.Channel(1), []float32{4, 5, 6})

	out := make([]float32, b.Size())
	if err := buffer.InterleaveTo(out, b); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(out)

	_ = b.SetNumFrames(2)
	fmt.Println(b.Channel(1), b.Capacity())

	// Output:
	// [1 4 2 5 3 6]
	// [4 5] 3
}
