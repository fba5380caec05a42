// SPDX-License-Identifier: MIT
package nn_test

import (
	"fmt"
	"strings"

	"github.com/katalvlaran/oceanfit/nn"
)

// ExampleReadText loads a one-neuron network from the text encoding and
// evaluates it at the bottom of its input range.
func ExampleReadText() {
	src := `
planes 1 1
input_min 0
input_max 2
output_min 0
output_max 2
bias 0 0
weights 0
1
`
	m, err := nn.ReadText(strings.NewReader(src), nn.WithExactSigmoid())
	if err != nil {
		fmt.Println("error:", err)

		return
	}
	out, jac, _ := m.EvaluateWithJacobian([]float64{0})
	d, _ := jac.At(0, 0)
	fmt.Printf("out=%.3f d=%.3f\n", out[0], d)
	// Output:
	// out=1.000 d=0.250
}
