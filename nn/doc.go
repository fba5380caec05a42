// Package nn evaluates trained feed-forward networks used as forward models
// and correction models by the retrieval engine.
//
// A network is described by a Spec (plane sizes, weights, biases and the
// min/max ranges used to normalize inputs and de-normalize outputs) read from a
// text or JSON weight stream. NewModel turns a Spec into an immutable Model that
// many goroutines may evaluate concurrently.
//
//	m, err := nn.LoadFile("forward.net")
//	out, jac, err := m.EvaluateWithJacobian(in) // jac is K×N, analytic
//
// Hidden and output planes use the logistic activation, evaluated through an
// interpolated lookup table (AlphaTable) unless WithExactSigmoid is given.
//
// OutputFloor and InputFloor are decorators over any Evaluator that clip
// outputs or selected inputs to a floor; they can be stacked.
package nn
