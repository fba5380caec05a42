// Package forward adapts a trained network into a forward model of the fitted
// parameters only. The remaining network inputs (viewing and illumination
// geometry) are fixed per pixel through SetFixedInputs, and every evaluation
// first projects the parameters into the network's training domain.
package forward
