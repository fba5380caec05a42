// Package pipeline turns raw pixel reflectances into retrieved water
// constituents.
//
// An Inverter is built once per run from a config.Run, the forward network
// and (optionally) the polarization network. Invert handles a single pixel;
// InvertBatch spreads a slice of pixels over a bounded worker group, one
// lm.Fitter workspace per running task.
//
// Only configuration errors are returned as errors. A pixel that cannot be
// fitted, or whose fit does not converge, is still a Result: check Flags.
package pipeline
