// Package oceanfit retrieves water-quality parameters from per-pixel
// reflectance spectra by inverting a trained forward neural network.
//
// What is in the box?
//
//	A small, allocation-aware retrieval stack:
//		• nn:       evaluation of pre-trained sigmoid networks, with Jacobians
//		• forward:  bounded adapter turning a network into a per-pixel model
//		• lm:       covariance-weighted Levenberg-Marquardt fitter
//		• polcorr:  polarization correction of top-of-atmosphere reflectance
//		• kd:       closed-form KMin / Kd490 from the retrieved IOP triplet
//		• pipeline: per-pixel and concurrent batch inversion with flags
//
// Around the core:
//
//	config/       YAML run descriptions (parameters, covariance, fitter)
//	matrix/       dense row-major matrices and the linear algebra lm needs
//	store/        SQLite sink for batch results
//	report/       chi-square convergence plots
//	cmd/oceanfit/ CLI: CSV pixels in, CSV (and optionally SQLite) out
//
// Data flow for one pixel:
//
//	Ed, TOA ──► polcorr ──► ln R ──► lm ◄──► forward ◄──► nn
//	                                  │
//	                                  └──► exp(p) ──► kd ──► KMin, Kd490
//
//	go install github.com/katalvlaran/oceanfit/cmd/oceanfit@latest
package oceanfit
