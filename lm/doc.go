// Package lm implements a Levenberg–Marquardt least-squares fitter for
// models that supply their own Jacobian.
//
// The objective is the covariance-weighted chi-square
//
//	χ²(p) = (y − f(p))ᵀ · Cov⁻¹ · (y − f(p))
//
// where the weight Cov⁻¹ is applied through a Cholesky (or, for a singular
// positive semi-definite covariance, an eigen pseudo-inverse) whitening and is
// never formed explicitly.
//
// Three phases keep the calling order explicit: a Config is fixed per run and
// held by a Fitter; a Model (typically *forward.PixelModel) is bound per pixel;
// the fitter calls Model.ModelAndJacobian once per trial step.
//
// Fit returns an error only for malformed input. Running out of iterations or
// failing to find a downhill step are reported through FitResult.Status.
package lm
