// Package matrix provides the small dense linear-algebra core used by the
// retrieval engine.
//
// The matrix package provides:
//
//   - Dense, a row-major float64 matrix with bounds-checked At/Set and a
//     finite-only numeric policy (NaN/±Inf are rejected on write).
//   - Deterministic kernels: Mul, Transpose, MatVec, LU
//     (Doolittle, no pivoting), SolveLU and Inverse.
//   - Element-wise helpers: AddDiag for the damping shift and ClampVector,
//     which keeps fitted parameters inside a trained network's input domain.
//
// The sizes handled here are tiny (at most a few tens of rows: spectral bands by
// network inputs), so kernels favour reproducibility over blocking or pivoting.
// The Levenberg–Marquardt fitter only ever factors damped normal equations,
// which are symmetric positive definite once λ > 0 and every parameter moves
// the model; a zero pivot surfaces as ErrSingular.
//
// See the package tests for usage patterns.
package matrix
