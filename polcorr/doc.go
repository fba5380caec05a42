// Package polcorr removes the polarization signal from raw top-of-atmosphere
// reflectances before they enter the fit.
//
// A second trained network predicts one factor per band from the viewing
// geometry, the raw reflectances and the sun-normalized irradiance. The
// Corrector holds no per-pixel state.
package polcorr
