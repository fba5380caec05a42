// Package report renders diagnostic plots of a batch inversion.
package report
