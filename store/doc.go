// Package store persists inversion runs and per-pixel results in SQLite.
package store
