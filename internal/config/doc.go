// Package config loads and validates the guard's YAML configuration.
//
// Load applies defaults for absent fields and rejects invalid values at
// startup; thresholds, window size, and cadence are never silently clamped.
// Watch provides fsnotify-based hot-reload, which adjusts the logging level
// only; all monitoring parameters are immutable after construction.
package config
