// Package history persists evaluated samples and emergency events to a
// local SQLite database for post-hoc analysis. Samples are subject to a
// retention window; emergency events are never evicted.
package history
