// Package metric defines the Sample data type and the Provider capability
// contract shared by every metric source. Providers return raw floats; the
// monitor loop owns clamping, timestamping, and sequence assignment.
package metric
