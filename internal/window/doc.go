// Package window provides the rolling sample buffer behind the monitor's
// moving averages and trend reporting. Eviction is strict FIFO; means over an
// empty window are 0 by contract so callers never divide by zero.
package window
