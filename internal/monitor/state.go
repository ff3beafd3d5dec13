package monitor

// Status describes the monitor loop's lifecycle position.
type Status string

const (
	// StatusInitializing covers startup before the first cycle runs.
	StatusInitializing Status = "INITIALIZING"

	// StatusRunning means the loop is sampling on cadence.
	StatusRunning Status = "RUNNING"

	// StatusShutdown means the controller has triggered. The loop keeps
	// ticking but takes no samples until an external rearm.
	StatusShutdown Status = "SHUTDOWN"
)
