package monitor

import "time"

// ReportThresholds echoes the active critical bounds.
type ReportThresholds struct {
	Kappa   float64 `json:"kappa"`
	Epsilon float64 `json:"epsilon"`
}

// Report is the point-in-time status document served by the API and pushed
// over the WebSocket hub. Field names are a stable external contract;
// consumers key on them.
type Report struct {
	MonitorStatus   string `json:"monitor_status"`
	ControllerState string `json:"controller_state"`

	// CurrentStatus is the verdict of the most recent accepted sample.
	CurrentStatus  string  `json:"current_status"`
	CurrentKappa   float64 `json:"current_kappa"`
	CurrentEpsilon float64 `json:"current_epsilon"`

	// Rolling means over the sample window.
	AvgKappa10   float64 `json:"avg_kappa_10"`
	AvgEpsilon10 float64 `json:"avg_epsilon_10"`

	// UptimeSamples counts accepted samples; faulted cycles do not count.
	UptimeSamples uint64 `json:"uptime_samples"`

	ProviderKind      string `json:"provider_kind"`
	ProviderFaults    uint64 `json:"provider_faults"`
	PersistenceFaults uint64 `json:"persistence_faults"`

	Thresholds  ReportThresholds `json:"thresholds"`
	GeneratedAt time.Time        `json:"generated_at"`
}
