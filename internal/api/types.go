package api

// HealthResponse is the GET /api/v1/health body.
type HealthResponse struct {
	Status          string `json:"status"`
	MonitorStatus   string `json:"monitor_status"`
	ControllerState string `json:"controller_state"`
}

// WindowResponse is the GET /api/v1/window body.
type WindowResponse struct {
	Count    int           `json:"count"`
	Capacity int           `json:"capacity"`
	Samples  []sampleEntry `json:"samples"`
}

type sampleEntry struct {
	Sequence  uint64  `json:"sequence"`
	Kappa     float64 `json:"kappa"`
	Epsilon   float64 `json:"epsilon"`
	Timestamp string  `json:"timestamp"`
}

// RearmResponse is the POST /api/v1/rearm body.
type RearmResponse struct {
	Rearmed bool   `json:"rearmed"`
	State   string `json:"state"`
}

type errorResponse struct {
	Error string `json:"error"`
}
