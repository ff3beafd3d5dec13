package provider

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/emergenceguard/emergenceguard/internal/config"
	"github.com/emergenceguard/emergenceguard/internal/metric"
)

// Canonical signal names consumed by the fallback κ/ε math.
const (
	SignalCPULoad          = "cpu_load"
	SignalMemoryUsage      = "memory_usage"
	SignalNetworkIO        = "network_io"
	SignalErrorRate        = "error_rate"
	SignalResponseVariance = "response_variance"
	SignalTokenEntropy     = "token_entropy"
	SignalPatternDeviation = "pattern_deviation"
	SignalRecursionDepth   = "recursion_depth"
)

const signalFetchTimeout = 10 * time.Second

// SignalSource produces the normalized [0,1] environment signals the fallback
// provider combines into κ and ε.
type SignalSource interface {
	Sense(ctx context.Context) (map[string]float64, error)
}

// NewSignalSource builds the source selected by cfg.
func NewSignalSource(cfg config.SignalsConfig) SignalSource {
	if cfg.Source == "prometheus" {
		return &promSource{
			endpoint: cfg.Endpoint,
			metrics:  cfg.Metrics,
			client:   &http.Client{Timeout: signalFetchTimeout},
		}
	}
	return newSyntheticSource(cfg.Seed)
}

// syntheticSource simulates environment signals from a seeded RNG. The seed
// makes runs reproducible; a given seed always yields the same signal
// sequence.
type syntheticSource struct {
	rng *rand.Rand
}

func newSyntheticSource(seed int64) *syntheticSource {
	return &syntheticSource{rng: rand.New(rand.NewSource(seed))}
}

// Sense returns one simulated signal set. Ranges are asymmetric on purpose:
// error rates and pattern deviations stay low in a nominally healthy system,
// so the synthesized κ/ε mostly sit below the warning margin.
func (s *syntheticSource) Sense(_ context.Context) (map[string]float64, error) {
	return map[string]float64{
		SignalCPULoad:          s.rng.Float64(),
		SignalMemoryUsage:      s.rng.Float64(),
		SignalNetworkIO:        s.rng.Float64(),
		SignalErrorRate:        s.rng.Float64() * 0.3,
		SignalResponseVariance: s.rng.Float64(),
		SignalTokenEntropy:     s.rng.Float64(),
		SignalPatternDeviation: s.rng.Float64() * 0.5,
		SignalRecursionDepth:   s.rng.Float64() * 0.8,
	}, nil
}

// promSource derives signals from a Prometheus-format metrics endpoint.
// Each configured signal sums one metric family and normalizes it by the
// configured scale; families absent from the scrape read as 0.
type promSource struct {
	endpoint string
	metrics  map[string]config.SignalMetric
	client   *http.Client
}

func (s *promSource) Sense(ctx context.Context) (map[string]float64, error) {
	mfs, err := fetchMetrics(ctx, s.client, s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("signals: scrape %q: %w", s.endpoint, err)
	}

	out := make(map[string]float64, len(s.metrics))
	for name, sm := range s.metrics {
		scale := sm.Scale
		if scale <= 0 {
			scale = 1
		}
		out[name] = metric.Clamp01(sumFamily(mfs[sm.Family]) / scale)
	}
	return out, nil
}

// fetchMetrics performs an HTTP GET to url and returns parsed metric families.
func fetchMetrics(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseMetrics(resp.Body)
}

// parseMetrics decodes a Prometheus text exposition from r into metric families.
// A partial result with a non-fatal parse warning is still returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// sumFamily adds up all counter, gauge, or untyped values in a MetricFamily.
// Returns 0 if mf is nil (metric not present in the scrape).
func sumFamily(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		switch {
		case m.Counter != nil:
			total += m.Counter.GetValue()
		case m.Gauge != nil:
			total += m.Gauge.GetValue()
		case m.Untyped != nil:
			total += m.Untyped.GetValue()
		}
	}
	return total
}
