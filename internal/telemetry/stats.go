// Package telemetry turns decay passes into per-tick samples of the
// population's health distribution and writes them to CSV.
package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/MRamiBalles/ZooSimulator/server/internal/engine"
)

// Sample holds the state of the zoo right after one decay pass.
type Sample struct {
	Tick       uint64 `csv:"tick" json:"tick"`
	Generation uint64 `csv:"generation" json:"generation"`
	Forced     bool   `csv:"forced" json:"forced"`

	Alive int `csv:"alive" json:"alive"`
	Dying int `csv:"dying" json:"dying"`
	Dead  int `csv:"dead" json:"dead"`

	// Health distribution over every animal, dead ones included
	HealthMean float64 `csv:"health_mean" json:"health_mean"`
	HealthStd  float64 `csv:"health_std" json:"health_std"`
	HealthP10  float64 `csv:"health_p10" json:"health_p10"`
	HealthP50  float64 `csv:"health_p50" json:"health_p50"`
	HealthP90  float64 `csv:"health_p90" json:"health_p90"`

	LatencyMS float64 `csv:"latency_ms" json:"latency_ms"`
	Ended     bool    `csv:"ended" json:"ended"`
}

// ComputeHealthStats returns the population mean, standard deviation and
// empirical percentiles of values. All zero for an empty slice.
func ComputeHealthStats(values []float64) (mean, std, p10, p50, p90 float64) {
	switch len(values) {
	case 0:
		return 0, 0, 0, 0, 0
	case 1:
		v := values[0]
		return v, 0, v, v, v
	}

	mean, std = stat.PopMeanStdDev(values, nil)

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	p10 = stat.Quantile(0.10, stat.Empirical, sorted, nil)
	p50 = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	p90 = stat.Quantile(0.90, stat.Empirical, sorted, nil)
	return mean, std, p10, p50, p90
}

// SampleFrom summarizes a tick report.
func SampleFrom(r engine.TickReport) Sample {
	mean, std, p10, p50, p90 := ComputeHealthStats(r.Healths)
	return Sample{
		Tick:       r.Tick,
		Generation: r.Generation,
		Forced:     r.Forced,
		Alive:      r.Counts.Alive,
		Dying:      r.Counts.Dying,
		Dead:       r.Counts.Dead,
		HealthMean: mean,
		HealthStd:  std,
		HealthP10:  p10,
		HealthP50:  p50,
		HealthP90:  p90,
		LatencyMS:  float64(r.Latency.Microseconds()) / 1000,
		Ended:      r.Ended,
	}
}

// LogValue implements slog.LogValuer for structured logging.
func (s Sample) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("tick", s.Tick),
		slog.Uint64("generation", s.Generation),
		slog.Bool("forced", s.Forced),
		slog.Int("alive", s.Alive),
		slog.Int("dying", s.Dying),
		slog.Int("dead", s.Dead),
		slog.Float64("health_mean", s.HealthMean),
		slog.Float64("health_p50", s.HealthP50),
	)
}
