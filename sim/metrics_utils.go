// sim/metrics_utils.go
package sim

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/flock-sim/flock-sim/sim/slab"
)

type IntOrFloat64 interface {
	int | int64 | float64
}

// CalculatePercentile is a util function that calculates the p-th
// percentile of a sorted data list by interpolating between the two
// nearest ranks.
func CalculatePercentile[T IntOrFloat64](data []T, p float64) float64 {
	n := len(data)
	if n == 0 {
		return 0
	}

	rank := p / 100.0 * float64(n-1)
	lowerIdx := int(math.Floor(rank))
	upperIdx := int(math.Ceil(rank))

	if lowerIdx == upperIdx || upperIdx >= n {
		return float64(data[lowerIdx])
	}
	lowerVal := float64(data[lowerIdx])
	upperVal := float64(data[upperIdx])
	return lowerVal + (upperVal-lowerVal)*(rank-float64(lowerIdx))
}

// CalculateMean is a util function that calculates the mean of a data list
func CalculateMean[T IntOrFloat64](numbers []T) float64 {
	if len(numbers) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, number := range numbers {
		sum += float64(number)
	}

	return sum / float64(len(numbers))
}

// RunSummary is the machine-readable end-of-run report.
type RunSummary struct {
	Ticks int `json:"ticks"`

	GroupingMeanMs  float64 `json:"grouping_mean_ms"`
	GroupingP99Ms   float64 `json:"grouping_p99_ms"`
	ForceMeanMs     float64 `json:"force_mean_ms"`
	ForceP99Ms      float64 `json:"force_p99_ms"`
	IntegrateMeanMs float64 `json:"integrate_mean_ms"`
	IntegrateP99Ms  float64 `json:"integrate_p99_ms"`

	MacroGroupsMean float64 `json:"macro_groups_mean"`
	MicroGroupsMean float64 `json:"micro_groups_mean"`
	MacroDropped    int64   `json:"macro_dropped"`
	MicroDropped    int64   `json:"micro_dropped"`

	ContactsSeen    int64 `json:"contacts_seen"`
	ContactsDropped int64 `json:"contacts_dropped"`

	AllocatorChunks    int   `json:"allocator_chunks"`
	AllocatorLiveBytes int64 `json:"allocator_live_bytes"`
	ClassFallbacks     int64 `json:"allocator_class_fallbacks"`
}

// Summary condenses the collected metrics into a RunSummary.
func (m *Metrics) Summary(st slab.Stats) RunSummary {
	return RunSummary{
		Ticks:              m.Ticks,
		GroupingMeanMs:     CalculateMean(m.GroupingSeconds) * 1e3,
		GroupingP99Ms:      percentileMs(m.GroupingSeconds, 99),
		ForceMeanMs:        CalculateMean(m.ForceSeconds) * 1e3,
		ForceP99Ms:         percentileMs(m.ForceSeconds, 99),
		IntegrateMeanMs:    CalculateMean(m.IntegrateSeconds) * 1e3,
		IntegrateP99Ms:     percentileMs(m.IntegrateSeconds, 99),
		MacroGroupsMean:    CalculateMean(m.MacroGroupsPerTick),
		MicroGroupsMean:    CalculateMean(m.MicroGroupsPerTick),
		MacroDropped:       m.MacroDropped,
		MicroDropped:       m.MicroDropped,
		ContactsSeen:       m.ContactsSeen,
		ContactsDropped:    m.ContactsDropped.Load(),
		AllocatorChunks:    st.Chunks,
		AllocatorLiveBytes: st.LiveBytes,
		ClassFallbacks:     st.ClassFallbacks,
	}
}

// percentileMs reads one percentile of per-tick durations in milliseconds.
func percentileMs(seconds []float64, p float64) float64 {
	if len(seconds) == 0 {
		return 0
	}
	sorted := append([]float64(nil), seconds...)
	sort.Float64s(sorted)
	return CalculatePercentile(sorted, p) * 1e3
}

// SaveResults writes the run summary as indented JSON.
func (m *Metrics) SaveResults(path string, st slab.Stats) error {
	data, err := json.MarshalIndent(m.Summary(st), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write run summary: %w", err)
	}
	logrus.Debugf("Successfully wrote run summary to '%s'", path)
	return nil
}
