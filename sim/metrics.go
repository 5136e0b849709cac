// Tracks per-tick pipeline timings and table pressure for final reporting.

package sim

import (
	"fmt"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/flock-sim/flock-sim/sim/slab"
)

// Metrics aggregates statistics about the simulation for final reporting.
// Useful for evaluating phase cost and table sizing over time.
type Metrics struct {
	Ticks int // Number of completed ticks

	GroupingSeconds  []float64 // Per-tick grouping phase duration
	ForceSeconds     []float64 // Per-tick force phase duration
	IntegrateSeconds []float64 // Per-tick integration phase duration

	MacroGroupsPerTick []float64 // Macro table occupancy per tick
	MicroGroupsPerTick []float64 // Micro table occupancy per tick

	MacroDropped int64 // Agents left macro-ungrouped by a full table
	MicroDropped int64 // Agents left micro-ungrouped by a full table

	ContactsSeen    int64        // Obstacle contacts recorded across all ticks
	ContactsDropped atomic.Int64 // Contacts lost to a full buffer
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) observeTick(grouping, forces, integrate time.Duration, macroGroups, microGroups, contacts int) {
	m.Ticks++
	m.GroupingSeconds = append(m.GroupingSeconds, grouping.Seconds())
	m.ForceSeconds = append(m.ForceSeconds, forces.Seconds())
	m.IntegrateSeconds = append(m.IntegrateSeconds, integrate.Seconds())
	m.MacroGroupsPerTick = append(m.MacroGroupsPerTick, float64(macroGroups))
	m.MicroGroupsPerTick = append(m.MicroGroupsPerTick, float64(microGroups))
	m.ContactsSeen += int64(contacts)
}

// Print displays aggregated metrics at the end of a run. Includes mean and
// worst-case phase timings, group table occupancy, overflow counts, and
// the allocator's final footprint.
func (m *Metrics) Print(st slab.Stats) {
	fmt.Println("=== Simulation Metrics ===")
	fmt.Printf("Ticks                : %d\n", m.Ticks)
	if m.Ticks > 0 {
		fmt.Printf("Grouping phase       : %.3f ms avg, %.3f ms max\n",
			stat.Mean(m.GroupingSeconds, nil)*1e3, floats.Max(m.GroupingSeconds)*1e3)
		fmt.Printf("Force phase          : %.3f ms avg, %.3f ms max\n",
			stat.Mean(m.ForceSeconds, nil)*1e3, floats.Max(m.ForceSeconds)*1e3)
		fmt.Printf("Integration phase    : %.3f ms avg, %.3f ms max\n",
			stat.Mean(m.IntegrateSeconds, nil)*1e3, floats.Max(m.IntegrateSeconds)*1e3)
		fmt.Printf("Macro groups         : %.1f avg, %.0f max\n",
			stat.Mean(m.MacroGroupsPerTick, nil), floats.Max(m.MacroGroupsPerTick))
		fmt.Printf("Micro groups         : %.1f avg, %.0f max\n",
			stat.Mean(m.MicroGroupsPerTick, nil), floats.Max(m.MicroGroupsPerTick))
	}
	fmt.Printf("Ungrouped (macro/micro) : %d/%d\n", m.MacroDropped, m.MicroDropped)
	fmt.Printf("Obstacle contacts    : %d recorded, %d dropped\n", m.ContactsSeen, m.ContactsDropped.Load())
	fmt.Printf("Allocator            : %d chunks, %d live slices (%d bytes), %d class fallbacks\n",
		st.Chunks, st.LiveSlices, st.LiveBytes, st.ClassFallbacks)
}
