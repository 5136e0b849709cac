// Package sim provides the core flocking simulation engine.
//
// # Reading Guide
//
// Start with these three files to understand the tick pipeline:
//   - simulation.go: Simulation lifecycle (New → Step → Teardown), phase ordering, and transform publication
//   - grouping.go: The spatial hash that rebuilds macro and micro groups every tick
//   - forces.go: The steering terms blended into each agent's heading
//
// # Architecture
//
// The sim package owns behavior; memory lives in sub-packages:
//   - sim/slab/: Segregated-fit slab allocator every container draws from
//   - sim/buf/: Typed fixed buffers, growable lists, and phase view types
//
// A tick runs three phases in order over the same agent arrays: sequential
// grouping, parallel heading updates, parallel integration. Phases hand
// goroutines disjoint index ranges; the only cross-range write is the
// contact buffer, which accepts concurrent appends.
//
// # Determinism
//
// Equal configs produce equal runs. All randomness flows through
// PartitionedRNG subsystem streams sealed at spawn, group identity comes
// from insertion order, and parallel phases write only per-agent slots, so
// worker count never changes results.
package sim
