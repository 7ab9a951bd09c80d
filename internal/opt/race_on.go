//go:build race

package opt

// Race_ reports whether the race detector is enabled. Tests use it to
// shrink stress workloads, which run several times slower under -race.
const Race_ = true
