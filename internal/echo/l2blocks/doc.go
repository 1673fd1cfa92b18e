// Package l2blocks owns Layer 2 (Blocks): splitting a frame's ping axis into
// contiguous, memory-bounded ping ranges.
//
// Dependency rule: L2 depends on nothing but the standard library.
package l2blocks
