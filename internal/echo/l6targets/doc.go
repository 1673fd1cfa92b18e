// Package l6targets owns Layer 6 (Targets) of the echo data model.
//
// Responsibilities: the ordered, append-only detection set, merging of
// per-block sets, and summary statistics over accepted targets.
// Key types: Target (re-exported from l5detect), Set, Summary.
//
// Dependency rule: L6 may depend on L1-L5.
// No SQL/database code is allowed in this package.
package l6targets
