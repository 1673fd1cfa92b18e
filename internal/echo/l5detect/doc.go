// Package l5detect owns Layer 5 (Detection) of the echo data model.
//
// Responsibilities: per-ping peak search, envelope/echo-length screening,
// spacing and range gates, and turning accepted peaks into Target records.
// Two strategies implement the same Strategy interface: Threshold (TS
// threshold and pulse-length detection level) and Energy (Plike surrogate
// with beam compensation and multi-constraint gating).
// Key types: Target, Block, Strategy.
//
// Dependency rule: L5 may depend on L1-L4, but never on L6.
// No SQL/database code is allowed in this package.
package l5detect
