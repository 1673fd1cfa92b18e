// Package l4compensation owns Layer 4 (Compensation) of the echo data model.
//
// Responsibilities: pulse-length sampling (Np / NechP), time-varied gain,
// Sv to TS conversion, the Plike energy surrogate, one-way beam-pattern
// compensation, and producing the per-block matrices the detectors search.
// Key types: Sampling, View, Energy.
//
// Dependency rule: L4 may depend on L1-L3, but never on L5+.
// No SQL/database code is allowed in this package.
package l4compensation
