// Package l3mask owns Layer 3 (Mask): per-ping bottom indices, block row
// cropping, and the boolean exclusion mask that keeps under-bottom and
// region-excluded cells out of the peak search.
//
// Dependency rule: L3 may depend on L1-L2, never on L4+.
package l3mask
