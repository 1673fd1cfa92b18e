// Package l1frames owns Layer 1 (Frames) of the echosounder data model.
//
// Responsibilities: the read-only acoustic frame for one channel (signal,
// depth and optional split-beam angle matrices indexed [sample, ping]), the
// per-ping bottom line and navigation series, and the narrow collaborator
// interfaces the detector consumes to obtain them.
// Key types: Frame, BottomLine, Navigation, Dataset.
//
// Dependency rule: L1 depends on nothing above it. Nothing here mutates a
// Frame after construction.
package l1frames
