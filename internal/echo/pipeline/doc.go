// Package pipeline is the composition root of single-target detection.
//
// It wires the layer packages (l1frames through l6targets) into one
// block-processing driver: collaborators are read once, the ping axis is
// partitioned, and each block is masked, compensated and searched by the
// configured l5detect.Strategy. None of the layer packages import pipeline.
package pipeline
