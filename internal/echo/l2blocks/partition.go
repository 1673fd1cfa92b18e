package l2blocks

import (
	"iter"
	"math"
)

// Block is the half-open ping range [Start, Stop) processed as one unit.
type Block struct {
	Index int
	Start int
	Stop  int
}

// Len returns the number of pings in the block.
func (b Block) Len() int { return b.Stop - b.Start }

// Partition describes how totalPings pings are split into blocks.
type Partition struct {
	TotalPings int
	BlockSize  int
	NumBlocks  int
}

// NewPartition sizes blocks so that one block holds at most budget cells:
// block_size = min(ceil(budget / samplesPerPing), totalPings). samplesPerPing
// below 1 is treated as 1. BlockSize is at least 1 whenever totalPings >= 1.
func NewPartition(totalPings, samplesPerPing int, budget float64) Partition {
	if totalPings <= 0 {
		return Partition{}
	}
	if samplesPerPing < 1 {
		samplesPerPing = 1
	}
	size := totalPings
	if perBlock := math.Ceil(budget / float64(samplesPerPing)); perBlock < float64(totalPings) {
		size = int(perBlock)
	}
	if size < 1 {
		size = 1
	}
	return Partition{
		TotalPings: totalPings,
		BlockSize:  size,
		NumBlocks:  (totalPings + size - 1) / size,
	}
}

// Block returns block i. The last block may be shorter than BlockSize.
func (p Partition) Block(i int) Block {
	start := i * p.BlockSize
	stop := start + p.BlockSize
	if stop > p.TotalPings {
		stop = p.TotalPings
	}
	return Block{Index: i, Start: start, Stop: stop}
}

// Blocks lazily yields every block in order. The sequence is finite and can
// be ranged over any number of times.
func (p Partition) Blocks() iter.Seq[Block] {
	return func(yield func(Block) bool) {
		for i := 0; i < p.NumBlocks; i++ {
			if !yield(p.Block(i)) {
				return
			}
		}
	}
}
