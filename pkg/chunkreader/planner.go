package chunkreader

// minChunkBytes is the floor chunk size: 256 KiB, below which we'd rather
// shrink the thread count than produce chunks smaller than this.
const minChunkBytes int64 = 1 << 18

// linesPerChunkTarget is the number of average-length lines we aim to pack
// into a single chunk before applying the minChunkBytes floor.
const linesPerChunkTarget = 1000

// ChunkPlan is the output of the chunking planner: how many chunks to
// create, how large each one is expected to be, and how many worker
// goroutines to run.
type ChunkPlan struct {
	ChunkSize  int64
	ChunkCount int64
	NThreads   int
}

// Plan computes chunk_size, chunk_count, and the (possibly reduced) worker
// count from the input size, mean line length, and requested parallelism.
//
// Plan is pure and re-runnable: calling it twice with the same inputs
// yields an identical ChunkPlan (spec property "planner idempotence"). The
// orchestrator re-invokes it if the runtime grants fewer workers than
// requested.
func Plan(inputSize int64, meanLineLen float64, nthreads int) ChunkPlan {
	if meanLineLen < 1.0 {
		meanLineLen = 1.0
	}
	if nthreads < 1 {
		nthreads = 1
	}

	size1000 := int64(linesPerChunkTarget * meanLineLen)
	chunkSize := max64(size1000, minChunkBytes)

	chunkCount := inputSize / chunkSize
	if chunkCount < 1 {
		chunkCount = 1
	}

	zThreads := int64(nthreads)
	if chunkCount > zThreads {
		// Round up to the next multiple of nthreads for even distribution.
		chunkCount = zThreads * (1 + (chunkCount-1)/zThreads)
	} else {
		// Small input: don't summon idle workers.
		nthreads = int(chunkCount)
	}

	if chunkCount > 0 {
		chunkSize = inputSize / chunkCount
	}

	return ChunkPlan{
		ChunkSize:  chunkSize,
		ChunkCount: chunkCount,
		NThreads:   nthreads,
	}
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
