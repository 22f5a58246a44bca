package chunkreader

// ComputeChunkBoundaries proposes the [start, end) byte range for chunk
// index i, flagging which endpoints are known record boundaries, then
// invokes the boundary hook (if any) to let the concrete parser adjust
// them.
//
// Chunk 0, and every chunk when nthreads == 1, always starts at
// lastChunkEnd with TrueStart == true: sequential mode and the very first
// chunk always start at a known record boundary. The last chunk always
// ends at eof with TrueEnd == true.
func ComputeChunkBoundaries(i int64, sof, eof int64, plan ChunkPlan, lastChunkEnd int64, hook BoundaryHook, ctx ParseContext) ChunkCoordinates {
	var c ChunkCoordinates

	isFirst := i == 0
	isLast := i == plan.ChunkCount-1

	if plan.NThreads == 1 || isFirst {
		c.Start = lastChunkEnd
		c.TrueStart = true
	} else {
		c.Start = sof + i*plan.ChunkSize
	}

	if isLast {
		c.End = eof
		c.TrueEnd = true
	} else {
		c.End = c.Start + plan.ChunkSize
	}

	if hook != nil {
		hook.AdjustChunkCoordinates(&c, ctx)
	}

	return c
}
