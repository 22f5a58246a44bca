package chunkreader

// growthFloor is the minimum number of rows a single reallocation adds,
// even for the sparsest of files — it avoids thrashing on tiny growth
// steps.
const growthFloor int64 = 1024

// growthSlack absorbs line-length variance when projecting how many rows
// the remaining chunks will need.
const growthSlack = 1.2

// reallocSize computes the new row-allocation target for chunk index
// ichunk, given that the chunk just committed nrows_new rows against a
// chunkCount-long plan. Growth is geometric with a projection based on how
// much of the input has been consumed so far, clamped to nrowsMax.
//
// When ichunk is the last chunk, new_required is exactly how many rows
// will ever be needed, so no slack is added.
func reallocSize(ichunk, chunkCount, newRequired, nrowsAllocated, nrowsMax int64) int64 {
	var newAlloc int64
	if ichunk == chunkCount-1 {
		newAlloc = newRequired
	} else {
		projected := int64(growthSlack * float64(newRequired) * float64(chunkCount) / float64(ichunk+1))
		newAlloc = max64(projected, nrowsAllocated+growthFloor)
	}
	if newAlloc > nrowsMax {
		newAlloc = nrowsMax
	}
	return newAlloc
}
