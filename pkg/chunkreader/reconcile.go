package chunkreader

// Reconcile repairs a chunk whose actual consumed extent disagrees with
// the expected (proposed) extent. It is invoked from the serial commit
// stage, never from a parse-phase goroutine.
//
// Workers speculate at guessed offsets; at commit time the real end of the
// previous chunk is known, so any shortfall or overlap is repaired by a
// single re-parse starting at that known-good offset. Two checks suffice
// — the initial one and one after a single re-parse from the true
// predecessor end — because the re-parse always begins at a true
// boundary. A persistent mismatch after that indicates a ParseContext that
// doesn't honor TrueStart, and is reported as ErrInvariant rather than
// retried further.
func Reconcile(actual, expected *ChunkCoordinates, ctx ParseContext, lastChunkEnd *int64) error {
	if actual.Start == *lastChunkEnd && actual.End >= *lastChunkEnd {
		*lastChunkEnd = actual.End
		return nil
	}

	expected.Start = *lastChunkEnd
	expected.TrueStart = true

	reparsed, err := ctx.ReadChunk(*expected)
	if err != nil {
		return err
	}
	*actual = reparsed

	if actual.Start == *lastChunkEnd && actual.End >= *lastChunkEnd {
		*lastChunkEnd = actual.End
		return nil
	}

	return ErrInvariant
}
