package chunkreader

import "testing"

func TestComputeChunkBoundariesFirstChunkIsTrue(t *testing.T) {
	plan := ChunkPlan{ChunkSize: 100, ChunkCount: 4, NThreads: 4}
	c := ComputeChunkBoundaries(0, 0, 400, plan, 0, nil, nil)
	if !c.TrueStart {
		t.Errorf("chunk 0 should always have TrueStart, got %+v", c)
	}
	if c.Start != 0 {
		t.Errorf("chunk 0 Start = %d, want 0", c.Start)
	}
}

func TestComputeChunkBoundariesLastChunkIsTrue(t *testing.T) {
	plan := ChunkPlan{ChunkSize: 100, ChunkCount: 4, NThreads: 4}
	c := ComputeChunkBoundaries(3, 0, 400, plan, 0, nil, nil)
	if !c.TrueEnd {
		t.Errorf("last chunk should always have TrueEnd, got %+v", c)
	}
	if c.End != 400 {
		t.Errorf("last chunk End = %d, want eof 400", c.End)
	}
}

func TestComputeChunkBoundariesMiddleChunkIsSpeculative(t *testing.T) {
	plan := ChunkPlan{ChunkSize: 100, ChunkCount: 4, NThreads: 4}
	c := ComputeChunkBoundaries(1, 0, 400, plan, 0, nil, nil)
	if c.TrueStart || c.TrueEnd {
		t.Errorf("a middle chunk in parallel mode should be speculative on both ends, got %+v", c)
	}
	if c.Start != 100 || c.End != 200 {
		t.Errorf("chunk 1 = [%d, %d), want [100, 200)", c.Start, c.End)
	}
}

func TestComputeChunkBoundariesSequentialAlwaysTrueStart(t *testing.T) {
	plan := ChunkPlan{ChunkSize: 100, ChunkCount: 4, NThreads: 1}
	c := ComputeChunkBoundaries(2, 0, 400, plan, 250, nil, nil)
	if !c.TrueStart {
		t.Errorf("sequential mode should always start from a true boundary, got %+v", c)
	}
	if c.Start != 250 {
		t.Errorf("sequential chunk should start at lastChunkEnd = 250, got %d", c.Start)
	}
}

type recordingHook struct {
	called bool
}

func (h *recordingHook) AdjustChunkCoordinates(c *ChunkCoordinates, _ ParseContext) {
	h.called = true
	c.End += 7
}

func TestComputeChunkBoundariesInvokesHook(t *testing.T) {
	plan := ChunkPlan{ChunkSize: 100, ChunkCount: 4, NThreads: 4}
	hook := &recordingHook{}
	c := ComputeChunkBoundaries(1, 0, 400, plan, 0, hook, nil)
	if !hook.called {
		t.Fatal("boundary hook was not invoked")
	}
	if c.End != 207 {
		t.Errorf("hook adjustment not applied: End = %d, want 207", c.End)
	}
}
