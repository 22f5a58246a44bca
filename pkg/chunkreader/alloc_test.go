package chunkreader

import "testing"

func TestReallocSizeLastChunkIsExact(t *testing.T) {
	got := reallocSize(9, 10, 5000, 4000, 1_000_000)
	if got != 5000 {
		t.Errorf("reallocSize(last chunk) = %d, want exactly newRequired = 5000", got)
	}
}

func TestReallocSizeClampsToMax(t *testing.T) {
	got := reallocSize(0, 10, 5000, 0, 4000)
	if got != 4000 {
		t.Errorf("reallocSize() = %d, want clamped to nrowsMax = 4000", got)
	}
}

func TestReallocSizeGrowsBySlackAndFloor(t *testing.T) {
	got := reallocSize(0, 10, 1000, 0, 1_000_000)
	if got < 1000*12/10 {
		t.Errorf("reallocSize() = %d, want at least 1.2x projection", got)
	}
	if got <= 0 {
		t.Errorf("reallocSize() = %d, want a positive growth", got)
	}
}

func TestReallocSizeNeverShrinksBelowFloorStep(t *testing.T) {
	got := reallocSize(5, 10, 1, 1000, 1_000_000)
	if got < 1000+growthFloor {
		t.Errorf("reallocSize() = %d, want at least nrowsAllocated + growthFloor = %d", got, 1000+growthFloor)
	}
}
