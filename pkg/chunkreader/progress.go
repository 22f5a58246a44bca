package chunkreader

import "time"

// largeInputThreshold is the input size above which progress is shown
// immediately rather than gated behind the flicker-suppression window.
const largeInputThreshold int64 = 1 << 28 // 256 MiB

// flickerSuppression is how long small/fast runs suppress progress
// reporting before their first event, so short runs don't flicker a
// progress indicator that completes before a human could read it.
const flickerSuppression = 750 * time.Millisecond

// progressState tracks whether, and when, the master worker should emit a
// progress event. Only one worker — the master — is ever allowed to
// report, because the progress sink may reach into a non-thread-safe host
// runtime.
type progressState struct {
	show       bool
	showAlways bool
	showWhen   time.Time
}

// newProgressState initializes progress gating for a worker. isMaster must
// be true for exactly one worker per run.
func newProgressState(reportProgress, isMaster bool, inputSize int64, now time.Time) progressState {
	show := reportProgress && isMaster
	ps := progressState{show: show}
	if !show {
		return ps
	}
	ps.showAlways = inputSize > largeInputThreshold
	ps.showWhen = now.Add(flickerSuppression)
	return ps
}

// shouldReport decides whether to emit a progress event right now, and
// latches showAlways once the flicker window has passed.
func (ps *progressState) shouldReport(now time.Time) bool {
	if !ps.show {
		return false
	}
	if ps.showAlways {
		return true
	}
	if now.Before(ps.showWhen) {
		return false
	}
	ps.showAlways = true
	return true
}

// workDone returns the fraction of input bytes committed so far.
func workDone(sof, eof, lastChunkEnd int64) float64 {
	total := eof - sof
	if total <= 0 {
		return 1
	}
	done := lastChunkEnd - sof
	return float64(done) / float64(total)
}

// Final progress status codes, emitted once by the master worker after the
// parallel region joins.
const (
	StatusNormal            = 1
	StatusError             = 2
	StatusKeyboardInterrupt = 3
)
