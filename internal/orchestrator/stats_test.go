package orchestrator

import (
	"testing"
	"time"
)

func TestStatsTrackerConvergesToConstantFrameTime(t *testing.T) {
	tr := newStatsTracker()
	start := time.Now()
	const frameDuration = 16 * time.Millisecond
	for i := 0; i < 200; i++ {
		tr.recordFrameEnd(start.Add(time.Duration(i) * frameDuration))
	}
	snap := tr.snapshot()
	if diff := snap.AvgFrameTime - frameDuration; diff > time.Millisecond || diff < -time.Millisecond {
		t.Fatalf("expected avg frame time to converge near %v, got %v", frameDuration, snap.AvgFrameTime)
	}
	wantFPS := float32(time.Second) / float32(frameDuration)
	if diff := snap.FPS - wantFPS; diff > 1 || diff < -1 {
		t.Fatalf("expected fps near %v, got %v", wantFPS, snap.FPS)
	}
}

func TestStatsTrackerEmptyBeforeFirstFrame(t *testing.T) {
	tr := newStatsTracker()
	snap := tr.snapshot()
	if snap.FPS != 0 || snap.AvgFrameTime != 0 {
		t.Fatalf("expected zero-value stats before any frame recorded, got %+v", snap)
	}
}
