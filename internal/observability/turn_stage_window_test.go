package observability

import "testing"

func TestTurnStageWindowSnapshot(t *testing.T) {
	w := newTurnStageWindow(4)
	w.Observe(StageBackendReply, 100)
	w.Observe(StageBackendReply, 200)
	w.Observe(StageBackendReply, 300)

	snap := w.Snapshot()
	if len(snap.Stages) != 1 {
		t.Fatalf("expected 1 stage, got %d", len(snap.Stages))
	}
	s := snap.Stages[0]
	if s.Stage != StageBackendReply {
		t.Fatalf("unexpected stage %q", s.Stage)
	}
	if s.Samples != 3 {
		t.Fatalf("expected 3 samples, got %d", s.Samples)
	}
	if s.LastMS != 300 {
		t.Fatalf("expected last 300, got %v", s.LastMS)
	}
	if s.AvgMS != 200 {
		t.Fatalf("expected avg 200, got %v", s.AvgMS)
	}
	if s.P50MS != 200 {
		t.Fatalf("expected p50 200, got %v", s.P50MS)
	}
}

func TestTurnStageWindowWraps(t *testing.T) {
	w := newTurnStageWindow(2)
	w.Observe(StageTurnTotal, 10)
	w.Observe(StageTurnTotal, 20)
	w.Observe(StageTurnTotal, 30)

	snap := w.Snapshot()
	if len(snap.Stages) != 1 {
		t.Fatalf("expected 1 stage, got %d", len(snap.Stages))
	}
	if got := snap.Stages[0].Samples; got != 2 {
		t.Fatalf("expected window of 2 samples, got %d", got)
	}
	if got := snap.Stages[0].LastMS; got != 30 {
		t.Fatalf("expected last 30, got %v", got)
	}
}

func TestTurnStageWindowIgnoresBadInput(t *testing.T) {
	w := newTurnStageWindow(4)
	w.Observe("", 100)
	w.Observe(StageSynthesis, -1)

	snap := w.Snapshot()
	if len(snap.Stages) != 0 {
		t.Fatalf("expected no stages, got %d", len(snap.Stages))
	}
}

func TestTurnStageWindowIndicators(t *testing.T) {
	w := newTurnStageWindow(4)
	w.ObserveIndicator("rollback")
	w.ObserveIndicator("rollback")
	w.ObserveIndicator(" ")

	snap := w.Snapshot()
	if len(snap.Indicators) != 1 {
		t.Fatalf("expected 1 indicator, got %d", len(snap.Indicators))
	}
	if snap.Indicators[0].Name != "rollback" || snap.Indicators[0].Count != 2 {
		t.Fatalf("unexpected indicator %+v", snap.Indicators[0])
	}

	w.Reset()
	if got := len(w.Snapshot().Indicators); got != 0 {
		t.Fatalf("expected reset to clear indicators, got %d", got)
	}
}
