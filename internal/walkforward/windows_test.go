package walkforward

import (
	"testing"

	"defi-strategy-lab/internal/domain"
)

const wfStartMs = int64(1700000000000)

func days(n int64) int64 {
	return n * domain.MsPerDay
}

func TestGenerateWindows_ExactFit(t *testing.T) {
	// 120 days holds exactly one 90/30 window.
	windows := GenerateWindows(wfStartMs, wfStartMs+days(120))

	if len(windows) != 1 {
		t.Fatalf("expected 1 window, got %d", len(windows))
	}
	w := windows[0]
	if w.TrainStartMs != wfStartMs || w.TrainEndMs != wfStartMs+days(90) {
		t.Errorf("train window [%d, %d), want [%d, %d)", w.TrainStartMs, w.TrainEndMs, wfStartMs, wfStartMs+days(90))
	}
	if w.TestStartMs != w.TrainEndMs {
		t.Errorf("test must start where training ends: %d vs %d", w.TestStartMs, w.TrainEndMs)
	}
	if w.TestEndMs != wfStartMs+days(120) {
		t.Errorf("test end %d, want %d", w.TestEndMs, wfStartMs+days(120))
	}
}

func TestGenerateWindows_AdvancesByStep(t *testing.T) {
	windows := GenerateWindows(wfStartMs, wfStartMs+days(180))

	if len(windows) != 3 {
		t.Fatalf("expected 3 windows, got %d", len(windows))
	}
	for i, w := range windows {
		wantStart := wfStartMs + days(int64(i)*StepDays)
		if w.TrainStartMs != wantStart {
			t.Errorf("window %d starts at %d, want %d", i, w.TrainStartMs, wantStart)
		}
		if w.TrainEndMs-w.TrainStartMs != days(TrainDays) {
			t.Errorf("window %d train length %d days off", i, (w.TrainEndMs-w.TrainStartMs)/domain.MsPerDay)
		}
		if w.TestEndMs-w.TestStartMs != days(TestDays) {
			t.Errorf("window %d test length %d days off", i, (w.TestEndMs-w.TestStartMs)/domain.MsPerDay)
		}
		if w.TestEndMs > wfStartMs+days(180) {
			t.Errorf("window %d exceeds the overall range", i)
		}
	}
}

func TestGenerateWindows_ShortRangeFallsBack(t *testing.T) {
	// 100 days cannot fit 90 train + 30 test: one 70/30 split instead.
	windows := GenerateWindows(wfStartMs, wfStartMs+days(100))

	if len(windows) != 1 {
		t.Fatalf("expected 1 fallback window, got %d", len(windows))
	}
	w := windows[0]
	if w.TrainEndMs != wfStartMs+days(70) {
		t.Errorf("fallback split at %d, want %d", w.TrainEndMs, wfStartMs+days(70))
	}
	if w.TestStartMs != w.TrainEndMs || w.TestEndMs != wfStartMs+days(100) {
		t.Errorf("fallback test window [%d, %d) malformed", w.TestStartMs, w.TestEndMs)
	}
}

func TestGenerateWindows_DegenerateRange(t *testing.T) {
	if got := GenerateWindows(wfStartMs, wfStartMs); got != nil {
		t.Errorf("expected nil for empty range, got %v", got)
	}
	if got := GenerateWindows(wfStartMs, wfStartMs-days(10)); got != nil {
		t.Errorf("expected nil for inverted range, got %v", got)
	}
}
