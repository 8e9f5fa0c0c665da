package pricing

import (
	"errors"
	"testing"

	"defi-strategy-lab/internal/domain"
)

func threePoints() []domain.PricePoint {
	return []domain.PricePoint{
		{TimestampMs: 1000, Price: 10},
		{TimestampMs: 2000, Price: 20},
		{TimestampMs: 3000, Price: 30},
	}
}

func TestPriceAt_ExactSample(t *testing.T) {
	got, err := PriceAt(threePoints(), 2000)
	if err != nil {
		t.Fatalf("PriceAt: %v", err)
	}
	if got != 20 {
		t.Errorf("PriceAt(2000) = %f, want 20", got)
	}
}

func TestPriceAt_Interpolates(t *testing.T) {
	tests := []struct {
		targetMs int64
		want     float64
	}{
		{1500, 15},
		{2250, 22.5},
		{2999, 29.99},
	}
	for _, tt := range tests {
		got, err := PriceAt(threePoints(), tt.targetMs)
		if err != nil {
			t.Fatalf("PriceAt(%d): %v", tt.targetMs, err)
		}
		if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("PriceAt(%d) = %f, want %f", tt.targetMs, got, tt.want)
		}
	}
}

func TestPriceAt_ClampsOutsideRange(t *testing.T) {
	series := threePoints()

	got, err := PriceAt(series, 500)
	if err != nil || got != 10 {
		t.Errorf("PriceAt(500) = %f, %v; want first sample 10", got, err)
	}

	got, err = PriceAt(series, 99999)
	if err != nil || got != 30 {
		t.Errorf("PriceAt(99999) = %f, %v; want last sample 30", got, err)
	}
}

func TestPriceAt_EmptySeries(t *testing.T) {
	_, err := PriceAt(nil, 1000)
	if !errors.Is(err, ErrNoPriceData) {
		t.Fatalf("Expected ErrNoPriceData, got %v", err)
	}
}

func TestNearestPositive_SkipsUnusableSamples(t *testing.T) {
	series := []domain.PricePoint{
		{TimestampMs: 1000, Price: 0},
		{TimestampMs: 2000, Price: -5},
		{TimestampMs: 3000, Price: 12},
	}

	got, err := NearestPositive(series, 1000)
	if err != nil {
		t.Fatalf("NearestPositive: %v", err)
	}
	if got != 12 {
		t.Errorf("NearestPositive = %f, want 12", got)
	}
}

func TestNearestPositive_AllUnusable(t *testing.T) {
	series := []domain.PricePoint{{TimestampMs: 1000, Price: 0}}
	_, err := NearestPositive(series, 1000)
	if !errors.Is(err, ErrNoPriceData) {
		t.Fatalf("Expected ErrNoPriceData, got %v", err)
	}
}

func TestVolumeAt_LastKnownSample(t *testing.T) {
	series := []domain.VolumePoint{
		{TimestampMs: 1000, Volume: 5},
		{TimestampMs: 2000, Volume: 7},
	}

	if got, ok := VolumeAt(series, 1500); !ok || got != 5 {
		t.Errorf("VolumeAt(1500) = %f, %v; want 5, true", got, ok)
	}
	if got, ok := VolumeAt(series, 2500); !ok || got != 7 {
		t.Errorf("VolumeAt(2500) = %f, %v; want 7, true", got, ok)
	}
	if _, ok := VolumeAt(series, 500); ok {
		t.Error("Expected no volume before the first sample")
	}
}

func TestHistoryUpTo_InclusiveBoundary(t *testing.T) {
	series := threePoints()

	got := HistoryUpTo(series, 2000)
	if len(got) != 2 || got[1].TimestampMs != 2000 {
		t.Errorf("HistoryUpTo(2000) = %+v, want 2 samples ending at 2000", got)
	}
	if got := HistoryUpTo(series, 999); len(got) != 0 {
		t.Errorf("HistoryUpTo(999) = %+v, want empty", got)
	}
}

func TestDownsample_KeepsBucketClose(t *testing.T) {
	series := []domain.PricePoint{
		{TimestampMs: 0, Price: 1},
		{TimestampMs: 400, Price: 2},
		{TimestampMs: 900, Price: 3},
		{TimestampMs: 1000, Price: 4},
		{TimestampMs: 2500, Price: 5},
	}

	got := Downsample(series, 1000)
	want := []domain.PricePoint{
		{TimestampMs: 0, Price: 3},
		{TimestampMs: 1000, Price: 4},
		{TimestampMs: 2000, Price: 5},
	}
	if len(got) != len(want) {
		t.Fatalf("Downsample returned %d buckets, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bucket %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestDownsample_ZeroGranularityPassesThrough(t *testing.T) {
	series := threePoints()
	got := Downsample(series, 0)
	if len(got) != len(series) {
		t.Fatalf("Downsample(0) changed length: %d != %d", len(got), len(series))
	}
}
