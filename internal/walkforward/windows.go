// Package walkforward splits a backtest range into train/test windows and
// scores how much a strategy degrades out-of-sample.
package walkforward

import (
	"defi-strategy-lab/internal/domain"
)

// Window layout: fixed train and test lengths, advancing by a fixed step.
const (
	TrainDays = 90
	TestDays  = 30
	StepDays  = 30
)

// GenerateWindows produces successive train/test windows over
// [startMs, endMs]. Each window trains on TrainDays and tests on the
// TestDays immediately after, advancing by StepDays. A range too short for
// one full window falls back to a single 70/30 split.
func GenerateWindows(startMs, endMs int64) []domain.WalkForwardWindow {
	if endMs <= startMs {
		return nil
	}

	trainMs := int64(TrainDays) * domain.MsPerDay
	testMs := int64(TestDays) * domain.MsPerDay
	stepMs := int64(StepDays) * domain.MsPerDay

	if endMs-startMs < trainMs+testMs {
		return []domain.WalkForwardWindow{fallbackWindow(startMs, endMs)}
	}

	var windows []domain.WalkForwardWindow
	for trainStart := startMs; trainStart+trainMs+testMs <= endMs; trainStart += stepMs {
		trainEnd := trainStart + trainMs
		windows = append(windows, domain.WalkForwardWindow{
			TrainStartMs: trainStart,
			TrainEndMs:   trainEnd,
			TestStartMs:  trainEnd,
			TestEndMs:    trainEnd + testMs,
		})
	}
	return windows
}

// fallbackWindow splits a short range 70% train / 30% test.
func fallbackWindow(startMs, endMs int64) domain.WalkForwardWindow {
	split := startMs + (endMs-startMs)*7/10
	return domain.WalkForwardWindow{
		TrainStartMs: startMs,
		TrainEndMs:   split,
		TestStartMs:  split,
		TestEndMs:    endMs,
	}
}
