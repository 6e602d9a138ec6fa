// Package walkforward generates the rolling (train, test) windows of a run and drives
// the stage coordinators over them.
package walkforward

import (
	"time"

	"github.com/ashourz/AlgoRoyale-sub002/internal/types"
	"github.com/ashourz/AlgoRoyale-sub002/pkg/errors"
)

// Schedule describes the rolling windows. End is inclusive; lengths are calendar days.
type Schedule struct {
	Start     time.Time
	End       time.Time
	TrainDays int
	TestDays  int
	StepDays  int
}

// WindowPair is a train window and the test window that immediately follows it.
type WindowPair struct {
	Train types.Window
	Test  types.Window
}

// GenerateWindows lists every pair whose test window ends on or before s.End. Train
// windows start StepDays apart.
func GenerateWindows(s Schedule) ([]WindowPair, error) {
	if s.TrainDays < 1 || s.TestDays < 1 || s.StepDays < 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidWindow,
			"window lengths must be positive: train=%d test=%d step=%d", s.TrainDays, s.TestDays, s.StepDays)
	}

	first, err := types.NewWindow(s.Start, s.End)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidWindow, "invalid schedule", err)
	}

	var pairs []WindowPair

	for start := first.Start; ; start = start.AddDate(0, 0, s.StepDays) {
		trainEnd := start.AddDate(0, 0, s.TrainDays-1)
		testStart := trainEnd.AddDate(0, 0, 1)
		testEnd := testStart.AddDate(0, 0, s.TestDays-1)

		if testEnd.After(first.End) {
			break
		}

		pairs = append(pairs, WindowPair{
			Train: types.MustWindow(start, trainEnd),
			Test:  types.MustWindow(testStart, testEnd),
		})
	}

	if len(pairs) == 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidWindow,
			"schedule %s..%s is shorter than one train and test window", first.Start.Format(time.DateOnly), first.End.Format(time.DateOnly))
	}

	return pairs, nil
}

// TestWindows returns the test window of every pair in order.
func TestWindows(pairs []WindowPair) []types.Window {
	out := make([]types.Window, len(pairs))
	for i, p := range pairs {
		out[i] = p.Test
	}

	return out
}
