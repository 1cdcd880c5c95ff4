// Package harness executes YAML race scenarios against the pure state
// machine under a manual clock, validating each step's observable outcome
// and comparing the final snapshot against a golden file.
//
// Because transitions are pure functions of (snapshot, inputs, now), a
// scenario needs no store, no goroutines and no wall clock: the same
// file produces byte-identical snapshots on every run.
package harness

import (
	"errors"
	"fmt"

	"github.com/velotype/velotype/internal/race"
)

// Result is the outcome of one scenario run.
type Result struct {
	Scenario *Scenario

	// Final is the snapshot after the last step.
	Final race.Snapshot

	// Trace holds every accepted snapshot in order, creation included.
	// No-op steps and failed steps append nothing.
	Trace []race.Snapshot

	// Failures lists every expectation that did not hold.
	Failures []string
}

// Passed reports whether every step expectation held.
func (r *Result) Passed() bool {
	return len(r.Failures) == 0
}

// Run executes a scenario from creation through its last step.
func Run(scenario *Scenario) (*Result, error) {
	now := scenario.StartAtMs
	snap := race.New(scenario.RaceID, scenario.RoomCode, scenario.HostID, scenario.Text, now)

	result := &Result{
		Scenario: scenario,
		Trace:    []race.Snapshot{snap},
	}

	for i, step := range scenario.Steps {
		now += step.AdvanceMs
		next, changed, err := applyStep(snap, step, now)

		if step.Expect != nil && step.Expect.ErrorKind != "" {
			result.checkExpectedError(i, step, err)
			// The snapshot is untouched on error; continue from it.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("steps[%d] %s: %w", i, step.Command, err)
		}

		result.checkExpectations(i, step, next, changed)
		if changed {
			result.Trace = append(result.Trace, next)
		}
		snap = next
	}

	result.Final = snap
	return result, nil
}

// applyStep dispatches one step command to the state machine.
func applyStep(snap race.Snapshot, step Step, now int64) (race.Snapshot, bool, error) {
	switch step.Command {
	case CmdJoin:
		next, err := race.AddOpponent(snap, step.Participant, false, "", now)
		return next, err == nil, err
	case CmdAddBot:
		next, err := race.AddOpponent(snap, step.Participant, true, step.Level, now)
		return next, err == nil, err
	case CmdStartCountdown:
		return race.StartCountdown(snap, now)
	case CmdStartRace:
		return race.StartRace(snap, now)
	case CmdUpdateProgress:
		next, err := race.UpdateProgress(snap, step.Participant, step.Progress, step.WPM, step.Accuracy, now)
		return next, err == nil, err
	case CmdComplete:
		return race.Complete(snap, now)
	case CmdCancel:
		return race.Cancel(snap, step.Reason, now)
	default:
		return race.Snapshot{}, false, fmt.Errorf("unknown command %q", step.Command)
	}
}

// checkExpectedError validates a step that was expected to fail.
func (r *Result) checkExpectedError(i int, step Step, err error) {
	if err == nil {
		r.fail(i, step, "expected error kind %s, step succeeded", step.Expect.ErrorKind)
		return
	}
	var stateErr *race.StateError
	if !errors.As(err, &stateErr) {
		r.fail(i, step, "expected state error, got %v", err)
		return
	}
	if string(stateErr.Kind) != step.Expect.ErrorKind {
		r.fail(i, step, "expected error kind %s, got %s", step.Expect.ErrorKind, stateErr.Kind)
	}
}

// checkExpectations validates a successful step's outcome.
func (r *Result) checkExpectations(i int, step Step, snap race.Snapshot, changed bool) {
	exp := step.Expect
	if exp == nil {
		return
	}
	if exp.Status != "" && string(snap.Status) != exp.Status {
		r.fail(i, step, "expected status %s, got %s", exp.Status, snap.Status)
	}
	if exp.Version != nil && snap.Version != *exp.Version {
		r.fail(i, step, "expected version %d, got %d", *exp.Version, snap.Version)
	}
	if exp.Changed != nil && changed != *exp.Changed {
		r.fail(i, step, "expected changed=%v, got %v", *exp.Changed, changed)
	}
	if exp.Winner != "" && snap.WinnerID != exp.Winner {
		r.fail(i, step, "expected winner %s, got %s", exp.Winner, snap.WinnerID)
	}
}

func (r *Result) fail(i int, step Step, format string, args ...any) {
	prefix := fmt.Sprintf("steps[%d] %s: ", i, step.Command)
	r.Failures = append(r.Failures, prefix+fmt.Sprintf(format, args...))
}
