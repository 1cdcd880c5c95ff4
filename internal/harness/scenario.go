package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a race lifecycle conformance test. A scenario drives
// the pure state machine through a sequence of commands under a manual
// clock and validates the snapshot after each step.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// RaceID and RoomCode fix the race identity for deterministic output.
	RaceID   string `yaml:"race_id"`
	RoomCode string `yaml:"room_code"`

	// HostID is the host participant. Text is the expected race text.
	HostID string `yaml:"host_id"`
	Text   string `yaml:"text"`

	// StartAtMs is the clock's epoch-ms origin.
	StartAtMs int64 `yaml:"start_at_ms"`

	// Steps is the command sequence applied after creation.
	Steps []Step `yaml:"steps"`
}

// Step is one command against the race.
type Step struct {
	// Command is one of: join, add_bot, start_countdown, start_race,
	// update_progress, complete, cancel.
	Command string `yaml:"command"`

	// AdvanceMs moves the clock forward before the command executes.
	AdvanceMs int64 `yaml:"advance_ms,omitempty"`

	// Participant targets join, add_bot and update_progress.
	Participant string `yaml:"participant,omitempty"`

	// Level is the bot tier for add_bot.
	Level string `yaml:"level,omitempty"`

	// Progress, WPM and Accuracy feed update_progress.
	Progress float64 `yaml:"progress,omitempty"`
	WPM      float64 `yaml:"wpm,omitempty"`
	Accuracy float64 `yaml:"accuracy,omitempty"`

	// Reason feeds cancel.
	Reason string `yaml:"reason,omitempty"`

	// Expect validates the snapshot after the command. Optional.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected observable outcome of one step.
// Only set fields are checked.
type ExpectClause struct {
	// Status is the expected race status after the step.
	Status string `yaml:"status,omitempty"`

	// Version is the expected snapshot version after the step.
	Version *int64 `yaml:"version,omitempty"`

	// Changed asserts whether the step mutated the snapshot. Idempotent
	// re-sends expect changed: false.
	Changed *bool `yaml:"changed,omitempty"`

	// ErrorKind expects the step to fail with this state error kind
	// (e.g. "WRONG_STATUS"). The snapshot must remain untouched.
	ErrorKind string `yaml:"error_kind,omitempty"`

	// Winner is the expected winner ID (complete steps).
	Winner string `yaml:"winner,omitempty"`
}

// Known step commands.
const (
	CmdJoin           = "join"
	CmdAddBot         = "add_bot"
	CmdStartCountdown = "start_countdown"
	CmdStartRace      = "start_race"
	CmdUpdateProgress = "update_progress"
	CmdComplete       = "complete"
	CmdCancel         = "cancel"
)

var knownCommands = map[string]bool{
	CmdJoin:           true,
	CmdAddBot:         true,
	CmdStartCountdown: true,
	CmdStartRace:      true,
	CmdUpdateProgress: true,
	CmdComplete:       true,
	CmdCancel:         true,
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so a typoed key fails loudly instead of silently validating
// nothing.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.RaceID == "" {
		return fmt.Errorf("race_id is required")
	}
	if s.HostID == "" {
		return fmt.Errorf("host_id is required")
	}
	if s.Text == "" {
		return fmt.Errorf("text is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if !knownCommands[step.Command] {
			return fmt.Errorf("steps[%d]: unknown command %q", i, step.Command)
		}
		switch step.Command {
		case CmdJoin, CmdUpdateProgress:
			if step.Participant == "" {
				return fmt.Errorf("steps[%d]: participant is required for %s", i, step.Command)
			}
		case CmdAddBot:
			if step.Participant == "" {
				return fmt.Errorf("steps[%d]: participant is required for add_bot", i)
			}
			if step.Level == "" {
				return fmt.Errorf("steps[%d]: level is required for add_bot", i)
			}
		}
		if step.AdvanceMs < 0 {
			return fmt.Errorf("steps[%d]: advance_ms must be non-negative", i)
		}
	}
	return nil
}
