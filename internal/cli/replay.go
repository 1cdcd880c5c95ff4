package cli

import (
	"context"
	"fmt"
	"io"
	"reflect"

	"github.com/spf13/cobra"

	"github.com/velotype/velotype/internal/metrics"
	"github.com/velotype/velotype/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RaceID   string
	Session  string
}

// ReplayResult holds the recomputation outcome for one stored session.
type ReplayResult struct {
	RaceID        string                 `json:"race_id"`
	SessionID     string                 `json:"session_id"`
	Keystrokes    int                    `json:"keystrokes"`
	TypedText     string                 `json:"typed_text"`
	Metrics       metrics.SessionMetrics `json:"metrics"`
	Deterministic bool                   `json:"deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Recompute metrics from a stored keystroke log",
		Long: `Replay a stored session's keystroke log and recompute its metrics.

The session's keystrokes are read back in insertion order, the typed text is
reconstructed, and metrics are recomputed twice to confirm the recomputation
is deterministic.

Exit codes:
  0 - replay succeeded and both passes agree
  1 - recomputation failed validation or passes disagree
  2 - command error (database not found, unknown race)

Examples:
  velotype replay --db ./velotype.db --race <race-id> --session <session-id>
  velotype replay --db ./velotype.db --race <race-id> --session <session-id> --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RaceID, "race", "", "race ID (required)")
	_ = cmd.MarkFlagRequired("race")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session ID (required)")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() { _ = st.Close() }()

	snap, err := st.GetRace(ctx, opts.RaceID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load race", err)
	}
	keystrokes, err := st.Keystrokes(ctx, opts.Session)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load keystrokes", err)
	}
	if len(keystrokes) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("no keystrokes stored for session %q", opts.Session))
	}

	typed := metrics.ReconstructTypedText(keystrokes)
	first := metrics.ComputeSession(keystrokes, snap.ExpectedText, typed)
	second := metrics.ComputeSession(keystrokes, snap.ExpectedText, typed)

	result := ReplayResult{
		RaceID:        opts.RaceID,
		SessionID:     opts.Session,
		Keystrokes:    len(keystrokes),
		TypedText:     typed,
		Metrics:       first,
		Deterministic: reflect.DeepEqual(first, second),
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if err := formatter.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "Replayed %d keystrokes for session %s\n", result.Keystrokes, result.SessionID)
		fmt.Fprintf(w, "  wpm:      %.2f (raw %.2f)\n", first.NetWPM, first.RawWPM)
		fmt.Fprintf(w, "  accuracy: %.2f%%\n", first.Accuracy)
		fmt.Fprintf(w, "  deterministic: %v\n", result.Deterministic)
	}); err != nil {
		return err
	}

	if !result.Deterministic || !first.IsValid {
		return NewExitError(ExitFailure, "replay verification failed")
	}
	return nil
}
