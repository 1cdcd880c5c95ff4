package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/velotype/velotype/internal/metrics"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	KeystrokesPath string
	Text           string
	WPM            float64
	Accuracy       float64
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Recompute metrics from a keystroke log and check client figures",
		Long: `Recompute canonical metrics from a keystroke log and verify client figures.

The keystroke file is a JSON array of keystroke records. The typed text is
reconstructed from the log, metrics are recomputed server-side, and any
figures passed via --wpm or --accuracy are checked against them within
tolerance.

Exit codes:
  0 - metrics verified clean
  1 - client figures diverge or the log fails validation
  2 - command error (unreadable file, malformed JSON)

Examples:
  velotype verify --keystrokes session.json --text "the quick brown fox"
  velotype verify --keystrokes session.json --text "hello" --wpm 87.2 --accuracy 98.5`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.KeystrokesPath, "keystrokes", "", "path to keystroke log JSON (required)")
	_ = cmd.MarkFlagRequired("keystrokes")
	cmd.Flags().StringVar(&opts.Text, "text", "", "target text (required)")
	_ = cmd.MarkFlagRequired("text")
	cmd.Flags().Float64Var(&opts.WPM, "wpm", -1, "client-claimed raw WPM")
	cmd.Flags().Float64Var(&opts.Accuracy, "accuracy", -1, "client-claimed accuracy percentage")

	return cmd
}

func runVerify(opts *VerifyOptions, cmd *cobra.Command) error {
	raw, err := os.ReadFile(opts.KeystrokesPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read keystroke log", err)
	}
	var keystrokes []metrics.Keystroke
	if err := json.Unmarshal(raw, &keystrokes); err != nil {
		return WrapExitError(ExitCommandError, "failed to parse keystroke log", err)
	}

	client := metrics.ClientMetrics{}
	if opts.WPM >= 0 {
		client.RawWPM = &opts.WPM
	}
	if opts.Accuracy >= 0 {
		client.Accuracy = &opts.Accuracy
	}

	verdict := metrics.Verify(client, keystrokes, opts.Text)

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if err := formatter.Success(verdict, func(w io.Writer) {
		printVerdict(w, verdict)
	}); err != nil {
		return err
	}

	if !verdict.Valid {
		return NewExitError(ExitFailure, "verification failed")
	}
	return nil
}

func printVerdict(w io.Writer, verdict metrics.VerificationResult) {
	m := verdict.Computed
	fmt.Fprintf(w, "Computed: %.2f wpm (raw %.2f), accuracy %.2f%%, consistency %.1f\n",
		m.NetWPM, m.RawWPM, m.Accuracy, m.Consistency)
	if verdict.Valid {
		fmt.Fprintln(w, "Verified: clean")
		return
	}
	fmt.Fprintln(w, "Verified: FLAGGED")
	for _, e := range verdict.Errors {
		fmt.Fprintf(w, "  - %s\n", e)
	}
}
