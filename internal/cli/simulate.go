package cli

import (
	"fmt"
	"io"
	"math/rand"
	"strings"

	"github.com/spf13/cobra"

	"github.com/velotype/velotype/internal/bot"
	"github.com/velotype/velotype/internal/metrics"
	"github.com/velotype/velotype/internal/tiers"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Level      string
	Seed       int64
	IntervalMs int64
}

// SimulateResult is the JSON payload of one offline simulation.
type SimulateResult struct {
	Level      string                 `json:"level"`
	Seed       int64                  `json:"seed"`
	Text       string                 `json:"text"`
	Keystrokes int                    `json:"keystrokes"`
	DurationMs int64                  `json:"duration_ms"`
	Updates    []bot.Update           `json:"updates"`
	Metrics    metrics.SessionMetrics `json:"metrics"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <text...>",
		Short: "Simulate a bot typing a text offline",
		Long: `Simulate a full bot race over the given text without a store or clock.

The bot types the whole text at its tier's pace, snapshotting progress at a
fixed interval. The keystroke log is then fed through the same canonical
metrics recomputation a real session gets, so the printed WPM and accuracy
are exactly what the verifier would persist.

The same seed always produces the same keystroke log.

Examples:
  velotype simulate --level pro --seed 42 "the quick brown fox"
  velotype simulate --level beginner --format json "hello world"`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, strings.Join(args, " "), cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Level, "level", tiers.Intermediate, "bot tier (beginner|intermediate|pro)")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 1, "random seed")
	cmd.Flags().Int64Var(&opts.IntervalMs, "interval", 200, "progress snapshot interval in ms")

	return cmd
}

func runSimulate(opts *SimulateOptions, text string, cmd *cobra.Command) error {
	catalog, err := tiers.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load tier catalog", err)
	}
	tier, ok := catalog[opts.Level]
	if !ok {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("unknown level %q: must be one of %v", opts.Level, tiers.Names(catalog)))
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	updates, b := bot.SimulateFullRace(tier, "sim", text, opts.IntervalMs, rng)

	typed := metrics.ReconstructTypedText(b.Keystrokes)
	computed := metrics.ComputeSession(b.Keystrokes, text, typed)

	result := SimulateResult{
		Level:      opts.Level,
		Seed:       opts.Seed,
		Text:       text,
		Keystrokes: len(b.Keystrokes),
		DurationMs: b.LastKeyMs - b.StartedAtMs,
		Updates:    updates,
		Metrics:    computed,
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	return formatter.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "Simulated %s bot (seed %d) over %d chars\n", opts.Level, opts.Seed, len([]rune(text)))
		fmt.Fprintf(w, "  keystrokes: %d\n", result.Keystrokes)
		fmt.Fprintf(w, "  duration:   %.1fs\n", float64(result.DurationMs)/1000)
		fmt.Fprintf(w, "  wpm:        %.2f (raw %.2f)\n", computed.NetWPM, computed.RawWPM)
		fmt.Fprintf(w, "  accuracy:   %.2f%%\n", computed.Accuracy)
		fmt.Fprintf(w, "  consistency: %.1f\n", computed.Consistency)
		if opts.Verbose {
			for _, u := range updates {
				fmt.Fprintf(w, "  %8dms  %6.2f%%  %6.2f wpm\n", u.TimestampMs, u.Progress, u.WPM)
			}
		}
	})
}
