package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/velotype/velotype/internal/tiers"
)

// NewTiersCommand creates the tiers command.
func NewTiersCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tiers",
		Short: "List bot skill tiers",
		Long: `List the bot skill tiers from the embedded catalog.

Each tier defines a target WPM band, mistake probability and typing rhythm
parameters. The catalog is validated at load time; a tier outside its
declared ranges fails the command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := tiers.Load()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load tier catalog", err)
			}
			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}
			return formatter.Success(catalog, func(w io.Writer) {
				for _, name := range tiers.Names(catalog) {
					t := catalog[name]
					fmt.Fprintf(w, "%-14s %s: %.0f wpm, %.1f%% mistakes, %.0fms cadence\n",
						name, t.DisplayName, t.TargetWPMMean, t.MistakeProbability*100, t.IKIMeanMs)
				}
			})
		},
	}
}
