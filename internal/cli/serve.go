package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/velotype/velotype/internal/arena"
	"github.com/velotype/velotype/internal/config"
	"github.com/velotype/velotype/internal/hub"
	"github.com/velotype/velotype/internal/race"
	"github.com/velotype/velotype/internal/store"
	"github.com/velotype/velotype/internal/tiers"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Config     string
	Database   string
	Level      string
	Opponent   string
	Text       string
	Seed       int64
	Speedup    int64
	MaxRetries int
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a full synthetic race through the arena",
		Long: `Run one complete race through the arena: open the database, seat a bot
opponent against a locally driven host, count down, start, stream every
accepted snapshot to the log, and persist canonical results for both
participants. Both seats type at their tier's pace.

This exercises the full cycle a networked deployment would run per race:
command, compare-and-swap persistence, broadcast, and verification. The
snapshot wire format is what a transport layer would carry.

Flags left at their defaults fall back to the TOML config file, then to
built-in defaults.

Examples:
  velotype serve --db ./velotype.db --text "the quick brown fox jumps over the lazy dog"
  velotype serve --db ./velotype.db --level pro --opponent beginner --seed 7 --speedup 100`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to TOML config file (default XDG config dir)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default XDG data dir)")
	cmd.Flags().StringVar(&opts.Level, "level", tiers.Intermediate, "host bot tier")
	cmd.Flags().StringVar(&opts.Opponent, "opponent", tiers.Intermediate, "opponent bot tier")
	cmd.Flags().StringVar(&opts.Text, "text", "the quick brown fox jumps over the lazy dog", "race text")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "random seed (0 means time-seeded)")
	cmd.Flags().Int64Var(&opts.Speedup, "speedup", 1, "divide bot pauses by this factor")
	cmd.Flags().IntVar(&opts.MaxRetries, "max-retries", 0, "save conflict retry limit (0 means built-in default)")

	return cmd
}

// applyConfig fills in options the user did not set on the command line
// from the TOML config file.
func applyConfig(opts *ServeOptions, cmd *cobra.Command) error {
	path := opts.Config
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	flags := cmd.Flags()
	if !flags.Changed("db") && opts.Database == "" {
		opts.Database = config.DefaultDBPath()
		if cfg.Race.DBPath != nil {
			opts.Database = *cfg.Race.DBPath
		}
	}
	if !flags.Changed("level") && cfg.Bot.DefaultTier != nil {
		opts.Level = *cfg.Bot.DefaultTier
	}
	if !flags.Changed("opponent") && cfg.Bot.DefaultTier != nil {
		opts.Opponent = *cfg.Bot.DefaultTier
	}
	if !flags.Changed("seed") && cfg.Bot.Seed != nil {
		opts.Seed = *cfg.Bot.Seed
	}
	if !flags.Changed("speedup") && cfg.Bot.Speedup != nil {
		opts.Speedup = *cfg.Bot.Speedup
	}
	if !flags.Changed("max-retries") && cfg.Race.MaxRetries != nil {
		opts.MaxRetries = *cfg.Race.MaxRetries
	}
	return nil
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	if err := applyConfig(opts, cmd); err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))

	slog.Info("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	arenaOpts := []arena.Option{arena.WithBotSpeedup(opts.Speedup)}
	if opts.Seed != 0 {
		arenaOpts = append(arenaOpts, arena.WithSeed(opts.Seed))
	}
	if opts.MaxRetries > 0 {
		arenaOpts = append(arenaOpts, arena.WithMaxRetries(opts.MaxRetries))
	}
	h := hub.New()
	a := arena.New(st, h, arenaOpts...)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	final, err := raceOnce(ctx, a, h, opts)
	if err != nil {
		return err
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if err := formatter.Success(snapshotPayload(final), func(w io.Writer) {
		fmt.Fprintf(w, "Race %s finished: winner %s\n", final.ID, final.WinnerID)
		fmt.Fprintf(w, "  host:     %.2f wpm, %.2f%% progress\n", final.Host.WPM, final.Host.Progress)
		if final.Opponent != nil {
			fmt.Fprintf(w, "  opponent: %.2f wpm, %.2f%% progress\n", final.Opponent.WPM, final.Opponent.Progress)
		}
	}); err != nil {
		return err
	}
	return nil
}

// raceOnce seats a bot opponent against a paced host, runs the race to
// completion and returns the final snapshot.
func raceOnce(ctx context.Context, a *arena.Arena, h *hub.Hub, opts *ServeOptions) (race.Snapshot, error) {
	// The host seat is a human slot in the snapshot; it just happens to
	// be typed by the same pacing loop here.
	hostID := "local-host"
	snap, err := a.CreateRace(ctx, hostID, opts.Text)
	if err != nil {
		return race.Snapshot{}, WrapExitError(ExitCommandError, "failed to create race", err)
	}
	snap, oppID, err := a.AddBot(ctx, snap.ID, opts.Opponent)
	if err != nil {
		return race.Snapshot{}, WrapExitError(ExitCommandError, "failed to seat opponent bot", err)
	}

	updates, unsubscribe := h.Subscribe(snap.ID)
	defer unsubscribe()
	go func() {
		for s := range updates {
			slog.Debug("snapshot",
				"race_id", s.ID,
				"status", s.Status,
				"version", s.Version,
				"host_progress", s.Host.Progress)
		}
	}()

	if _, _, err := a.StartCountdown(ctx, snap.ID); err != nil {
		return race.Snapshot{}, WrapExitError(ExitCommandError, "failed to start countdown", err)
	}
	if _, _, err := a.StartRace(ctx, snap.ID); err != nil {
		return race.Snapshot{}, WrapExitError(ExitCommandError, "failed to start race", err)
	}

	g, raceCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.RunBot(raceCtx, snap.ID, hostID, opts.Level) })
	g.Go(func() error { return a.RunBot(raceCtx, snap.ID, oppID, opts.Opponent) })
	if err := g.Wait(); err != nil {
		return race.Snapshot{}, WrapExitError(ExitFailure, "race did not finish", err)
	}

	final, err := a.Store().GetRace(ctx, snap.ID)
	if err != nil {
		return race.Snapshot{}, WrapExitError(ExitCommandError, "failed to load final snapshot", err)
	}
	return final, nil
}

// snapshotPayload renders a snapshot in the canonical wire format for the
// JSON envelope.
func snapshotPayload(snap race.Snapshot) any {
	raw, err := race.Marshal(snap)
	if err != nil {
		return map[string]string{"id": snap.ID, "status": string(snap.Status)}
	}
	return json.RawMessage(raw)
}
