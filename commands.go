package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"knightwalk/scenario"
	"knightwalk/server"
	"knightwalk/walk"
)

var (
	logLevel string

	runConfigPath string
	runScenario   string
	runSeed       int64
	runWorkers    int

	movesSize    int
	movesTorus   bool
	movesBlocked []string

	serveAddr     string
	serveMaxSteps int
)

var rootCmd = &cobra.Command{
	Use:           "knightwalk",
	Short:         "Random knight's walk simulator and ring analysis",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(cmd.ErrOrStderr(), logLevel)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the built-in exercises or the scenarios of a YAML file",
	Args:  cobra.NoArgs,
	RunE:  runScenarios,
}

var movesCmd = &cobra.Command{
	Use:   "moves <square>",
	Short: "List the legal knight moves from a square",
	Args:  cobra.ExactArgs(1),
	RunE:  listMoves,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the walk engine over HTTP",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")

	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "YAML scenario file (defaults to the built-in exercises)")
	runCmd.Flags().StringVarP(&runScenario, "scenario", "s", "", "run only the named scenario")
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "override the scenario file seed")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "parallel walks (0 = GOMAXPROCS)")

	movesCmd.Flags().IntVar(&movesSize, "size", walk.DefaultBoardSize, "board side length")
	movesCmd.Flags().BoolVar(&movesTorus, "torus", false, "wrap coordinates around the board edges")
	movesCmd.Flags().StringSliceVar(&movesBlocked, "blocked", nil, "blocked squares in algebraic notation, e.g. d4,e5")

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().IntVar(&serveMaxSteps, "max-steps", 0, "largest step count accepted by /api/simulate (0 = default)")

	rootCmd.AddCommand(runCmd, movesCmd, serveCmd)
}

func setupLogging(w io.Writer, level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
	return nil
}

func loadScenarios() (scenario.File, error) {
	f := scenario.Defaults()
	if runConfigPath != "" {
		loaded, err := scenario.Load(runConfigPath)
		if err != nil {
			return scenario.File{}, err
		}
		f = loaded
	}
	if runSeed != 0 {
		f.Seed = runSeed
	}
	if runScenario != "" {
		sc, err := f.Find(runScenario)
		if err != nil {
			return scenario.File{}, err
		}
		f.Scenarios = []scenario.Scenario{sc}
	}
	return f, nil
}

func runScenarios(cmd *cobra.Command, args []string) error {
	f, err := loadScenarios()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := scenario.NewRunner(f.Seed)
	if runWorkers > 0 {
		runner.Parallelism = runWorkers
	}

	out := cmd.OutOrStdout()
	heading := headingStyle(out)
	for _, sc := range f.Scenarios {
		slog.Info("running scenario", "scenario", sc.Name, "board", sc.BoardSize, "torus", sc.Torus, "seed", f.Seed)
		results, err := runner.Run(ctx, sc)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, heading.Render(fmt.Sprintf("Exercise %s):", sc.Name)))
		fmt.Fprintln(out)
		if err := scenario.WriteResults(out, results); err != nil {
			return err
		}
		fmt.Fprint(out, "\n\n\n")
	}
	return nil
}

// headingStyle only colours output going to a terminal.
func headingStyle(w io.Writer) lipgloss.Style {
	style := lipgloss.NewStyle()
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		style = style.Bold(true).Foreground(lipgloss.Color("#20B9B4"))
	}
	return style
}

func listMoves(cmd *cobra.Command, args []string) error {
	blocked, err := walk.ParsePositions(movesBlocked)
	if err != nil {
		return fmt.Errorf("--blocked: %w", err)
	}
	cfg, err := walk.NewBoardConfig(movesSize, blocked, movesTorus)
	if err != nil {
		return err
	}
	from, err := walk.ParsePosition(args[0])
	if err != nil {
		return err
	}
	if !cfg.Inside(from) {
		return fmt.Errorf("%w: %s is off a %dx%d board", walk.ErrInvalidPosition, from, cfg.Size, cfg.Size)
	}

	moves := walk.GenerateMoves(from, cfg)
	names := make([]string, 0, len(moves))
	for _, m := range moves {
		names = append(names, walk.FormatPosition(m))
	}
	out := cmd.OutOrStdout()
	if len(names) == 0 {
		fmt.Fprintf(out, "%s: no legal moves\n", from)
		return nil
	}
	fmt.Fprintf(out, "%s: %s\n", from, strings.Join(names, " "))
	return nil
}

func serve(cmd *cobra.Command, args []string) error {
	srv := server.New(server.Options{Logger: slog.Default(), MaxSteps: serveMaxSteps})
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              serveAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("serving knight walk API", "addr", serveAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		slog.Info("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	}
}
