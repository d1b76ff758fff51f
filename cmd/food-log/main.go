// cmd/food-log/main.go
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mcp-food-log/internal/collab"
	"mcp-food-log/internal/config"
	"mcp-food-log/internal/display"
	"mcp-food-log/internal/nutrition"
	"mcp-food-log/internal/portions"
	"mcp-food-log/internal/recognition"
	"mcp-food-log/internal/server"
	"mcp-food-log/internal/storage"
	"mcp-food-log/internal/tracker"
)

var (
	verbose    bool
	configPath string

	photoPath  string
	denyCamera bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:     "food-log",
	Short:   "Photo-based food logging with per-100g nutrient scaling",
	Version: server.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the food log tools over MCP (SSE) and plain HTTP",
	RunE:  runServe,
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Log the foods in a photo interactively",
	Long: `Reads a photo from --photo, proposes the foods in it, asks how much of
each was eaten and prints the logged items with the day's totals.

Omitting --photo behaves like dismissing the camera.`,
	RunE: runLog,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")

	for _, cmd := range []*cobra.Command{serveCmd, logCmd} {
		cmd.Flags().String("off-base-url", nutrition.DefaultBaseURL, "Open Food Facts base URL")
		cmd.Flags().Duration("http-timeout", 10*time.Second, "Nutrition lookup timeout")
		cmd.Flags().String("user-agent", nutrition.DefaultUserAgent, "User-Agent for nutrition lookups")
		cmd.Flags().String("portions-file", "", "YAML portion table (defaults to the built-in table)")
	}

	serveCmd.Flags().String("host", "0.0.0.0", "Host address")
	serveCmd.Flags().Int("port", 8011, "Port for HTTP transport")
	serveCmd.Flags().String("db-path", storage.MemoryDSN, "Session journal database")
	serveCmd.Flags().String("public-url", "", "Base URL advertised to MCP SSE clients (defaults to http://<host>:<port>)")

	logCmd.Flags().StringVar(&photoPath, "photo", "", "Image file to log")
	logCmd.Flags().BoolVar(&denyCamera, "deny-camera", false, "Simulate a denied camera permission")

	rootCmd.AddCommand(serveCmd, logCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return err
	}

	srv, err := server.NewFoodLogServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("error during shutdown: %w", err)
	}
	return nil
}

func runLog(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return err
	}

	table := portions.New(portions.Default())
	if cfg.PortionsFile != "" {
		if table, err = portions.LoadFile(cfg.PortionsFile); err != nil {
			return err
		}
	}

	fetcher := nutrition.NewClient(
		nutrition.WithBaseURL(cfg.OFFBaseURL),
		nutrition.WithUserAgent(cfg.UserAgent),
		nutrition.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		nutrition.WithLogger(logger.Named("nutrition")),
	)

	return logPhoto(cmd.Context(), table, fetcher, cmd.InOrStdin(), cmd.OutOrStdout())
}

func logPhoto(ctx context.Context, table *portions.Table, fetcher tracker.Fetcher, in io.Reader, out io.Writer) error {
	t := tracker.New(recognition.Stub(), fetcher, table,
		tracker.WithLogger(logger.Named("tracker")),
		tracker.WithCamera(&collab.FileCamera{Allowed: !denyCamera, Path: photoPath}),
		tracker.WithPrompter(collab.NewLinePrompter(in, out)),
	)

	session := tracker.NewSession()
	result, err := t.TakePhoto(ctx, session)
	if err != nil {
		return err
	}
	logger.Debug("photo processed",
		zap.String("status", string(result.Status)),
		zap.Int("logged", result.Logged()))

	fmt.Fprintln(out)
	return display.Render(out, session.Photo, session.Items(), session.Totals())
}
