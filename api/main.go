package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"farmalytica/api/advice"
	"farmalytica/api/predict"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "farmalytica",
	Short: "Farmalytica soil dashboard API",
	Long: `Farmalytica serves the soil dashboard: readings, classifier predictions,
fertilizer advice, inventory, tasks and weather warnings.

Run without a subcommand to start the HTTP server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = loadConfig(configPath); err != nil {
			return err
		}
		if logger, err = newLogger(cfg.LogLevel, verbose); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API (and the MQTT ingest when MQTT_BROKER is set)",
	RunE:  runServe,
}

var (
	adviseN, adviseP, adviseK, advisePH float64
	adviseLabel                         string
	adviseArea                          float64
)

var adviseCmd = &cobra.Command{
	Use:   "advise",
	Short: "Print rule-based advice and the fertilizer plan for one reading",
	Example: `  farmalytica advise --n 20 --p 10 --k 50 --ph 5.2 --prediction Poor --area 2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		lv := advice.Levels{N: adviseN, P: adviseP, K: adviseK, PH: advisePH}
		fmt.Fprint(cmd.OutOrStdout(), advice.Report(lv, advice.ParseLabel(adviseLabel), adviseArea, ""))
		return nil
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict N P K pH",
	Short: "Run the soil classifier once and print its label",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := predict.Request{
			N:  quoted(args[0]),
			P:  quoted(args[1]),
			K:  quoted(args[2]),
			PH: quoted(args[3]),
		}
		bridge := predict.New(predict.Config{
			Python:  cfg.PythonPath,
			Script:  cfg.PredictScript,
			Timeout: cfg.PredictTimeout,
		}, predict.ExecRunner{}, logger.Named("predict"))

		out, err := bridge.Predict(cmd.Context(), req)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out.Prediction)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (env CONFIG_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	adviseCmd.Flags().Float64Var(&adviseN, "n", 0, "nitrogen mg/kg")
	adviseCmd.Flags().Float64Var(&adviseP, "p", 0, "phosphorus mg/kg")
	adviseCmd.Flags().Float64Var(&adviseK, "k", 0, "potassium mg/kg")
	adviseCmd.Flags().Float64Var(&advisePH, "ph", 7, "soil pH")
	adviseCmd.Flags().StringVar(&adviseLabel, "prediction", "", "classifier label (Optimal, Average, Poor)")
	adviseCmd.Flags().Float64Var(&adviseArea, "area", 1, "farm area in hectares")

	rootCmd.AddCommand(serveCmd, adviseCmd, predictCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	app, err := newApp(startCtx, cfg, logger)
	cancel()
	if err != nil {
		return fmt.Errorf("mongo connect error: %w", err)
	}
	defer app.close(context.Background())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Farmalytica API listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.MQTTBroker != "" {
		ingest := newSensorIngest(cfg, logger.Named("ingest"), app.storeReading)
		g.Go(func() error {
			// the dashboard stays up without live probe data
			if err := ingest.run(gctx); err != nil {
				logger.Error("sensor ingest stopped", zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

// quoted passes a CLI argument through the same coercion as a JSON string field.
func quoted(s string) json.RawMessage {
	b, _ := json.Marshal(strings.TrimSpace(s))
	return b
}
