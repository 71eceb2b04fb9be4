package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"confluence-backend/internal/config"
	deliveryhttp "confluence-backend/internal/delivery/http"
	"confluence-backend/internal/delivery/websocket"
	"confluence-backend/internal/logger"
)

var (
	serverPort int
	logLevel   string
	noScanner  bool
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the HTTP API, WebSocket stream and scanner",
	Long: `Start the confluence service.

Components:
• REST API under /api/v1 (analysis, signals, devices, health)
• WebSocket snapshot stream at /api/v1/ws
• Background scanner for SCANNER_SYMBOLS (when SCANNER_ENABLED=true)
• Prometheus metrics at /metrics

Examples:
  confluence server                  # Start with environment settings
  confluence server --port 9090      # Override SERVER_PORT
  confluence server --log-level debug`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "Server port (overrides SERVER_PORT)")
	serverCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "Log level (debug, info, warn, error)")
	serverCmd.Flags().BoolVar(&noScanner, "no-scanner", false, "Disable the background scanner")
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, envFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if noScanner {
		cfg.Scanner.Enabled = false
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return err
	}
	log.Info("Starting confluence server")

	application, err := newApp(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Error("Failed to initialize application")
		return err
	}
	defer application.close()

	maxBytes := cfg.Server.MaxBodyBytes
	router := deliveryhttp.NewRouter(deliveryhttp.RouterDeps{
		Analysis:  deliveryhttp.NewAnalysisHandler(application.service, maxBytes, log),
		Signals:   deliveryhttp.NewSignalHandler(application.tracker, maxBytes, log),
		Devices:   deliveryhttp.NewDeviceHandler(application.devices, maxBytes),
		WebSocket: websocket.NewHandler(application.service, cfg.Server.WSPushInterval, log),
		Checks:    application.checks,
		Security:  cfg.Security,
		Metrics:   cfg.Monitoring.MetricsEnabled,
		Logger:    log,
	})

	srv := &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	scanDone := make(chan struct{})
	if application.scanner != nil {
		go func() {
			defer close(scanDone)
			application.scanner.Run(ctx)
		}()
	} else {
		close(scanDone)
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.WithComponent(log, "http").WithField("addr", srv.Addr).Info("Listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			log.WithError(err).Error("HTTP server failed")
			stop()
			<-scanDone
			return err
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP shutdown incomplete")
	}
	<-scanDone
	log.Info("Server stopped")
	return nil
}
