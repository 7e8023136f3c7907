package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ai-trader/internal/api"
	"ai-trader/internal/auth"
	"ai-trader/internal/notify"
	"ai-trader/internal/performance"
	"ai-trader/internal/quotes"
	"ai-trader/internal/signals"
	"ai-trader/internal/store"
	"ai-trader/internal/trading"
)

func newServeCmd(app *App) *cobra.Command {
	var addr string
	var snapshotInterval time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the trading REST API server",
		Long: `Start the REST API server.

The server settles market orders synchronously against the local
SQLite ledger and records periodic equity snapshots until stopped
with SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = app.Config.Server.Addr
			}
			return runServe(cmd.Context(), app, addr, snapshotInterval)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().DurationVar(&snapshotInterval, "snapshot-interval", 15*time.Minute, "equity snapshot interval")

	return cmd
}

func runServe(ctx context.Context, app *App, addr string, snapshotInterval time.Duration) error {
	logger := app.Logger

	st, err := store.NewSQLiteStore(app.Config.Storage.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	qp := quotes.NewSimProvider(app.Config.MarketData.Volatility, app.Config.MarketData.StartPrices)
	sg := signals.NewGenerator(qp)
	sm := auth.NewManager(app.Config.Auth.SessionTTL)

	var notifier notify.Notifier = notify.NewNoOpNotifier()
	if app.Config.Notifications.Enabled {
		notifier = notify.NewMultiNotifier(&app.Config.Notifications)
	}

	engine := trading.NewEngine(st, qp, notifier, logger, trading.EngineConfig{
		Commission:  app.Config.Trading.Commission,
		InitialCash: app.Config.Trading.InitialCash,
	})

	server := api.NewServer(engine, qp, sg, sm, logger)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Handler(),
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	snapshotter := performance.NewSnapshotter(st, logger, snapshotInterval)
	go snapshotter.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
