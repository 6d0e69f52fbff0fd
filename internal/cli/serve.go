package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"missioncontrol/api/internal/app"
	"missioncontrol/api/internal/config"
	"missioncontrol/api/internal/journal"
	"missioncontrol/api/internal/realtime"
	"missioncontrol/api/internal/search"
	"missioncontrol/api/internal/spatial"
	"missioncontrol/api/internal/tracker"
	"missioncontrol/api/internal/zone"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ingestion API and realtime feed",
		Long: `Run the HTTP API: tracker webhooks on /api/events, entity operations,
the point ledger and the /api/feed websocket.

Configuration comes from the environment (DATABASE_URL, MC_TOKEN_SECRET,
MC_WEBHOOK_SECRET, REDIS_URL, MEILI_URL, TRACKER_URL, ...).`,
		RunE: runServe,
	}
	cmd.Flags().String("addr", "", "Listen address (overrides API_ADDR)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Addr = addr
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dataStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer dataStore.DB().Close()

	dir := zone.Default()
	if strings.TrimSpace(cfg.ZonesFile) != "" {
		dir, err = zone.Load(cfg.ZonesFile)
		if err != nil {
			return fmt.Errorf("load zones: %w", err)
		}
	}

	hub := realtime.NewHub(0, nil)
	var publisher realtime.Publisher = hub
	var broker *realtime.RedisBroker
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for realtime fan-out")
		broker, err = realtime.NewRedisBroker(cfg.RedisURL, hub, nil)
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		defer broker.Close()
		if err := broker.Start(ctx); err != nil {
			return fmt.Errorf("redis subscribe failed: %w", err)
		}
		publisher = broker
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}

	var recorder journal.Recorder = journal.Discard
	if strings.TrimSpace(cfg.JournalDir) != "" {
		w := journal.NewWriter(cfg.JournalDir, "events")
		defer w.Close()
		recorder = w
	}

	var notifier tracker.Notifier = tracker.Noop{}
	if strings.TrimSpace(cfg.TrackerURL) != "" {
		notifier = tracker.NewHTTPNotifier(cfg.TrackerURL, cfg.TrackerToken, cfg.TrackerTimeout)
	}

	service := app.New(cfg, dataStore, app.Deps{
		Directory: dir,
		Allocator: spatial.New(dir, spatial.DefaultParams(), cfg.AllocatorSeed),
		Notifier:  notifier,
		Publisher: publisher,
		Search:    search.NewService(meiliClient, dataStore),
		Journal:   recorder,
	})

	feed := realtime.NewFeedServer(hub, service.Snapshot, cfg.CORSOrigin, nil)
	httpServer := app.NewHTTPServer(service, cfg, feed)
	if broker != nil {
		httpServer.AddReadinessCheck("redis", broker.Ping)
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Mission Control API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	return nil
}
