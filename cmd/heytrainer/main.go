package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claude/heytrainer/internal/coach"
	"github.com/claude/heytrainer/internal/config"
	"github.com/claude/heytrainer/internal/mcp"
	"github.com/claude/heytrainer/internal/observe"
	"github.com/claude/heytrainer/internal/outbox"
	"github.com/claude/heytrainer/internal/server"
	"github.com/claude/heytrainer/internal/storage"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	mcpStdio := flag.Bool("mcp-stdio", false, "serve MCP over stdio against a remote server and exit")
	remote := flag.String("remote", "", "base URL of the remote server for -mcp-stdio")
	flag.Parse()

	if *mcpStdio {
		// stdout carries the MCP protocol.
		log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
		if err := serveStdio(*remote, log); err != nil {
			log.Error("mcp stdio failed", "error", err)
			os.Exit(1)
		}
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("HeyTrainer starting", "version", Version)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Run migrations
	dsn := cfg.Database.DSN()
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics must be installed before the first DefaultMetrics call.
	if cfg.Metrics.Enabled {
		shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: Version})
		if err != nil {
			log.Error("metrics init failed", "error", err)
			os.Exit(1)
		}
		defer shutdownMetrics(context.Background())
	}
	metrics := observe.DefaultMetrics()

	// Connect database
	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	// Failed end-of-session saves land in a local queue.
	queue, err := outbox.Open(cfg.Outbox.Dir)
	if err != nil {
		log.Error("failed to open outbox", "dir", cfg.Outbox.Dir, "error", err)
		os.Exit(1)
	}
	defer queue.Close()
	guard := outbox.NewGuard(db, queue, metrics, log.With("component", "outbox"))
	go guard.Run(ctx, cfg.Outbox.RetryInterval)

	sessions := coach.NewRegistry(db, guard, coach.Options{
		VoiceEnabled:      cfg.Voice.Enabled,
		SilenceTimeout:    cfg.Voice.SilenceTimeout,
		PhoneticTriggers:  cfg.Voice.PhoneticTriggers,
		PhoneticThreshold: cfg.Voice.PhoneticThreshold,
	}, metrics, log.With("component", "coach"))

	// The dev login owns requests without Tailscale and all MCP calls.
	devInfo := server.UserInfo{Login: cfg.Auth.DevLogin, DisplayName: "Local Dev User"}
	devUser, err := db.GetOrCreateUser(ctx, devInfo.Login, devInfo.DisplayName)
	if err != nil {
		log.Error("failed to create dev user", "login", devInfo.Login, "error", err)
		os.Exit(1)
	}

	// Create server
	srv := server.New(db, sessions, cfg.Auth.APIKey, log)
	srv.SetDevUser(devUser, devInfo)
	srv.SetOutbox(guard)
	if cfg.Metrics.Enabled {
		srv.SetMetrics(metrics, observe.Handler())
	}
	mcpSrv := mcp.New(mcp.Local{DB: db, Sessions: sessions}, Version, log.With("component", "mcp"))
	srv.SetMCP(mcp.HTTPHandler(mcpSrv, devUser))

	// Start server: tsnet or plain HTTP
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		lc, err := tsServer.LocalClient()
		if err != nil {
			log.Error("tsnet local client failed", "error", err)
			os.Exit(1)
		}
		srv.SetTailscale(lc)

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)", "user", devInfo.Login)
	}

	httpSrv := &http.Server{Handler: srv}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	// Sets of unfinished sessions go through the guard, so a database
	// outage leaves them in the outbox.
	if n := sessions.Len(); n > 0 {
		saved := sessions.FinishAll(shutdownCtx)
		log.Info("finished live sessions", "count", n, "saved", saved)
	}
	sessions.Close(shutdownCtx)
	log.Info("server stopped")
}

// serveStdio runs the MCP tools locally against a remote server's REST API.
func serveStdio(remote string, log *slog.Logger) error {
	if remote == "" {
		return fmt.Errorf("-remote is required with -mcp-stdio")
	}
	s := mcp.New(mcp.NewHTTPClient(remote), Version, log)
	return mcpserver.ServeStdio(s)
}
