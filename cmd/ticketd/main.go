package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	apiPkg "github.com/ticketd-io/ticketd/internal/api"
	"github.com/ticketd-io/ticketd/internal/command"
	"github.com/ticketd-io/ticketd/internal/config"
	"github.com/ticketd-io/ticketd/internal/lifecycle"
	"github.com/ticketd-io/ticketd/internal/logbuf"
	"github.com/ticketd-io/ticketd/internal/notify"
	"github.com/ticketd-io/ticketd/internal/platform"
	"github.com/ticketd-io/ticketd/internal/platform/slackchat"
	"github.com/ticketd-io/ticketd/internal/reaper"
	"github.com/ticketd-io/ticketd/internal/store"
	"github.com/ticketd-io/ticketd/internal/transcript"
)

func main() {
	configPath := flag.String("config", "", "Path to config JSON file")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	// Set up logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logBuf := logbuf.New(2000)
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logbuf.NewHandler(jsonHandler, logBuf))

	// Load config (file or env)
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("ticketd starting", "scope", cfg.Ticket.ScopeID, "driver", cfg.Store.Driver)

	// 1. Open the ticket store
	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		logger.Error("failed to create data dir", "dir", cfg.Data.Dir, "error", err)
		os.Exit(1)
	}
	var st store.Store
	switch cfg.Store.Driver {
	case "mysql":
		st, err = store.NewMySQLStore(cfg.Store.MySQL)
	default:
		st, err = store.NewSQLiteStore(cfg.Store.Path)
	}
	if err != nil {
		logger.Error("failed to open ticket store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	// store is released when the process exits

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Connect to Slack. The dispatcher needs the platform client and
	// the client needs the inbound handler, so the dispatcher is
	// forward-declared and the handler closure resolves it at call time.
	var dispatcher *command.Dispatcher
	handler := func(ctx context.Context, ev platform.Event) error {
		return dispatcher.HandleEvent(ctx, ev)
	}

	pf, err := slackchat.New(slackchat.Config{
		BotToken: cfg.Slack.BotToken,
		AppToken: cfg.Slack.AppToken,
	}, handler, logger.With("component", "slack"))
	if err != nil {
		logger.Error("failed to init slack client", "error", err)
		os.Exit(1)
	}

	// 3. Closure notification fan-out
	fanout := notify.NewFanout(logger.With("component", "notify"))
	if cfg.Ticket.LogChannel != "" {
		fanout.Register(&notify.LogChannel{Platform: pf, ChannelRef: cfg.Ticket.LogChannel})
	}
	fanout.Register(&notify.OwnerDM{Platform: pf})
	if cfg.Alert.TelegramToken != "" {
		alert, err := notify.NewOpsAlert(cfg.Alert.TelegramToken, cfg.Alert.ChatID)
		if err != nil {
			logger.Error("failed to init telegram alert target", "error", err)
			os.Exit(1)
		}
		fanout.Register(alert)
	}

	// 4. Reaper for deferred channel deletions
	rp := reaper.New(st, pf, logger.With("component", "reaper"))
	go safeGo(logger, "reaper", func() { rp.Start(ctx) })

	// 5. Lifecycle engine and command dispatcher
	art := transcript.New(cfg.Data.Dir)
	engine := lifecycle.New(lifecycle.Config{
		ServiceUserID: pf.BotID(),
		SupportRole:   cfg.Ticket.SupportRole,
		Container:     cfg.Ticket.Container,
		GraceDelay:    time.Duration(cfg.Ticket.GraceDelay) * time.Second,
	}, st, pf, art, fanout, rp, logger.With("component", "lifecycle"))

	dispatcher = command.New(engine, pf, cfg.Ticket.ScopeID, logger.With("component", "command"))

	go safeGo(logger, "slack-listener", func() { pf.Start(ctx) })
	logger.Info("slack listener started")

	// 6. Admin API server
	apiSrv := apiPkg.NewServer(st, apiPkg.Config{
		Host: cfg.API.Host,
		Port: cfg.API.Port,
		Key:  cfg.API.Key,
	}, logger.With("component", "api"), logBuf)

	go safeGo(logger, "api-server", func() { apiSrv.Start(ctx) })
	logger.Info("api server started", "port", cfg.API.Port)

	// 7. Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()
	pf.Stop()
	logger.Info("ticketd stopped")
}

// safeGo runs fn with panic recovery.
func safeGo(logger *slog.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("goroutine panicked", "name", name, "panic", fmt.Sprintf("%v", r))
		}
	}()
	fn()
}
