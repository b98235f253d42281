package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"aegisguard/internal/actions"
	"aegisguard/internal/bot"
	"aegisguard/internal/config"
	"aegisguard/internal/counter"
	"aegisguard/internal/engine"
	"aegisguard/internal/lockdown"
	"aegisguard/internal/metrics"
	"aegisguard/internal/modlog"
	"aegisguard/internal/panel"
	"aegisguard/internal/platform"
	"aegisguard/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		logger.Fatal("discord session init failed", zap.Error(err))
	}

	client := platform.NewDiscord(session)
	m := metrics.New()
	recorder := modlog.NewRecorder(store, logger)
	evaluator := engine.New(store, counter.NewWindows(), logger)
	executor := actions.NewExecutor(client, recorder, logger)
	panels := panel.NewManager(store, client, logger, m)
	locks := lockdown.NewCore(store, client, logger)

	botSvc := bot.New(cfg, logger, session, bot.Deps{
		Store:     store,
		Evaluator: evaluator,
		Executor:  executor,
		Panels:    panels,
		Lockdown:  locks,
		Recorder:  recorder,
		Metrics:   m,
	})

	if err := botSvc.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started")

	if cfg.RetentionDays > 0 {
		go runRetention(store, logger, cfg.RetentionDays)
	}

	var server *http.Server
	if cfg.Health.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		mux.Handle("/metrics", m.Handler())
		server = &http.Server{Addr: cfg.Health.Addr, Handler: mux}
		go func() {
			logger.Info("health endpoint enabled", zap.String("addr", cfg.Health.Addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("health server error", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if server != nil {
		_ = server.Shutdown(ctx)
	}
	botSvc.Close(ctx)
}

// runRetention trims old moderation log rows once a day.
func runRetention(store *storage.Store, logger *zap.Logger, days int) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		removed, err := store.CleanupModerationLogs(ctx, days)
		cancel()
		if err != nil {
			logger.Warn("moderation log cleanup failed", zap.Error(err))
			continue
		}
		if removed > 0 {
			logger.Info("moderation logs trimmed", zap.Int64("removed", removed))
		}
	}
}
