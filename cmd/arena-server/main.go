package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/park285/cheese-arena/internal/archive"
	appcfg "github.com/park285/cheese-arena/internal/config"
	"github.com/park285/cheese-arena/internal/httpapi"
	"github.com/park285/cheese-arena/internal/hub"
	"github.com/park285/cheese-arena/internal/lobby"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/notify"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/internal/session"
	"github.com/park285/cheese-arena/internal/transport"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (ARENA_CONFIG)")
	flag.Parse()

	cfg, err := appcfg.Load(*configPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.Init(obslog.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		File:    cfg.LogFile,
		Caller:  cfg.LogCaller,
		Console: cfg.LogToConsole,
	}); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()
	logger := obslog.L()

	msgs, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		logger.Fatal("message catalog error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Result stores: each one is optional
	var (
		recorders archive.Multi
		results   httpapi.ResultSource
		closers   []func() error
	)
	if cfg.RedisURL != "" {
		store, err := archive.DialRedis(ctx, cfg.RedisURL, cfg.ResultTTL)
		if err != nil {
			logger.Fatal("redis init error", zap.Error(err))
		}
		recorders = append(recorders, store)
		results = store
		closers = append(closers, store.Close)
	}
	if cfg.DatabaseURL != "" {
		repo, err := archive.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("postgres init error", zap.Error(err))
		}
		recorders = append(recorders, repo)
		closers = append(closers, repo.Close)
	}
	if cfg.ResultWebhookURL != "" {
		recorders = append(recorders, notify.NewWebhook(cfg.ResultWebhookURL,
			notify.WithTimeout(cfg.WebhookTimeout),
			notify.WithRetry(cfg.WebhookRetries),
		))
	}

	bc := hub.NewBroadcaster(msgs)
	var registry *session.Registry
	pub := lobby.New(func() []session.Summary { return registry.ListOpen() }, bc.SendAll, cfg.LobbyInterval)
	registry = session.NewRegistry(rules.New(),
		session.WithEmitter(bc),
		session.WithOnChange(pub.Notify),
		session.WithInviteBase(cfg.InviteBaseURL),
	)

	var routerOpts []hub.RouterOption
	if len(recorders) > 0 {
		routerOpts = append(routerOpts, hub.WithRecorder(recorders, 10*time.Second))
	}
	router := hub.NewRouter(registry, bc, msgs, routerOpts...)

	wsServer := transport.NewServer(router, msgs, transport.Options{
		OriginPatterns:  cfg.AllowedOrigins,
		ReadLimit:       cfg.ReadLimit,
		SendQueue:       cfg.SendQueue,
		PingInterval:    cfg.PingInterval,
		WriteTimeout:    cfg.WriteTimeout,
		FramesPerSecond: cfg.FramesPerSecond,
		FrameBurst:      cfg.FrameBurst,
	})

	engine := httpapi.NewRouter(httpapi.Deps{
		Registry:    registry,
		Lobby:       pub,
		WS:          wsServer,
		Msgs:        msgs,
		Results:     results,
		Connections: bc.Count,
	})

	go pub.Run(ctx)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: engine, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Info("arena listening", zap.String("addr", cfg.HTTPAddr), zap.Int("recorders", len(recorders)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn("http shutdown error", zap.Error(err))
	}
	// hijacked websocket conns are not covered by Shutdown
	wsServer.Close()
	// 아카이브 기록이 끝날 때까지 대기
	router.Wait()
	for _, closeFn := range closers {
		_ = closeFn()
	}
}
