package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dimitrije/assessor-collab/internal/collab"
	"github.com/dimitrije/assessor-collab/internal/config"
	"github.com/dimitrije/assessor-collab/internal/database"
	"github.com/dimitrije/assessor-collab/internal/handlers"
	"github.com/dimitrije/assessor-collab/internal/hub"
	"github.com/dimitrije/assessor-collab/internal/logging"
	authmw "github.com/dimitrije/assessor-collab/internal/middleware"
	"github.com/dimitrije/assessor-collab/internal/presence"
	"github.com/dimitrije/assessor-collab/internal/services"
	"github.com/dimitrije/assessor-collab/internal/suggest"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/m1z23r/drift/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	if closer := logging.Setup(cfg); closer != nil {
		defer closer.Close()
	}
	log := logging.Component("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	jwtService := services.NewJWTService(cfg.JWTSecret, cfg.JWTAccessExpiry)
	memberService := services.NewMemberService(db)
	suggestionService := services.NewSuggestionService(db)

	stores := collab.Stores{
		Entities:    services.NewEntityService(db),
		Members:     memberService,
		Workspaces:  services.NewWorkspaceService(db),
		Comments:    services.NewCommentService(db),
		Activity:    services.NewActivityService(db),
		Changes:     services.NewChangeService(db),
		Suggestions: suggestionService,
	}

	opts := []collab.Option{
		collab.WithSendBuffer(cfg.Session.SendBuffer),
		collab.WithSessionTTL(cfg.Session.IdleTTL),
	}

	if cfg.RedisURL != "" {
		rdb, err := presence.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rdb.Close()

		snapshot := presence.New(rdb, presence.DefaultKey)
		// Nobody is connected to a process that is just starting.
		if err := snapshot.Reset(ctx); err != nil {
			log.WithError(err).Warn("failed to reset presence snapshot")
		}
		opts = append(opts, collab.WithPresenceSnapshot(snapshot))
	}

	providers, err := suggest.FromConfig(cfg.Suggestion)
	if err != nil {
		log.Fatalf("Failed to configure suggestion providers: %v", err)
	}
	if len(providers) > 0 {
		registry := suggest.NewRegistry(suggest.DefaultBreakerSettings, providers...)
		bridge := suggest.NewBridge(registry, suggestionService, cfg.Suggestion.Cooldown)
		opts = append(opts, collab.WithSuggester(bridge, cfg.Suggestion.Timeout))
		log.WithField("providers", registry.ListProviders()).Info("suggestions enabled")
	} else {
		log.Info("no suggestion providers configured, suggestions disabled")
	}

	engine := collab.NewEngine(stores, hub.NewHub(), opts...)

	syncHandler := handlers.NewSyncHandler(engine, memberService, jwtService)
	workspaceHandler := handlers.NewWorkspaceHandler(engine)
	modelHandler := handlers.NewModelHandler(engine)
	commentHandler := handlers.NewCommentHandler(engine)
	suggestionHandler := handlers.NewSuggestionHandler(engine)

	app := drift.New()

	if cfg.IsProduction() {
		app.SetMode(drift.ReleaseMode)
	} else {
		app.SetMode(drift.DebugMode)
	}

	app.Use(middleware.Recovery())
	app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       86400,
	}))
	app.Use(middleware.BodyParser())

	api := app.Group("/api/v1")

	protected := api.Group("")
	protected.Use(authmw.Auth(jwtService))

	protected.Get("/presence", syncHandler.Presence)

	protected.Post("/workspaces", workspaceHandler.Create)
	protected.Post("/workspaces/:workspaceId/members", workspaceHandler.AddMember)
	protected.Delete("/workspaces/:workspaceId/members/:userId", workspaceHandler.RemoveMember)
	protected.Get("/workspaces/:workspaceId/activity", workspaceHandler.Activity)
	protected.Get("/workspaces/:workspaceId/suggestions", workspaceHandler.Suggestions)

	protected.Get("/models/:modelId/changes", modelHandler.Changes)
	protected.Get("/models/:modelId/comments", modelHandler.Comments)

	protected.Post("/comments/:commentId/resolve", commentHandler.Resolve)
	protected.Post("/comments/:commentId/replies", commentHandler.Reply)

	protected.Post("/suggestions/:suggestionId/apply", suggestionHandler.Apply)

	api.Get("/health", func(c *drift.Context) {
		_ = c.JSON(200, map[string]any{
			"status":      "ok",
			"onlineUsers": len(engine.GetActiveUsers()),
		})
	})

	// Authenticated by the ?token= query parameter inside the handler.
	api.Get("/ws", syncHandler.Connect)

	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		log.Infof("Server starting on %s", addr)
		if err := app.Run(addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("Metrics listening on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})
	if cfg.Session.SweepInterval > 0 {
		g.Go(func() error {
			return engine.RunJanitor(gctx, cfg.Session.SweepInterval)
		})
	}

	<-gctx.Done()
	log.Info("Shutting down server...")

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("background task failed")
	}
	engine.Close()
}
