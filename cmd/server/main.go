package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"riskwatch/internal/bot"
	"riskwatch/internal/cache"
	"riskwatch/internal/config"
	"riskwatch/internal/db"
	"riskwatch/internal/handler"
	"riskwatch/internal/job"
	"riskwatch/internal/logging"
	"riskwatch/internal/repository"
	"riskwatch/internal/risk"
	"riskwatch/internal/service"
	"riskwatch/pkg/tracing"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	_ "riskwatch/docs"
)

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	newLoggerFunc          = logging.New
	initPostgresFunc       = db.InitPostgres
	initRedisFunc          = cache.InitRedis
	initTracerFunc         = tracing.InitTracer
	poolFunc               = currentPool
	redisFunc              = currentRedis
	startTelegramBotFunc   = bot.StartTelegramBot
	startAuditFunc         = func(a *job.DispatchAudit, ctx context.Context) { go a.Start(ctx) }
	newRouterFunc          = gin.New
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

func currentPool() repository.PgxPool {
	if db.Pool == nil {
		return nil
	}
	return db.Pool
}

func currentRedis() service.RedisClient {
	if cache.Client == nil {
		return nil
	}
	return cache.Client
}

// accountActions gives the dispatcher one view over account flags and the
// account's trades.
type accountActions struct {
	*repository.AccountRepository
	*repository.TradeRepository
}

// @title           Riskwatch API
// @version         1.0
// @description     Trade risk monitoring: ingests trade events, evaluates risk rules and records incidents.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey  ApiKeyAuth
// @in                          header
// @name                        X-API-Key
func main() {
	_ = loadEnvFunc()
	cfg := loadConfigFunc()

	logger, err := newLoggerFunc(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initPostgresFunc(ctx, cfg.DatabaseURL)
	initRedisFunc(ctx, cfg.RedisURL)
	defer db.Close()
	defer cache.Close()

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		logger.Fatal("failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn("error shutting down tracer provider", zap.Error(err))
		}
	}()

	pool := poolFunc()
	redisClient := redisFunc()

	// Repositories
	users := repository.NewUserRepository(pool, tracer)
	accounts := repository.NewAccountRepository(pool, tracer)
	trades := repository.NewTradeRepository(pool, tracer)
	rules := repository.NewRuleRepository(pool, tracer)
	incidents := repository.NewIncidentRepository(pool, tracer)
	notifications := repository.NewNotificationRepository(pool, tracer)

	// Risk engine
	locker := risk.NewAccountLocker(cfg.AccountLockTimeout)
	tracker := risk.NewViolationTracker(incidents, cfg.SoftEscalationEvery)
	priceService := service.NewPriceService(tracer, redisClient)
	ruleService := service.NewRuleService(tracer, logger, rules, redisClient, cfg.RuleCacheTTL, tracker, cfg.ResetCounterOnDeactivate)
	dispatcher := risk.NewActionDispatcher(tracer, logger,
		accountActions{AccountRepository: accounts, TradeRepository: trades},
		notifications, users, priceService)
	engine := risk.NewEngine(risk.EngineDeps{
		Accounts:   accounts,
		Rules:      ruleService,
		History:    trades,
		Marks:      incidents,
		Tracker:    tracker,
		Recorder:   risk.NewIncidentRecorder(tracer, incidents),
		Dispatcher: dispatcher,
		Locker:     locker,
		Logger:     logger,
		Tracer:     tracer,
	})

	// Services
	ingestService := service.NewIngestService(tracer, logger, engine, accounts, trades, priceService, cfg.ReevaluationTradeLimit)
	accountService := service.NewAccountService(tracer, logger, accounts, trades, engine.Locker())
	incidentService := service.NewIncidentService(tracer, incidents, notifications)

	// Admin relay and dispatch audit
	var relay job.Relay
	if r := startTelegramBotFunc(cfg.TelegramBotToken, cfg.TelegramAdminChatID, incidentService); r != nil {
		dispatcher.SetRelay(r)
		relay = r
	}
	audit := job.NewDispatchAudit(tracer, logger, incidents, relay, cfg.AuditPollSecs, cfg.AuditGraceSecs)
	startAuditFunc(audit, ctx)

	// HTTP
	h := handler.New(tracer, ingestService, ruleService, accountService, incidentService)

	r := newRouterFunc()
	r.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(logger, true))
	r.Use(otelgin.Middleware("riskwatch"))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "X-API-Key", "X-User-ID", "X-Request-ID"},
		ExposeHeaders:   []string{"X-Request-ID"},
		MaxAge:          12 * time.Hour,
	}))

	h.RegisterRoutes(r, cfg.WebhookAPIKey, users)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: r,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := startHTTPServerFunc(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	logger.Info("shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exiting")
}
