package main

import (
	"context"
	"fmt"
	"log"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"riskwatch/internal/config"
	"riskwatch/internal/db"
	"riskwatch/internal/domain"
	"riskwatch/internal/logging"
	"riskwatch/internal/repository"
	"riskwatch/internal/risk"
	"riskwatch/internal/service"
	"riskwatch/internal/tui"
	"riskwatch/pkg/tracing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	"github.com/charmbracelet/wish/bubbletea"
	wishlogging "github.com/charmbracelet/wish/logging"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	gossh "golang.org/x/crypto/ssh"
)

var (
	loadEnvFunc       = godotenv.Load
	loadConfigFunc    = config.Load
	newLoggerFunc     = logging.New
	initPostgresFunc  = db.InitPostgres
	initTracerFunc    = tracing.InitTracer
	poolFunc          = currentPool
	newWishServerFunc = wish.NewServer
	setupSignalNotify = ossignal.Notify
	waitForSignalFunc = func(quit <-chan os.Signal) { <-quit }
)

func currentPool() repository.PgxPool {
	if db.Pool == nil {
		return nil
	}
	return db.Pool
}

// fingerprintAuth accepts only keys whose SHA256 fingerprint is allowlisted.
func fingerprintAuth(allowed []string, logger *zap.Logger) ssh.PublicKeyHandler {
	set := make(map[string]bool, len(allowed))
	for _, fp := range allowed {
		set[strings.TrimSpace(fp)] = true
	}
	return func(_ ssh.Context, key ssh.PublicKey) bool {
		fingerprint := gossh.FingerprintSHA256(key)
		if !set[fingerprint] {
			logger.Warn("SSH auth denied", zap.String("fingerprint", fingerprint))
			return false
		}
		logger.Info("SSH auth accepted", zap.String("fingerprint", fingerprint))
		return true
	}
}

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
	defer db.Close()

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
	accounts := repository.NewAccountRepository(pool, tracer)
	trades := repository.NewTradeRepository(pool, tracer)
	incidents := repository.NewIncidentRepository(pool, tracer)
	notifications := repository.NewNotificationRepository(pool, tracer)

	accountService := service.NewAccountService(tracer, logger, accounts, trades, risk.NewAccountLocker(cfg.AccountLockTimeout))
	incidentService := service.NewIncidentService(tracer, incidents, notifications)

	if len(cfg.SSHAuthorizedFingerprints) == 0 {
		logger.Warn("SSH_AUTHORIZED_FINGERPRINTS is empty, every login will be refused")
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.SSHPort)
	srv, err := newWishServerFunc(
		wish.WithAddress(addr),
		wish.WithHostKeyPath(cfg.SSHHostKeyPath),
		wish.WithPublicKeyAuth(fingerprintAuth(cfg.SSHAuthorizedFingerprints, logger)),
		wish.WithMiddleware(
			bubbletea.Middleware(func(s ssh.Session) (tea.Model, []tea.ProgramOption) {
				model := tui.NewAppModel(tui.Services{
					Incidents: incidentService,
					Accounts:  accountService,
					Caller:    domain.Caller{IsAdmin: true},
					Username:  s.User(),
				})
				pty, _, _ := s.Pty()
				model.SetSize(pty.Window.Width, pty.Window.Height)
				return model, []tea.ProgramOption{tea.WithAltScreen()}
			}),
			activeterm.Middleware(),
			wishlogging.Middleware(),
		),
	)
	if err != nil {
		logger.Fatal("failed to create SSH server", zap.Error(err))
	}

	if srv != nil {
		go func() {
			logger.Info("SSH server listening", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil {
				logger.Info("SSH server stopped", zap.Error(err))
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	logger.Info("shutting down SSH server")

	cancel()

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("SSH server shutdown error", zap.Error(err))
		}
	}

	logger.Info("SSH server exited")
}
