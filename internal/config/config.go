package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DatabaseURL   string
	RedisURL      string
	HTTPPort      int
	WebhookAPIKey string

	TelegramBotToken    string
	TelegramAdminChatID int64

	LogLevel  string
	LogFormat string

	SoftEscalationEvery      int
	ResetCounterOnDeactivate bool
	AccountLockTimeout       time.Duration
	RuleCacheTTL             time.Duration
	ReevaluationTradeLimit   int

	AuditPollSecs  int
	AuditGraceSecs int

	SSHPort                   int
	SSHHostKeyPath            string
	SSHAuthorizedFingerprints []string
}

func Load() *Config {
	cfg := &Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		WebhookAPIKey:    strings.TrimSpace(os.Getenv("WEBHOOK_API_KEY")),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
	}

	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}
	if cfg.WebhookAPIKey == "" {
		log.Println("Warning: WEBHOOK_API_KEY not set, webhook is unauthenticated")
	}
	if cfg.TelegramBotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set, admin relay disabled")
	}

	cfg.HTTPPort = positiveInt("HTTP_PORT", 8080)

	if v := strings.TrimSpace(os.Getenv("TELEGRAM_ADMIN_CHAT_ID")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.TelegramAdminChatID = n
		} else {
			log.Printf("Warning: invalid TELEGRAM_ADMIN_CHAT_ID=%q", v)
		}
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(os.Getenv("LOG_FORMAT")))
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		if cfg.LogFormat != "" {
			log.Printf("Warning: unsupported LOG_FORMAT=%q, defaulting to json", cfg.LogFormat)
		}
		cfg.LogFormat = "json"
	}

	cfg.SoftEscalationEvery = positiveInt("SOFT_ESCALATION_EVERY", 3)
	cfg.ResetCounterOnDeactivate = strings.EqualFold(strings.TrimSpace(os.Getenv("RESET_COUNTER_ON_DEACTIVATE")), "true")
	cfg.AccountLockTimeout = time.Duration(positiveInt("ACCOUNT_LOCK_TIMEOUT_MS", 5000)) * time.Millisecond
	cfg.RuleCacheTTL = time.Duration(positiveInt("RULE_CACHE_TTL_SECS", 60)) * time.Second
	cfg.ReevaluationTradeLimit = positiveInt("REEVALUATION_TRADE_LIMIT", 200)

	cfg.AuditPollSecs = positiveInt("AUDIT_POLL_SECS", 300)
	cfg.AuditGraceSecs = positiveInt("AUDIT_GRACE_SECS", 120)

	cfg.SSHPort = positiveInt("SSH_PORT", 2222)
	cfg.SSHHostKeyPath = strings.TrimSpace(os.Getenv("SSH_HOST_KEY_PATH"))
	if cfg.SSHHostKeyPath == "" {
		cfg.SSHHostKeyPath = ".ssh/riskwatch_ed25519"
	}
	for _, fp := range strings.Split(os.Getenv("SSH_AUTHORIZED_FINGERPRINTS"), ",") {
		if fp = strings.TrimSpace(fp); fp != "" {
			cfg.SSHAuthorizedFingerprints = append(cfg.SSHAuthorizedFingerprints, fp)
		}
	}

	return cfg
}

// positiveInt reads key as a positive integer, falling back to def when the
// value is missing or invalid.
func positiveInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("Warning: invalid %s=%q, defaulting to %d", key, v, def)
		return def
	}
	return n
}
