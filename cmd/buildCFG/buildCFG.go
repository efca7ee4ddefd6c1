package buildCFG

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
)

type ServerConfig struct {
	Port string
}

type RabbitConfig struct {
	Url      string
	Exchange string
	Queue    string
}

type ReviewConfig struct {
	ReminderTimeout time.Duration
	InboxEmail      string
}

type AuthConfig struct {
	JWTSecret string
}

type MailConfig struct {
	From     string
	Password string
	SMTPHost string
	SMTPPort string
}

func BuildServerConfig(cfg *config.Config, log *zerolog.Logger) *ServerConfig {
	port := cfg.GetString("server.port")
	if port == "" {
		port = "8080"
		log.Warn().Msg("server.port not set, defaulting to 8080")
	}
	return &ServerConfig{Port: port}
}

func BuildDBConfig(cfg *config.Config, log *zerolog.Logger) (string, []string, *dbpg.Options, error) {
	masterDSN := cfg.GetString("db.master_dsn")
	if env := os.Getenv("DB_MASTER_DSN"); env != "" {
		masterDSN = env
	}
	if masterDSN == "" {
		return "", nil, nil, fmt.Errorf("db.master_dsn is not configured")
	}

	slaveDSNs := cfg.GetStringSlice("db.slave_dsns")

	opts := &dbpg.Options{
		MaxOpenConns: cfg.GetInt("db.max_open_conns"),
		MaxIdleConns: cfg.GetInt("db.max_idle_conns"),
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 10
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = 5
	}

	log.Info().Int("max_open_conns", opts.MaxOpenConns).Msg("DB config built")
	return masterDSN, slaveDSNs, opts, nil
}

func BuildRabbitConfig(cfg *config.Config, log *zerolog.Logger) (*RabbitConfig, error) {
	url := cfg.GetString("rabbit.url")
	if env := os.Getenv("RABBIT_URL"); env != "" {
		url = env
	}
	if url == "" {
		return nil, fmt.Errorf("rabbit.url is not configured")
	}

	rc := &RabbitConfig{
		Url:      url,
		Exchange: cfg.GetString("rabbit.exchange"),
		Queue:    cfg.GetString("rabbit.queue"),
	}
	if rc.Exchange == "" || rc.Queue == "" {
		return nil, fmt.Errorf("rabbit.exchange and rabbit.queue must be configured")
	}
	return rc, nil
}

func BuildReviewConfig(cfg *config.Config, log *zerolog.Logger) *ReviewConfig {
	minutes := cfg.GetInt("review.reminder_timeout_minutes")
	if minutes <= 0 {
		minutes = 1440
		log.Warn().Msg("review.reminder_timeout_minutes not set, defaulting to 24h")
	}
	return &ReviewConfig{
		ReminderTimeout: time.Duration(minutes) * time.Minute,
		InboxEmail:      cfg.GetString("review.inbox_email"),
	}
}

func BuildAuthConfig(cfg *config.Config, log *zerolog.Logger) (*AuthConfig, error) {
	secret := cfg.GetString("auth.jwt_secret")
	if env := os.Getenv("JWT_SECRET"); env != "" {
		secret = env
	}
	if secret == "" {
		return nil, fmt.Errorf("auth.jwt_secret is not configured")
	}
	return &AuthConfig{JWTSecret: secret}, nil
}

func BuildMailConfig(cfg *config.Config, log *zerolog.Logger) *MailConfig {
	mc := &MailConfig{
		From:     cfg.GetString("mail.from"),
		Password: cfg.GetString("mail.password"),
		SMTPHost: cfg.GetString("mail.smtp_host"),
		SMTPPort: cfg.GetString("mail.smtp_port"),
	}
	if env := os.Getenv("MAIL_PASSWORD"); env != "" {
		mc.Password = env
	}
	if mc.From == "" {
		log.Warn().Msg("mail.from not set, notification emails disabled")
	}
	return mc
}
