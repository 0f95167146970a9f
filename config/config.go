package config

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server      Server
	Database    Database
	Redis       Redis
	LLM         LLM
	Sandbox     Sandbox
	Queue       Queue
	Panel       Panel
	Mail        Mail
	LogLevel    string
	GinMode     string
	CacheSize   int
	PassPercent float64
}

type Server struct {
	Port string
}

type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type Redis struct {
	Addr     string
	Password string
	DB       int
}

type LLM struct {
	GeminiApiKey string
	Model        string
	Timeout      time.Duration
}

type Sandbox struct {
	Judge0URL     string
	Judge0ApiKey  string
	RatePerSecond float64
	Burst         int
}

type Queue struct {
	MaxAttempts   int
	EvalBackoff   time.Duration
	ReportBackoff time.Duration
	Concurrency   int
	PollInterval  time.Duration
}

type Panel struct {
	LockTTL     time.Duration
	LockWait    time.Duration
	PassPercent float64
}

type Mail struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

func NewConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	var config Config

	config.Server.Port = viper.GetString("SERVER_PORT")
	config.GinMode = viper.GetString("GIN_MODE")
	config.LogLevel = viper.GetString("LOG_LEVEL")

	config.Database.Host = viper.GetString("DATABASE_HOST")
	config.Database.Port = viper.GetString("DATABASE_PORT")
	config.Database.User = viper.GetString("DATABASE_USER")
	config.Database.Password = viper.GetString("DATABASE_PASSWORD")
	config.Database.Name = viper.GetString("DATABASE_NAME")

	config.Redis.Addr = viper.GetString("REDIS_ADDR")
	config.Redis.Password = viper.GetString("REDIS_PASSWORD")
	config.Redis.DB = viper.GetInt("REDIS_DB")

	config.LLM.GeminiApiKey = viper.GetString("GEMINI_API_KEY")
	config.LLM.Model = viper.GetString("GEMINI_MODEL")
	config.LLM.Timeout = time.Duration(viper.GetInt("LLM_TIMEOUT_SECONDS")) * time.Second

	config.Sandbox.Judge0URL = viper.GetString("JUDGE0_API_URL")
	config.Sandbox.Judge0ApiKey = viper.GetString("JUDGE0_API_KEY")
	config.Sandbox.RatePerSecond = viper.GetFloat64("SANDBOX_RATE_PER_SECOND")
	config.Sandbox.Burst = viper.GetInt("SANDBOX_BURST")

	config.Queue.MaxAttempts = viper.GetInt("EVAL_MAX_ATTEMPTS")
	config.Queue.EvalBackoff = time.Duration(viper.GetInt("EVAL_BACKOFF_MS")) * time.Millisecond
	config.Queue.ReportBackoff = time.Duration(viper.GetInt("REPORT_BACKOFF_MS")) * time.Millisecond
	config.Queue.Concurrency = viper.GetInt("WORKER_CONCURRENCY")
	config.Queue.PollInterval = time.Duration(viper.GetInt("QUEUE_POLL_MS")) * time.Millisecond

	config.Panel.LockTTL = time.Duration(viper.GetInt("SESSION_LOCK_TTL_SECONDS")) * time.Second
	config.Panel.LockWait = time.Duration(viper.GetInt("SESSION_LOCK_WAIT_SECONDS")) * time.Second
	config.Panel.PassPercent = viper.GetFloat64("PANEL_PASS_PERCENT")
	config.PassPercent = viper.GetFloat64("DEFAULT_PASS_PERCENT")

	config.Mail.Host = viper.GetString("SMTP_HOST")
	config.Mail.Port = viper.GetInt("SMTP_PORT")
	config.Mail.User = viper.GetString("SMTP_USER")
	config.Mail.Password = viper.GetString("SMTP_PASSWORD")
	config.Mail.From = viper.GetString("SMTP_FROM")

	config.CacheSize = viper.GetInt("QUESTION_CACHE_SIZE")

	log.Info().
		Str("port", config.Server.Port).
		Str("database", config.Database.Host+":"+config.Database.Port+"/"+config.Database.Name).
		Str("redis", config.Redis.Addr).
		Str("model", config.LLM.Model).
		Str("judge0", config.Sandbox.Judge0URL).
		Bool("geminiConfigured", config.LLM.GeminiApiKey != "").
		Bool("mailConfigured", config.Mail.User != "").
		Msg("Config loaded")
	return &config, nil
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("GIN_MODE", "debug")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DATABASE_HOST", "localhost")
	viper.SetDefault("DATABASE_PORT", "5432")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("GEMINI_MODEL", "gemini-1.5-flash")
	viper.SetDefault("LLM_TIMEOUT_SECONDS", 30)
	viper.SetDefault("JUDGE0_API_URL", "http://localhost:2358")
	viper.SetDefault("SANDBOX_RATE_PER_SECOND", 5)
	viper.SetDefault("SANDBOX_BURST", 5)
	viper.SetDefault("EVAL_MAX_ATTEMPTS", 3)
	viper.SetDefault("EVAL_BACKOFF_MS", 2000)
	viper.SetDefault("REPORT_BACKOFF_MS", 5000)
	viper.SetDefault("WORKER_CONCURRENCY", 4)
	viper.SetDefault("QUEUE_POLL_MS", 1000)
	viper.SetDefault("SESSION_LOCK_TTL_SECONDS", 90)
	viper.SetDefault("SESSION_LOCK_WAIT_SECONDS", 45)
	viper.SetDefault("PANEL_PASS_PERCENT", 60)
	viper.SetDefault("DEFAULT_PASS_PERCENT", 70)
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("QUESTION_CACHE_SIZE", 256)
}
