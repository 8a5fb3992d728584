package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string

	// Calendar
	// 「今日」の判定に使うタイムゾーン
	Location *time.Location

	// Prediction
	ModelDir         string
	RetrainEvery     int
	RetrainWorkers   int
	RetrainQueueSize int
	TrainIterations  int

	// Rate Limit (req/min/user)
	RateLimitGeneral int
	RateLimitToggle  int

	// Session
	SessionCleanupInterval time.Duration

	// Logging
	LogFormat string // json | text
	LogLevel  string // debug | info | warn | error
	LogFile   string // 空の場合はファイル出力しない
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.Location = getEnvLocation("TIMEZONE", time.UTC)
	cfg.ModelDir = getEnvString("MODEL_DIR", "models")
	cfg.RetrainEvery = getEnvPositiveInt("RETRAIN_EVERY", 20)
	cfg.RetrainWorkers = getEnvPositiveInt("RETRAIN_WORKERS", 2)
	cfg.RetrainQueueSize = getEnvPositiveInt("RETRAIN_QUEUE_SIZE", 64)
	cfg.TrainIterations = getEnvPositiveInt("TRAIN_ITERATIONS", 1000)
	cfg.RateLimitGeneral = getEnvPositiveInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitToggle = getEnvPositiveInt("RATE_LIMIT_TOGGLE", 60)
	cfg.SessionCleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", 24*time.Hour)
	cfg.LogFormat = strings.ToLower(getEnvString("LOG_FORMAT", "json"))
	cfg.LogLevel = strings.ToLower(getEnvString("LOG_LEVEL", "info"))
	cfg.LogFile = getEnvString("LOG_FILE", "")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// getEnvPositiveInt は正の整数のみを受け付ける。0以下はデフォルト値に戻す。
func getEnvPositiveInt(key string, defaultVal int) int {
	i := getEnvInt(key, defaultVal)
	if i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvLocation(key string, defaultVal *time.Location) *time.Location {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	loc, err := time.LoadLocation(v)
	if err != nil {
		return defaultVal
	}
	return loc
}
