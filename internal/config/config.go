package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// 上游行情接口配置
	EastmoneyQuoteBaseURL string
	EastmoneyHistBaseURL  string
	SinaBaseURL           string

	// HTTP调用配置
	HTTPTimeout       time.Duration
	RetryAttempts     int
	RetrySleep        time.Duration
	APIRequestsPerSec int

	// 采集配置
	Symbols  []string
	TailBars int

	// 数据文件路径
	RawMinutePath  string
	RawQuotesPath  string
	CheckpointPath string
	CanonicalPath  string
	MaxFrames      int

	// 导出配置（空字符串表示禁用）
	ExportFormat string
	ExportPath   string

	// Redis镜像配置（地址为空则禁用）
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LogLevel string
}

func Load(configPath string) (*Config, error) {
	// 加载.env文件（如果存在）
	if _, err := os.Stat(configPath); err == nil {
		if err := godotenv.Load(configPath); err != nil {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{
		// 默认值
		EastmoneyQuoteBaseURL: getEnv("EASTMONEY_QUOTE_BASE_URL", "https://push2.eastmoney.com"),
		EastmoneyHistBaseURL:  getEnv("EASTMONEY_HIST_BASE_URL", "https://push2his.eastmoney.com"),
		SinaBaseURL:           getEnv("SINA_BASE_URL", "https://quotes.sina.cn"),

		HTTPTimeout:       time.Duration(getEnvInt("HTTP_TIMEOUT_SEC", 10)) * time.Second,
		RetryAttempts:     getEnvInt("RETRY_ATTEMPTS", 3),
		RetrySleep:        time.Duration(getEnvInt("RETRY_SLEEP_MS", 500)) * time.Millisecond,
		APIRequestsPerSec: getEnvInt("API_REQUESTS_PER_SEC", 5),

		TailBars: getEnvInt("TAIL_BARS", 8),

		RawMinutePath:  getEnv("RAW_MINUTE_PATH", "data/live/raw_minute.jsonl"),
		RawQuotesPath:  getEnv("RAW_QUOTES_PATH", "data/live/raw_quotes.json"),
		CheckpointPath: getEnv("CHECKPOINT_PATH", "data/live/checkpoint.json"),
		CanonicalPath:  getEnv("CANONICAL_PATH", "data/live/frames.1m.json"),
		MaxFrames:      getEnvInt("MAX_FRAMES", 20000),

		ExportFormat: getEnv("EXPORT_FORMAT", ""),
		ExportPath:   getEnv("EXPORT_PATH", "data/live/frames.1m"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	// 加载股票代码列表
	symbolsStr := getEnv("SYMBOLS", "")
	if symbolsStr != "" {
		cfg.Symbols = SplitSymbols(symbolsStr)
	} else {
		// 默认采集标的
		cfg.Symbols = []string{"600519", "300750", "601318", "000001", "688981"}
	}

	if cfg.MaxFrames < 1000 {
		cfg.MaxFrames = 1000
	}
	if cfg.TailBars < 1 {
		cfg.TailBars = 1
	}

	return cfg, nil
}

// SplitSymbols splits a comma-separated symbol list, dropping blanks.
func SplitSymbols(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
