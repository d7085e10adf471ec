package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Config holds logger configuration
type Config struct {
	Level      string
	EnableFile bool
	FilePath   string
}

// DefaultConfig returns default logger configuration
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		EnableFile: false,
		FilePath:   "logs/cna-data-service.log",
	}
}

// Init initializes the process-wide logrus logger
func Init(level string) error {
	return InitWithConfig(&Config{Level: level})
}

// InitWithConfig initializes the logger with custom configuration
func InitWithConfig(cfg *Config) error {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	// 设置输出
	if cfg.EnableFile {
		if err := setupFileOutput(cfg.FilePath); err != nil {
			return fmt.Errorf("failed to setup file output: %w", err)
		}
	} else {
		logrus.SetOutput(os.Stdout)
	}

	// 解析日志级别
	logLevel, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %s: %w", cfg.Level, err)
	}
	logrus.SetLevel(logLevel)

	return nil
}

// setupFileOutput mirrors logs to a file alongside stdout
func setupFileOutput(filePath string) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	logrus.SetOutput(io.MultiWriter(os.Stdout, file))
	return nil
}
