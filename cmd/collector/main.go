package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"cna-data-service/internal/collector"
	"cna-data-service/internal/config"
	"cna-data-service/internal/converter"
	"cna-data-service/internal/provider/eastmoney"
	"cna-data-service/internal/provider/sina"
	redisClient "cna-data-service/internal/redis"
	"cna-data-service/pkg/logger"
)

func main() {
	// 命令行参数
	var (
		configPath     = flag.String("config", ".env", "Configuration file path")
		symbols        = flag.String("symbols", "", "Comma-separated stock codes (overrides SYMBOLS)")
		tailBars       = flag.Int("tail-bars", 0, "Recent minute bars to fetch per symbol (overrides TAIL_BARS)")
		convert        = flag.Bool("convert", true, "Run conversion after each pass")
		loop           = flag.Bool("loop", false, "Keep collecting on a fixed interval")
		interval       = flag.Int("interval", 60, "Loop interval in seconds")
		onlyMarketOpen = flag.Bool("only-market-open", false, "Skip passes outside the A-share session")
		logLevel       = flag.String("log-level", "", "Log level (debug, info, warn, error)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 应用命令行参数覆盖配置
	if *symbols != "" {
		cfg.Symbols = config.SplitSymbols(*symbols)
	}
	if *tailBars > 0 {
		cfg.TailBars = *tailBars
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	if err := logger.Init(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	runner := buildRunner(cfg)
	defer closeMirror(runner)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("Received shutdown signal, stopping collector")
		cancel()
	}()

	if !*loop {
		if err := runOnce(ctx, cfg, runner, *convert, *onlyMarketOpen); err != nil {
			logrus.Errorf("Collection failed: %v", err)
			os.Exit(1)
		}
		return
	}

	logrus.Infof("Collector loop started: interval=%ds, symbols=%d", *interval, len(cfg.Symbols))
	ticker := time.NewTicker(time.Duration(*interval) * time.Second)
	defer ticker.Stop()

	if err := runOnce(ctx, cfg, runner, *convert, *onlyMarketOpen); err != nil {
		logrus.Errorf("Pass failed: %v", err)
	}
	for {
		select {
		case <-ctx.Done():
			logrus.Info("Collector loop stopped")
			return
		case <-ticker.C:
			if err := runOnce(ctx, cfg, runner, *convert, *onlyMarketOpen); err != nil {
				logrus.Errorf("Pass failed: %v", err)
			}
		}
	}
}

func buildRunner(cfg *config.Config) *collector.Runner {
	emClient := eastmoney.NewClient(cfg.EastmoneyQuoteBaseURL, cfg.EastmoneyHistBaseURL, cfg.HTTPTimeout, cfg.APIRequestsPerSec)
	sinaClient := sina.NewClient(cfg.SinaBaseURL, cfg.HTTPTimeout, cfg.APIRequestsPerSec)

	runner := &collector.Runner{
		MinuteSources: []collector.MinuteSource{
			collector.EastmoneyMinuteSource(emClient),
			collector.SinaMinuteSource(sinaClient),
		},
		Quotes: collector.EastmoneyQuoteSources(emClient),
		Retry: collector.RetryPolicy{
			Attempts: cfg.RetryAttempts,
			Sleep:    cfg.RetrySleep,
		},
		Symbols:        cfg.Symbols,
		TailBars:       cfg.TailBars,
		RawMinutePath:  cfg.RawMinutePath,
		RawQuotesPath:  cfg.RawQuotesPath,
		CheckpointPath: cfg.CheckpointPath,
	}

	if cfg.RedisAddr != "" {
		mirror := redisClient.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := mirror.Ping(context.Background()); err != nil {
			logrus.Warnf("Redis mirror unavailable, continuing without it: %v", err)
		} else {
			logrus.Infof("Redis mirror enabled: %s", cfg.RedisAddr)
			runner.Mirror = mirror
		}
	}
	return runner
}

func closeMirror(runner *collector.Runner) {
	if c, ok := runner.Mirror.(*redisClient.Client); ok {
		c.Close()
	}
}

func runOnce(ctx context.Context, cfg *config.Config, runner *collector.Runner, convert, onlyMarketOpen bool) error {
	if onlyMarketOpen && !collector.IsMarketOpen(time.Now()) {
		logrus.Info("Outside A-share session, skipping pass")
		return nil
	}

	summary, err := runner.RunPass(ctx)
	if err != nil {
		return err
	}

	out := map[string]interface{}{"collector": summary}
	if convert {
		convSummary, err := converter.Run(cfg.RawMinutePath, cfg.CanonicalPath, cfg.MaxFrames)
		if err != nil {
			return err
		}
		out["converter"] = convSummary
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
