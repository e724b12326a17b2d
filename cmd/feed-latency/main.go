package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/betbot/feedlatency/internal/feeds"
	"github.com/betbot/feedlatency/internal/infrastructure/websocket"
	"github.com/betbot/feedlatency/internal/metrics"
	"github.com/betbot/feedlatency/internal/report"
	"github.com/betbot/feedlatency/internal/services"
	"github.com/betbot/feedlatency/pkg/config"
	"github.com/betbot/feedlatency/pkg/logger"
	"github.com/betbot/feedlatency/pkg/persistence"
	"github.com/betbot/feedlatency/pkg/shutdown"
)

func main() {
	// .env 可选，不存在时直接使用环境变量
	_ = godotenv.Load()

	if err := logger.InitDefault(); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load("")
	if err != nil {
		logger.Errorf("加载配置失败: %v", err)
		os.Exit(1)
	}

	symbol := flag.String("symbol", cfg.Symbol, "交易对，例如 BTC")
	duration := flag.Int("duration", cfg.DurationSeconds, "采样时长（秒）")
	flag.Parse()

	cfg.Symbol = feeds.NormalizeSymbol(*symbol)
	cfg.DurationSeconds = *duration
	if err := cfg.Validate(); err != nil {
		logger.Errorf("配置无效: %v", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		logger.Errorf("运行失败: %v", err)
		os.Exit(1)
	}
}

// runDir <output_dir>/<SYMBOL>_<YYYYmmdd_HHMMSS>
func runDir(cfg *config.Config, now time.Time) string {
	return filepath.Join(cfg.OutputDir, fmt.Sprintf("%s_%s", cfg.Symbol, now.Format("20060102_150405")))
}

func run(cfg *config.Config) error {
	dir := runDir(cfg, time.Now())
	if err := logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputFile: filepath.Join(dir, "run.log"),
		MaxSize:    50,
		MaxBackups: 1,
	}); err != nil {
		return fmt.Errorf("初始化运行日志失败: %w", err)
	}

	shutdowns := shutdown.NewManager()
	shutdowns.OnShutdown("logger", func(ctx context.Context) error { return logger.Close() })
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdowns.Shutdown(ctx)
	}()

	// Ctrl+C：采样提前结束，已收集的样本照常统计
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		srv, err := metrics.StartAsync(ctx, cfg.MetricsAddr)
		if err != nil {
			logger.Warnf("metrics 服务启动失败: %v", err)
		} else {
			shutdowns.OnShutdown("metrics", srv.Shutdown)
		}
	}

	logger.Infof("📁 输出目录: %s", dir)
	restURL := cfg.Feeds.LighterRESTURL
	if restURL == "" {
		restURL = feeds.DefaultLighterRESTURL
	}

	svc := services.NewComparisonService(services.Options{
		Symbol:        cfg.Symbol,
		Duration:      cfg.Duration(),
		RunDir:        dir,
		ExtendedURL:   cfg.Feeds.ExtendedURL,
		LighterURL:    cfg.Feeds.LighterURL,
		Lookup:        feeds.NewMarketLookup(restURL, cfg.LookupTimeout(), cfg.ProxyURL()),
		LookupTimeout: cfg.LookupTimeout(),
		Sampler: websocket.SamplerOptions{
			ReceiveTimeout: cfg.ReceiveTimeout(),
			ProgressEvery:  cfg.ProgressEvery,
			ProxyURL:       cfg.ProxyURL(),
		},
	})

	result, err := svc.Run(ctx)
	if err != nil {
		return err
	}

	in := result.ReportInput()
	path, err := report.WriteFile(dir, in)
	if err != nil {
		return err
	}
	metrics.ReportsGenerated.Add(1)

	fmt.Println()
	fmt.Print(report.Render(in))
	fmt.Println(report.Banner(in))

	if resultPath, err := result.SaveResult(persistence.NewJSONFileService(dir)); err != nil {
		logger.Warnf("%v", err)
	} else {
		logger.Infof("📄 结果: %s", resultPath)
	}
	logger.Infof("📄 报告: %s", path)
	return nil
}
