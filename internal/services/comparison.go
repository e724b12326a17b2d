package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/betbot/feedlatency/internal/analysis"
	"github.com/betbot/feedlatency/internal/domain"
	"github.com/betbot/feedlatency/internal/feeds"
	"github.com/betbot/feedlatency/internal/infrastructure/websocket"
	"github.com/betbot/feedlatency/internal/metrics"
	"github.com/betbot/feedlatency/internal/recorder"
	"github.com/betbot/feedlatency/internal/report"
	"github.com/betbot/feedlatency/pkg/logger"
	"github.com/betbot/feedlatency/pkg/persistence"
	"github.com/betbot/feedlatency/pkg/syncgroup"
)

// MarketResolver 把交易对解析为数据源内部的市场编号
type MarketResolver interface {
	Resolve(ctx context.Context, symbol string) (*domain.Market, error)
}

// Options 一次对比运行的参数
type Options struct {
	Symbol   string
	Duration time.Duration
	RunDir   string // 本次运行的输出目录

	ExtendedURL string // 为空使用内置地址
	LighterURL  string

	Lookup        MarketResolver
	LookupTimeout time.Duration

	Sampler websocket.SamplerOptions
}

// FeedRun 单个数据源的运行结果
type FeedRun struct {
	Name        string
	LogPath     string
	LoggedLines int               // 实际写入采样日志的行数
	Market      *domain.Market    // 仅 Lighter
	Result      *websocket.Result // 查询失败时为 nil
	Stats       *domain.Stats     // 无样本时为 nil
	Err         error             // 查询失败或提前结束的原因
}

// SampleCount 样本数
func (r *FeedRun) SampleCount() int {
	if r == nil || r.Result == nil {
		return 0
	}
	return r.Result.Series.Len()
}

// RunResult 一次对比运行的完整结果
type RunResult struct {
	RunID      string
	Symbol     string
	Duration   time.Duration
	StartedAt  time.Time
	RunDir     string
	Extended   *FeedRun
	Lighter    *FeedRun
	Comparison *analysis.Comparison
}

// Feeds 按对比顺序返回（Extended 在前）
func (r *RunResult) Feeds() []*FeedRun {
	return []*FeedRun{r.Extended, r.Lighter}
}

// ComparisonService 并发采样两个数据源，汇合后统计并评分
type ComparisonService struct {
	opts Options
	log  *logrus.Entry
}

// NewComparisonService 创建对比服务
func NewComparisonService(opts Options) *ComparisonService {
	opts.Symbol = feeds.NormalizeSymbol(opts.Symbol)
	return &ComparisonService{
		opts: opts,
		log:  logger.WithField("component", "comparison"),
	}
}

// LogPath 数据源采样日志路径
func (s *ComparisonService) LogPath(feed string) string {
	return filepath.Join(s.opts.RunDir, feed+"_latency.log")
}

// Run 执行一次对比：两个采样任务并发运行，互不影响，全部结束后计算统计和得分
func (s *ComparisonService) Run(ctx context.Context) (*RunResult, error) {
	if s.opts.Duration <= 0 {
		return nil, fmt.Errorf("采样时长必须大于 0: %s", s.opts.Duration)
	}
	if err := os.MkdirAll(s.opts.RunDir, 0755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	result := &RunResult{
		RunID:     uuid.New().String(),
		Symbol:    s.opts.Symbol,
		Duration:  s.opts.Duration,
		StartedAt: time.Now(),
		RunDir:    s.opts.RunDir,
	}
	s.log.Infof("🚀 开始对比 %s，时长 %s，run_id=%s", result.Symbol, result.Duration, result.RunID)

	sg := syncgroup.NewSyncGroup()
	sg.Add(func() { result.Extended = s.runExtended(ctx) })
	sg.Add(func() { result.Lighter = s.runLighter(ctx) })
	sg.Run()
	sg.Wait()

	for _, p := range sg.Panics() {
		s.log.Errorf("采样任务异常: %v", p)
	}
	if result.Extended == nil {
		result.Extended = &FeedRun{Name: feeds.ExtendedName, LogPath: s.LogPath(feeds.ExtendedName), Err: fmt.Errorf("采样任务异常退出")}
	}
	if result.Lighter == nil {
		result.Lighter = &FeedRun{Name: feeds.LighterName, LogPath: s.LogPath(feeds.LighterName), Err: fmt.Errorf("采样任务异常退出")}
	}

	nominal := s.opts.Duration.Seconds()
	for _, fr := range result.Feeds() {
		if fr.Result != nil {
			fr.Stats = analysis.ComputeStats(fr.Result.Series, nominal)
		}
		if fr.Stats != nil {
			metrics.SetWindowStats(fr.Name, fr.Stats.Median, fr.Stats.JitterMean)
			logger.Debugf("[%s] 统计: %d 个样本，中位数 %.2fms，抖动 %.2fms",
				fr.Result.Series.Feed(), fr.Stats.Count, fr.Stats.Median, fr.Stats.JitterMean)
		} else {
			s.log.Warnf("[%s] 无有效数据", fr.Name)
		}
	}

	result.Comparison = analysis.Compare(result.Extended.feedStats(), result.Lighter.feedStats())
	if result.Comparison.Score != nil {
		for name, score := range result.Comparison.Score.PerFeedScore {
			metrics.SetScore(name, score)
		}
	}
	return result, nil
}

func (s *ComparisonService) runExtended(ctx context.Context) *FeedRun {
	return s.sample(ctx, feeds.Extended(s.opts.ExtendedURL))
}

// runLighter 先查询 market_id，失败则跳过该数据源
func (s *ComparisonService) runLighter(ctx context.Context) *FeedRun {
	fr := &FeedRun{Name: feeds.LighterName, LogPath: s.LogPath(feeds.LighterName)}
	if s.opts.Lookup == nil {
		fr.Err = fmt.Errorf("%w: 未配置市场查询", feeds.ErrLookup)
		return s.skip(fr)
	}

	lookupCtx := ctx
	if s.opts.LookupTimeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, s.opts.LookupTimeout)
		defer cancel()
	}
	market, err := s.opts.Lookup.Resolve(lookupCtx, s.opts.Symbol)
	if err != nil {
		metrics.IncLookupFailure(feeds.LighterName)
		fr.Err = err
		return s.skip(fr)
	}

	run := s.sample(ctx, feeds.LighterFor(s.opts.LighterURL, market))
	run.Market = market
	return run
}

// skip 跳过的数据源仍然留下一个空的采样日志，并输出 0 样本的结束行
func (s *ComparisonService) skip(fr *FeedRun) *FeedRun {
	log := s.log.WithField("feed", fr.Name)
	log.Warnf("跳过该数据源: %v", fr.Err)
	if rec, err := recorder.Open(fr.LogPath); err == nil {
		_ = rec.Close()
	}
	log.WithField("samples", 0).Warnf("采样结束: 0 个样本 (%v)", fr.Err)
	return fr
}

func (s *ComparisonService) sample(ctx context.Context, feed domain.FeedConfig) *FeedRun {
	fr := &FeedRun{Name: feed.Name, LogPath: s.LogPath(feed.Name)}

	rec, err := recorder.Open(fr.LogPath)
	if err != nil {
		s.log.Warnf("[%s] 打开采样日志失败，仅保留内存数据: %v", feed.Name, err)
	}

	var sink websocket.SampleSink
	if rec != nil {
		sink = rec
		defer rec.Close()
	}

	fr.Result = websocket.NewSampler(feed, sink, s.opts.Sampler).Run(ctx, s.opts.Symbol, s.opts.Duration)
	fr.Err = fr.Result.Err
	if rec != nil {
		fr.LoggedLines = rec.Lines()
		if n := fr.Result.Series.Len(); fr.LoggedLines != n {
			s.log.Warnf("[%s] 采样日志 %d 行，少于样本数 %d", feed.Name, fr.LoggedLines, n)
		}
	}
	return fr
}

// feedStats 评分输入，速率按实际采样窗口计算
func (r *FeedRun) feedStats() analysis.FeedStats {
	fs := analysis.FeedStats{Name: r.Name, Stats: r.Stats}
	if r.Result != nil {
		fs.WindowSeconds = r.Result.Elapsed().Seconds()
	}
	return fs
}

// feedSummary result.json 中的单个数据源
type feedSummary struct {
	Name           string        `json:"name"`
	LogFile        string        `json:"log_file"`
	LoggedLines    int           `json:"logged_lines"`
	MarketID       *int          `json:"market_id,omitempty"`
	Samples        int           `json:"samples"`
	Messages       int           `json:"messages"`
	Keepalives     int           `json:"keepalives"`
	Timeouts       int           `json:"timeouts"`
	ZeroTimestamps int           `json:"zero_timestamps"`
	ElapsedSeconds float64       `json:"elapsed_seconds"`
	Error          string        `json:"error,omitempty"`
	Stats          *domain.Stats `json:"stats"`
}

type runSummary struct {
	RunID           string               `json:"run_id"`
	Symbol          string               `json:"symbol"`
	DurationSeconds float64              `json:"duration_seconds"`
	StartedAt       time.Time            `json:"started_at"`
	Feeds           []feedSummary        `json:"feeds"`
	Comparison      *analysis.Comparison `json:"comparison"`
}

func (r *RunResult) summary() runSummary {
	out := runSummary{
		RunID:           r.RunID,
		Symbol:          r.Symbol,
		DurationSeconds: r.Duration.Seconds(),
		StartedAt:       r.StartedAt,
		Comparison:      r.Comparison,
	}
	for _, fr := range r.Feeds() {
		fs := feedSummary{
			Name:        fr.Name,
			LogFile:     filepath.Base(fr.LogPath),
			LoggedLines: fr.LoggedLines,
			Samples:     fr.SampleCount(),
			Stats:       fr.Stats,
		}
		if fr.Market != nil {
			id := fr.Market.MarketID
			fs.MarketID = &id
		}
		if res := fr.Result; res != nil {
			fs.Messages = res.Messages
			fs.Keepalives = res.Keepalives
			fs.Timeouts = res.Timeouts
			fs.ZeroTimestamps = res.ZeroTimestamps
			fs.ElapsedSeconds = res.Elapsed().Seconds()
		}
		if fr.Err != nil {
			fs.Error = fr.Err.Error()
		}
		out.Feeds = append(out.Feeds, fs)
	}
	return out
}

// SaveResult 写入 result.json
func (r *RunResult) SaveResult(service persistence.Service) (string, error) {
	store := service.NewStore("result")
	if err := store.Save(r.summary()); err != nil {
		return "", fmt.Errorf("写入 result.json 失败: %w", err)
	}
	return store.Path(), nil
}

// ReportInput 转换为报告输入
func (r *RunResult) ReportInput() report.Input {
	in := report.Input{
		RunID:       r.RunID,
		Symbol:      r.Symbol,
		Duration:    r.Duration,
		GeneratedAt: time.Now(),
		Comparison:  r.Comparison,
	}
	for _, fr := range r.Feeds() {
		sec := report.FeedSection{Name: fr.Name, Stats: fr.Stats}
		if res := fr.Result; res != nil {
			sec.Elapsed = res.Elapsed()
			sec.Messages = res.Messages
			sec.Keepalives = res.Keepalives
			sec.Timeouts = res.Timeouts
			sec.ZeroTimestamps = res.ZeroTimestamps
		}
		if fr.Err != nil {
			sec.Note = fr.Err.Error()
		}
		in.Feeds = append(in.Feeds, sec)
	}
	return in
}
