package core

import (
	"context"
	"time"

	"github.com/RecoveryAshes/imgenrich/internal/crawlers"
	"github.com/RecoveryAshes/imgenrich/internal/models"
	"github.com/RecoveryAshes/imgenrich/internal/utils"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/time/rate"
)

// ItemProcessor 单条记录处理器
type ItemProcessor interface {
	Process(ctx context.Context, item *models.Item) models.Outcome
}

// MemoryChecker 内存检查
type MemoryChecker interface {
	CheckMemory() (crawlers.MemoryStatus, error)
}

// BatchOptions 批处理选项
type BatchOptions struct {
	Delay    time.Duration     // 相邻两条记录之间的最小间隔
	Progress bool              // 显示进度条
	Memory   MemoryChecker     // 为nil时不检查内存
	Report   *models.RunReport // 为nil时不记录明细
}

// BatchRunner 按输入顺序逐条处理记录
type BatchRunner struct {
	processor ItemProcessor
	opts      BatchOptions
}

// BatchSummary 批处理摘要
type BatchSummary struct {
	Total          int
	Processed      int
	Downloaded     int
	NoImage        int
	DownloadFailed int
	NavFailed      int
	Duration       time.Duration
}

// NewBatchRunner 创建批处理器
func NewBatchRunner(processor ItemProcessor, opts BatchOptions) *BatchRunner {
	return &BatchRunner{processor: processor, opts: opts}
}

// Run 逐条处理记录并将结果合并回记录
// 单条失败不会中止批处理,上下文取消时在下一条记录开始前返回ctx错误
func (br *BatchRunner) Run(ctx context.Context, items []*models.Item) ([]*models.Item, *BatchSummary, error) {
	utils.Infof("🚀 开始处理: %d条记录", len(items))

	summary := &BatchSummary{Total: len(items)}
	startTime := time.Now()
	defer func() {
		summary.Duration = time.Since(startTime)
	}()

	var limiter *rate.Limiter
	if br.opts.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(br.opts.Delay), 1)
	}

	var bar *progressbar.ProgressBar
	if br.opts.Progress && len(items) > 0 {
		bar = utils.NewProgressBar(len(items), "🖼️  处理中")
	}

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			utils.Warnf("⏹️  处理已取消,完成 %d/%d", summary.Processed, len(items))
			return items, summary, err
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return items, summary, ctxErr
				}
				return items, summary, err
			}
		}

		br.checkMemory()

		utils.Debugf("[%d/%d] %s", i+1, len(items), item.URL)
		outcome := br.processor.Process(ctx, item)
		item.Apply(outcome)
		if br.opts.Report != nil {
			br.opts.Report.Record(item, outcome)
		}
		summary.record(outcome)

		if bar != nil {
			bar.Add(1)
		}
	}

	summary.Duration = time.Since(startTime)
	printSummary(summary)
	return items, summary, nil
}

func (br *BatchRunner) checkMemory() {
	if br.opts.Memory == nil {
		return
	}
	status, err := br.opts.Memory.CheckMemory()
	if err != nil || !status.Low {
		return
	}
	utils.Logger.Warn().
		Str("pressure", status.MemoryPressure).
		Uint64("available_mb", status.AvailableMemory/(1024*1024)).
		Msg("⚠️  可用内存不足")
}

func (s *BatchSummary) record(o models.Outcome) {
	s.Processed++
	switch o.State {
	case models.StateDownloaded:
		s.Downloaded++
	case models.StateNoImage:
		s.NoImage++
	case models.StateDownloadFailed:
		s.DownloadFailed++
	case models.StateNavFailed:
		s.NavFailed++
	}
}

// printSummary 打印批处理摘要
func printSummary(summary *BatchSummary) {
	utils.Info("==================================================")
	utils.Info("📊 处理摘要")
	utils.Info("==================================================")
	utils.Infof("总记录数: %d", summary.Total)
	utils.Infof("✅ 图片已下载: %d", summary.Downloaded)
	utils.Infof("🔍 未找到图片: %d", summary.NoImage)
	utils.Infof("❌ 下载失败: %d", summary.DownloadFailed)
	utils.Infof("❌ 页面加载失败: %d", summary.NavFailed)
	utils.Infof("⏱️  总耗时: %.2f秒", summary.Duration.Seconds())
	utils.Info("==================================================")
}
