package core

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/RecoveryAshes/imgenrich/internal/crawlers"
	"github.com/RecoveryAshes/imgenrich/internal/models"
	"github.com/RecoveryAshes/imgenrich/internal/utils"
	"github.com/rs/zerolog"
)

// ImageDownloader 图片下载器
type ImageDownloader interface {
	Download(ctx context.Context, imageURL string, dest string) (crawlers.DownloadResult, error)
}

// Pipeline 单条记录的处理流水线
// 页面加载 → 图片定位 → 图片下载,每条记录独立,失败不影响其他记录
type Pipeline struct {
	session    crawlers.Session
	downloader ImageDownloader
	headers    models.HeaderProvider
	config     models.EnrichConfig
	stealth    bool
}

// NewPipeline 创建流水线
func NewPipeline(session crawlers.Session, downloader ImageDownloader, headers models.HeaderProvider, config models.EnrichConfig, stealth bool) (*Pipeline, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if session == nil || downloader == nil {
		return nil, fmt.Errorf("会话和下载器不能为空")
	}
	if headers == nil {
		headers = models.StaticHeaders{}
	}
	return &Pipeline{
		session:    session,
		downloader: downloader,
		headers:    headers,
		config:     config,
		stealth:    stealth,
	}, nil
}

// Process 处理单条记录,返回不可变的处理结果
// 不修改item,合并由调用方负责
func (p *Pipeline) Process(ctx context.Context, item *models.Item) models.Outcome {
	logger := utils.Logger.With().
		Str("item", item.IDString()).
		Str("url", item.URL).
		Logger()

	outcome := p.process(ctx, item, logger)
	logger.Debug().
		Str("state", string(models.StateDone)).
		Str("result", string(outcome.State)).
		Bool("succeeded", outcome.Succeeded()).
		Msg("处理结束")
	return outcome
}

// process 执行各阶段,返回前页面已关闭
func (p *Pipeline) process(ctx context.Context, item *models.Item, logger zerolog.Logger) models.Outcome {
	state := models.StateStarted
	logger.Debug().Str("state", string(state)).Msg("开始处理")

	if err := models.ValidateURL(item.URL); err != nil {
		return p.navFailed(logger, "URL无效", err)
	}

	headers, err := p.headers.GetHeaders()
	if err != nil {
		return p.navFailed(logger, "获取请求头部失败", err)
	}

	// 页面与下载使用同一个合并后的User-Agent
	userAgent := headers.Get("User-Agent")
	if userAgent == "" {
		userAgent = p.config.UserAgent
	}

	page, err := p.session.NewPage(ctx, crawlers.PageOptions{
		ViewportWidth:  p.config.ViewportWidth,
		ViewportHeight: p.config.ViewportHeight,
		UserAgent:      userAgent,
		ExtraHeaders:   headers,
		Stealth:        p.stealth,
	})
	if err != nil {
		return p.navFailed(logger, "创建页面失败", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			logger.Debug().Err(err).Msg("关闭页面失败")
		}
	}()

	if err := page.Navigate(ctx, item.URL, p.config.NavTimeout); err != nil {
		return p.navFailed(logger, "页面加载失败", err)
	}
	state = models.StateNavigated
	logger.Debug().Str("state", string(state)).Msg("页面已加载")

	outcome := models.Outcome{Type: p.config.TypeValue}

	imageURL, found, err := crawlers.LocateImage(ctx, page)
	if err != nil {
		logger.Warn().Err(err).Msg("⚠️  图片定位出错,按未找到处理")
		return noImage(outcome, err.Error())
	}
	if !found {
		logger.Info().Msg("🔍 未找到图片")
		return noImage(outcome, "")
	}

	resolved, err := resolveImageURL(item.URL, imageURL)
	if err != nil {
		logger.Warn().Err(err).Str("image", imageURL).Msg("⚠️  图片地址无效")
		outcome.State = models.StateDownloadFailed
		outcome.ErrorKind = models.ErrorKindDownloadFailed
		outcome.ImageURL = imageURL
		outcome.Detail = err.Error()
		return outcome
	}
	outcome.ImageURL = resolved
	state = models.StateLocated
	logger.Debug().Str("state", string(state)).Str("image", resolved).Msg("已定位图片")

	dest := filepath.Join(p.config.ImageDir, models.ImageFileName(item.IDString(), p.config.ImageExt))
	result, err := p.downloader.Download(ctx, resolved, dest)
	if err != nil {
		logger.Error().Err(err).Str("image", resolved).Msg("❌ 图片下载失败")
		outcome.State = models.StateDownloadFailed
		outcome.ErrorKind = models.ErrorKindDownloadFailed
		outcome.Detail = err.Error()
		return outcome
	}

	logger.Info().Str("path", result.Path).Int64("bytes", result.Bytes).Msg("✅ 图片已下载")
	outcome.State = models.StateDownloaded
	outcome.ImagePath = result.Path
	return outcome
}

func (p *Pipeline) navFailed(logger zerolog.Logger, msg string, err error) models.Outcome {
	logger.Error().Err(err).Msg("❌ " + msg)
	return models.NavFailedOutcome(fmt.Sprintf("%s: %v", msg, err))
}

func noImage(outcome models.Outcome, detail string) models.Outcome {
	outcome.State = models.StateNoImage
	outcome.ErrorKind = models.ErrorKindNoImageFound
	outcome.Detail = detail
	return outcome
}

// resolveImageURL 以页面URL为基准解析相对图片地址
func resolveImageURL(pageURL, imageURL string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("解析页面URL失败: %w", err)
	}
	ref, err := url.Parse(imageURL)
	if err != nil {
		return "", fmt.Errorf("解析图片URL失败: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}
