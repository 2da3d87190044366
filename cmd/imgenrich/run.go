package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/RecoveryAshes/imgenrich/internal/core"
	"github.com/RecoveryAshes/imgenrich/internal/crawlers"
	"github.com/RecoveryAshes/imgenrich/internal/models"
	"github.com/RecoveryAshes/imgenrich/internal/utils"
)

// run 加载数据集、逐条处理并写出结果
func run(ctx context.Context, config *core.Config) error {
	headerManager, err := core.NewHeaderManager(config.Headers, headers, config.Browser.UserAgent)
	if err != nil {
		return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
	}

	if validateConfig {
		return printValidation(config, headerManager)
	}

	if err := ValidateFlags(config); err != nil {
		return err
	}
	if err := headerManager.Validate(); err != nil {
		return fmt.Errorf("HTTP头部验证失败: %w", err)
	}
	mode, _ := config.Mode()

	utils.Info("🚀 imgenrich 启动")
	utils.Infof("访问模式: %s", mode)
	utils.Infof("输入文件: %s", config.Input.DataFile)
	utils.Infof("图片目录: %s", config.Output.ImageDir)
	utils.Debugf("请求头部: %s", headerManager)

	items, err := utils.LoadItems(config.Input.DataFile)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(config.Output.ImageDir, 0755); err != nil {
		return fmt.Errorf("创建图片目录失败: %w", err)
	}

	session, err := openSession(ctx, mode, config)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			utils.Warnf("关闭会话失败: %v", err)
		}
	}()

	downloader := crawlers.NewDownloader(crawlers.DownloaderConfig{
		Timeout:            config.Download.Timeout,
		TLSFingerprint:     config.Download.TLSFingerprint,
		InsecureSkipVerify: config.Download.InsecureSkipVerify,
	}, headerManager)

	pipeline, err := core.NewPipeline(session, downloader, headerManager, config.EnrichConfig(), config.Browser.Stealth)
	if err != nil {
		return err
	}

	runReport := models.NewRunReport(mode, time.Now())
	runReport.InputFile = config.Input.DataFile
	runReport.ResultFile = config.Output.ResultFile
	runReport.ImageDir = config.Output.ImageDir

	opts := core.BatchOptions{
		Delay:    config.Enrich.BatchDelay,
		Progress: config.Enrich.Progress,
		Report:   runReport,
	}
	if monitor := crawlers.NewResourceMonitor(config.Resource.MinFreeMemoryMB); monitor.Enabled() {
		opts.Memory = monitor
	}

	items, _, err = core.NewBatchRunner(pipeline, opts).Run(ctx, items)
	if err != nil {
		return fmt.Errorf("处理已中断,未写入结果文件: %w", err)
	}

	if err := utils.SaveItems(config.Output.ResultFile, items); err != nil {
		return err
	}

	if config.Output.Report {
		runReport.Finish(time.Now())
		if err := utils.NewReporter(config.Output.ReportDir).GenerateReport(runReport); err != nil {
			utils.Warnf("生成报告失败: %v", err)
		}
	}

	utils.Info("✨ 处理完成!")
	return nil
}

// openSession 按模式创建浏览会话
func openSession(ctx context.Context, mode models.EnrichMode, config *core.Config) (crawlers.Session, error) {
	switch mode {
	case models.ModeStatic:
		utils.Info("📄 静态模式: 不启动浏览器")
		return crawlers.NewStaticSession(crawlers.StaticConfig{
			IgnoreCertErrors: config.Browser.IgnoreCertErrors,
		}), nil
	default:
		utils.Info("🌐 启动浏览器...")
		session, err := crawlers.NewDynamicSession(ctx, crawlers.BrowserConfig{
			Headless:         config.Browser.Headless,
			NoSandbox:        config.Browser.NoSandbox,
			Bin:              config.Browser.Bin,
			IgnoreCertErrors: config.Browser.IgnoreCertErrors,
		})
		if err != nil {
			return nil, err
		}
		return session, nil
	}
}

// printValidation 验证配置并显示生效的请求头
func printValidation(config *core.Config, headerManager *core.HeaderManager) error {
	utils.Info("🔍 验证配置...")
	if err := ValidateFlags(config); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}
	if err := headerManager.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}

	safeHeaders := headerManager.GetSafeHeaders()
	names := make([]string, 0, len(safeHeaders))
	for name := range safeHeaders {
		names = append(names, name)
	}
	sort.Strings(names)

	utils.Info("✅ 配置验证通过!")
	utils.Infof("当前有效的HTTP头部 (%d个):", len(safeHeaders))
	for _, name := range names {
		utils.Infof("  %s: %s", name, safeHeaders[name])
	}
	return nil
}
