package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RecoveryAshes/imgenrich/internal/core"
	"github.com/RecoveryAshes/imgenrich/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string

	// HTTP头部参数
	headers        []string
	validateConfig bool

	// 输入输出参数
	inputFile  string
	resultFile string
	imageDir   string
	reportDir  string
	report     bool

	// 页面访问参数
	mode       string
	headless   bool
	noSandbox  bool
	browserBin string
	stealth    bool
	navTimeout time.Duration

	// 批量处理参数
	batchDelay time.Duration
	progress   bool
)

// appConfig 合并命令行参数后的配置
var appConfig *core.Config

var rootCmd = &cobra.Command{
	Use:   "imgenrich",
	Short: "为数据集中的页面下载主图",
	Long: `imgenrich - 页面主图提取与下载工具

逐条访问数据集中的页面,定位一张代表性图片并下载到本地:
  • og:image / twitter:image 优先
  • 其次为正文区域中居中显示的图片
  • 支持浏览器渲染(dynamic)和纯HTML(static)两种模式
  • 自定义HTTP请求头,日志中自动脱敏

示例:
  # 使用默认路径 (data/test.json → data_enrichi.json, 图片保存到 datajson/)
  imgenrich

  # 指定输入输出
  imgenrich -i data/articles.json -o enriched.json --image-dir images

  # 不启动浏览器,附加请求头
  imgenrich --mode static -H "Referer: https://example.com/"

  # 验证配置
  imgenrich --validate-config

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		applyFlagOverrides(cmd, config)
		appConfig = config

		logConfig := utils.LogConfig{
			Level:      config.Logging.Level,
			LogDir:     config.Logging.LogDir,
			MaxSize:    config.Logging.Rotation.MaxSize,
			MaxBackups: config.Logging.Rotation.MaxBackups,
			MaxAge:     config.Logging.Rotation.MaxAge,
			Compress:   config.Logging.Rotation.Compress,
		}
		if logLevel != "" {
			logConfig.Level = logLevel
		} else if verbose {
			logConfig.Level = "debug"
		}

		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), appConfig)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("imgenrich %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

// applyFlagOverrides 仅覆盖命令行中显式指定的参数
func applyFlagOverrides(cmd *cobra.Command, config *core.Config) {
	flags := cmd.Flags()
	if flags.Changed("input") {
		config.Input.DataFile = inputFile
	}
	if flags.Changed("result") {
		config.Output.ResultFile = resultFile
	}
	if flags.Changed("image-dir") {
		config.Output.ImageDir = imageDir
	}
	if flags.Changed("report-dir") {
		config.Output.ReportDir = reportDir
	}
	if flags.Changed("report") {
		config.Output.Report = report
	}
	if flags.Changed("mode") {
		config.Browser.Mode = mode
	}
	if flags.Changed("headless") {
		config.Browser.Headless = headless
	}
	if flags.Changed("no-sandbox") {
		config.Browser.NoSandbox = noSandbox
	}
	if flags.Changed("browser-bin") {
		config.Browser.Bin = browserBin
	}
	if flags.Changed("stealth") {
		config.Browser.Stealth = stealth
	}
	if flags.Changed("timeout") {
		config.Browser.NavTimeout = navTimeout
	}
	if flags.Changed("batch-delay") {
		config.Enrich.BatchDelay = batchDelay
	}
	if flags.Changed("progress") {
		config.Enrich.Progress = progress
	}
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	// HTTP头部参数
	rootCmd.PersistentFlags().StringSliceVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.PersistentFlags().BoolVar(&validateConfig, "validate-config", false, "验证配置并显示生效的请求头")

	// 输入输出参数
	rootCmd.Flags().StringVarP(&inputFile, "input", "i", "data/test.json", "输入数据集 (JSON数组)")
	rootCmd.Flags().StringVarP(&resultFile, "result", "o", "data_enrichi.json", "结果文件")
	rootCmd.Flags().StringVar(&imageDir, "image-dir", "datajson", "图片保存目录")
	rootCmd.Flags().StringVar(&reportDir, "report-dir", "reports", "运行报告目录")
	rootCmd.Flags().BoolVar(&report, "report", false, "生成运行报告")

	// 页面访问参数
	rootCmd.Flags().StringVarP(&mode, "mode", "m", "dynamic", "访问模式 (dynamic|static)")
	rootCmd.Flags().BoolVar(&headless, "headless", true, "无头浏览器模式")
	rootCmd.Flags().BoolVar(&noSandbox, "no-sandbox", false, "禁用浏览器沙箱 (容器内运行时使用)")
	rootCmd.Flags().StringVar(&browserBin, "browser-bin", "", "浏览器可执行文件路径")
	rootCmd.Flags().BoolVar(&stealth, "stealth", false, "注入stealth脚本")
	rootCmd.Flags().DurationVarP(&navTimeout, "timeout", "t", 30*time.Second, "页面加载超时")

	// 批量处理参数
	rootCmd.Flags().DurationVar(&batchDelay, "batch-delay", 0, "相邻两条记录之间的最小间隔")
	rootCmd.Flags().BoolVar(&progress, "progress", true, "显示进度条")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	// Ctrl+C 在当前记录处理完后停止,不写结果文件
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
