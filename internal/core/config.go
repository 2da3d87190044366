package core

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RecoveryAshes/imgenrich/internal/models"
	"github.com/spf13/viper"
)

const (
	// DefaultUserAgent 页面访问使用的User-Agent
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/143 Safari/537.36"

	// DefaultTypeValue 导航成功后写入的type值
	DefaultTypeValue = "HTML"
)

// Config 应用程序配置
type Config struct {
	Browser  BrowserSettings   `mapstructure:"browser"`
	Enrich   EnrichSettings    `mapstructure:"enrich"`
	Input    InputConfig       `mapstructure:"input"`
	Output   OutputConfig      `mapstructure:"output"`
	Download DownloadConfig    `mapstructure:"download"`
	Resource ResourceConfig    `mapstructure:"resource"`
	Headers  map[string]string `mapstructure:"headers"`
	Logging  LoggingConfig     `mapstructure:"logging"`
}

// BrowserSettings 浏览器和页面配置
type BrowserSettings struct {
	Mode             string        `mapstructure:"mode"` // dynamic | static
	Headless         bool          `mapstructure:"headless"`
	NoSandbox        bool          `mapstructure:"no_sandbox"`
	Bin              string        `mapstructure:"bin"`
	Stealth          bool          `mapstructure:"stealth"`
	IgnoreCertErrors bool          `mapstructure:"ignore_cert_errors"`
	ViewportWidth    int           `mapstructure:"viewport_width"`
	ViewportHeight   int           `mapstructure:"viewport_height"`
	UserAgent        string        `mapstructure:"user_agent"`
	NavTimeout       time.Duration `mapstructure:"nav_timeout"`
}

// EnrichSettings 处理流程配置
type EnrichSettings struct {
	TypeValue  string        `mapstructure:"type_value"`
	ImageExt   string        `mapstructure:"image_ext"`
	BatchDelay time.Duration `mapstructure:"batch_delay"`
	Progress   bool          `mapstructure:"progress"`
}

// InputConfig 输入配置
type InputConfig struct {
	DataFile string `mapstructure:"data_file"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	ResultFile string `mapstructure:"result_file"`
	ImageDir   string `mapstructure:"image_dir"`
	ReportDir  string `mapstructure:"report_dir"`
	Report     bool   `mapstructure:"report"`
}

// DownloadConfig 图片下载配置
type DownloadConfig struct {
	Timeout            time.Duration `mapstructure:"timeout"`
	TLSFingerprint     bool          `mapstructure:"tls_fingerprint"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
}

// ResourceConfig 资源检查配置
type ResourceConfig struct {
	MinFreeMemoryMB int `mapstructure:"min_free_memory_mb"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// LoadConfig 加载配置文件
// configPath为空时在 ./configs、. 和 ~/.imgenrich 中查找 config.yaml,找不到则使用默认值
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".imgenrich"))
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, &models.ConfigError{FilePath: configPath, Cause: err}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, &models.ConfigError{
			FilePath: v.ConfigFileUsed(),
			Cause:    fmt.Errorf("配置绑定失败: %w", err),
		}
	}
	if config.Headers == nil {
		config.Headers = make(map[string]string)
	}

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	v.SetDefault("browser.mode", string(models.ModeDynamic))
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.stealth", false)
	v.SetDefault("browser.ignore_cert_errors", false)
	v.SetDefault("browser.viewport_width", 1200)
	v.SetDefault("browser.viewport_height", 1600)
	v.SetDefault("browser.user_agent", DefaultUserAgent)
	v.SetDefault("browser.nav_timeout", 30*time.Second)

	v.SetDefault("enrich.type_value", DefaultTypeValue)
	v.SetDefault("enrich.image_ext", "jpg")
	v.SetDefault("enrich.batch_delay", time.Duration(0))
	v.SetDefault("enrich.progress", true)

	v.SetDefault("input.data_file", "data/test.json")

	v.SetDefault("output.result_file", "data_enrichi.json")
	v.SetDefault("output.image_dir", "datajson")
	v.SetDefault("output.report_dir", "reports")
	v.SetDefault("output.report", false)

	v.SetDefault("download.timeout", time.Duration(0))
	v.SetDefault("download.tls_fingerprint", false)
	v.SetDefault("download.insecure_skip_verify", false)

	v.SetDefault("resource.min_free_memory_mb", 512)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)
}

// Mode 解析访问模式
func (c *Config) Mode() (models.EnrichMode, error) {
	return models.ParseMode(c.Browser.Mode)
}

// EnrichConfig 提取单条记录的处理配置
func (c *Config) EnrichConfig() models.EnrichConfig {
	return models.EnrichConfig{
		ImageDir:       c.Output.ImageDir,
		ImageExt:       c.Enrich.ImageExt,
		TypeValue:      c.Enrich.TypeValue,
		NavTimeout:     c.Browser.NavTimeout,
		ViewportWidth:  c.Browser.ViewportWidth,
		ViewportHeight: c.Browser.ViewportHeight,
		UserAgent:      c.Browser.UserAgent,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if _, err := c.Mode(); err != nil {
		return err
	}
	if c.Input.DataFile == "" {
		return fmt.Errorf("输入文件不能为空")
	}
	if c.Output.ResultFile == "" {
		return fmt.Errorf("结果文件不能为空")
	}
	if c.Enrich.BatchDelay < 0 {
		return fmt.Errorf("批处理间隔不能为负数")
	}
	if c.Download.Timeout < 0 {
		return fmt.Errorf("下载超时不能为负数")
	}
	enrich := c.EnrichConfig()
	return enrich.Validate()
}
