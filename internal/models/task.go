package models

import (
	"fmt"
	"time"
)

// EnrichMode 页面访问模式
type EnrichMode string

const (
	ModeDynamic EnrichMode = "dynamic" // 浏览器渲染
	ModeStatic  EnrichMode = "static"  // 仅抓取HTML
)

// ParseMode 解析访问模式字符串
func ParseMode(s string) (EnrichMode, error) {
	switch EnrichMode(s) {
	case ModeDynamic, ModeStatic:
		return EnrichMode(s), nil
	default:
		return "", fmt.Errorf("无效的模式: %s (可选: dynamic, static)", s)
	}
}

// PipelineState 单条记录在流水线中的状态
type PipelineState string

const (
	StateStarted        PipelineState = "started"         // 已开始
	StateNavigated      PipelineState = "navigated"       // 页面已加载
	StateLocated        PipelineState = "located"         // 已定位图片
	StateDownloaded     PipelineState = "downloaded"      // 图片已下载
	StateDownloadFailed PipelineState = "download_failed" // 图片下载失败
	StateNoImage        PipelineState = "no_image"        // 未找到图片
	StateNavFailed      PipelineState = "nav_failed"      // 页面加载失败
	StateDone           PipelineState = "done"            // 已结束
)

// Shape 记录的终态形状
type Shape string

const (
	ShapeComplete     Shape = "complete"     // type + image_brute
	ShapeLoaded       Shape = "loaded"       // 仅type
	ShapeNavFailed    Shape = "nav_failed"   // 仅error
	ShapeUntouched    Shape = "untouched"    // 未处理
	ShapeInconsistent Shape = "inconsistent" // 不应出现的组合
)

// EnrichConfig 单条记录的处理配置
type EnrichConfig struct {
	ImageDir       string        `json:"image_dir"`       // 图片输出目录
	ImageExt       string        `json:"image_ext"`       // 图片扩展名 (默认:jpg)
	TypeValue      string        `json:"type_value"`      // 导航成功后写入的type值 (默认:HTML)
	NavTimeout     time.Duration `json:"nav_timeout"`     // 页面加载超时 (默认:30s)
	ViewportWidth  int           `json:"viewport_width"`  // 视口宽度 (默认:1200)
	ViewportHeight int           `json:"viewport_height"` // 视口高度 (默认:1600)
	UserAgent      string        `json:"user_agent"`      // 页面User-Agent
}

// Validate 验证配置
func (c *EnrichConfig) Validate() error {
	if c.ImageDir == "" {
		return fmt.Errorf("图片输出目录不能为空")
	}
	if c.ImageExt == "" {
		return fmt.Errorf("图片扩展名不能为空")
	}
	if c.TypeValue == "" {
		return fmt.Errorf("type值不能为空")
	}
	if c.NavTimeout <= 0 || c.NavTimeout > 5*time.Minute {
		return fmt.Errorf("页面加载超时必须在0-300秒之间")
	}
	if c.ViewportWidth < 1 || c.ViewportWidth > 10000 {
		return fmt.Errorf("视口宽度必须在1-10000之间")
	}
	if c.ViewportHeight < 1 || c.ViewportHeight > 10000 {
		return fmt.Errorf("视口高度必须在1-10000之间")
	}
	return nil
}
