package crawlers

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// MetaKey 元数据标签的匹配方式
type MetaKey struct {
	Attr  string // property 或 name
	Value string // og:image 等
}

// Selector 返回对应的CSS选择器
func (k MetaKey) Selector() string {
	return `meta[` + k.Attr + `="` + k.Value + `"]`
}

var (
	// MetaOGImage Open Graph 图片
	MetaOGImage = MetaKey{Attr: "property", Value: "og:image"}
	// MetaTwitterImage Twitter 卡片图片
	MetaTwitterImage = MetaKey{Attr: "name", Value: "twitter:image"}

	// metaPriority 元数据查找顺序
	metaPriority = []MetaKey{MetaOGImage, MetaTwitterImage}
)

// ContentImageSelector 正文区域图片选择器
const ContentImageSelector = "article img, .article img"

// ContentImage 正文区域中的候选图片
type ContentImage struct {
	Index int    // 文档顺序中的位置
	Src   string // 解析后的src属性,可能为空
}

// ImageStyle 候选图片的计算样式
type ImageStyle struct {
	MarginLeft  string
	MarginRight string
	TextAlign   string
}

// IsCentered 左右外边距均为auto,或文本居中
func (s ImageStyle) IsCentered() bool {
	if strings.EqualFold(s.MarginLeft, "auto") && strings.EqualFold(s.MarginRight, "auto") {
		return true
	}
	return strings.EqualFold(s.TextAlign, "center")
}

// DocumentReader 已加载文档的只读查询能力
type DocumentReader interface {
	// MetaImage 返回第一个匹配元数据标签的content属性,不存在时返回空串
	MetaImage(ctx context.Context, key MetaKey) (string, error)
	// ContentImages 按文档顺序返回正文区域的候选图片
	ContentImages(ctx context.Context) ([]ContentImage, error)
	// ComputedStyle 返回候选图片的计算样式
	ComputedStyle(ctx context.Context, img ContentImage) (ImageStyle, error)
}

// Page 单个页面会话
type Page interface {
	DocumentReader
	// Navigate 加载页面,等待DOMContentLoaded或超时
	Navigate(ctx context.Context, pageURL string, timeout time.Duration) error
	// Close 释放页面资源,可重复调用
	Close() error
}

// PageOptions 页面创建参数
type PageOptions struct {
	ViewportWidth  int
	ViewportHeight int
	UserAgent      string
	ExtraHeaders   http.Header
	Stealth        bool
}

// Session 可创建页面的浏览会话
type Session interface {
	NewPage(ctx context.Context, opts PageOptions) (Page, error)
	Close() error
}
