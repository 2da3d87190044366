package crawlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/RecoveryAshes/imgenrich/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"
)

// ErrPageClosed 页面已关闭
var ErrPageClosed = errors.New("页面已关闭")

const (
	metaImageJS = `(selector) => {
		const el = document.querySelector(selector);
		return el ? (el.getAttribute('content') || '') : '';
	}`

	// 地址与计算样式在同一次求值中读取,对应同一文档状态
	contentImagesJS = `(selector) => Array.from(document.querySelectorAll(selector)).map(img => {
		const s = window.getComputedStyle(img);
		return { src: img.src || '', marginLeft: s.marginLeft, marginRight: s.marginRight, textAlign: s.textAlign };
	})`
)

// BrowserConfig 浏览器启动配置
type BrowserConfig struct {
	Headless         bool
	NoSandbox        bool
	Bin              string // 浏览器可执行文件,为空时自动查找或下载
	IgnoreCertErrors bool
}

// DynamicSession 基于go-rod的浏览器会话
type DynamicSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewDynamicSession 启动浏览器并建立连接
func NewDynamicSession(ctx context.Context, cfg BrowserConfig) (*DynamicSession, error) {
	l := launcher.New().Context(ctx).Headless(cfg.Headless)
	if cfg.NoSandbox {
		l = l.NoSandbox(true)
	}
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}
	if cfg.IgnoreCertErrors {
		l = l.Set("ignore-certificate-errors")
		utils.Debugf("浏览器启动参数: --ignore-certificate-errors")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("启动浏览器失败: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("连接浏览器失败: %w", err)
	}

	utils.Debugf("浏览器已启动: %s", controlURL)
	return &DynamicSession{launcher: l, browser: browser}, nil
}

// NewPage 创建新标签页并应用视口、UA、头部和stealth设置
func (s *DynamicSession) NewPage(ctx context.Context, opts PageOptions) (Page, error) {
	page, err := s.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("创建标签页失败: %w", err)
	}
	// 脱离创建时的ctx,取消后仍能关闭标签页
	page = page.Context(context.Background())

	if err := configurePage(page, opts); err != nil {
		_ = page.Close()
		return nil, err
	}
	return &DynamicPage{page: page}, nil
}

func configurePage(page *rod.Page, opts PageOptions) error {
	if opts.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			utils.Warnf("注入stealth脚本失败,继续执行: %v", err)
		}
	}

	if opts.ViewportWidth > 0 && opts.ViewportHeight > 0 {
		err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             opts.ViewportWidth,
			Height:            opts.ViewportHeight,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			return fmt.Errorf("设置视口失败: %w", err)
		}
	}

	if opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent}); err != nil {
			return fmt.Errorf("设置User-Agent失败: %w", err)
		}
	}

	if headers := toHeadersMap(opts.ExtraHeaders); len(headers) > 0 {
		if err := (proto.NetworkSetExtraHTTPHeaders{Headers: headers}).Call(page); err != nil {
			return fmt.Errorf("设置请求头部失败: %w", err)
		}
	}
	return nil
}

// toHeadersMap 转换为CDP头部格式,User-Agent由SetUserAgent单独设置
func toHeadersMap(headers http.Header) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for name, values := range headers {
		if len(values) == 0 || strings.EqualFold(name, "User-Agent") {
			continue
		}
		m[name] = gson.New(values[0])
	}
	return m
}

// Close 关闭浏览器并清理用户数据目录
func (s *DynamicSession) Close() error {
	if s.browser == nil {
		return nil
	}
	err := s.browser.Close()
	s.launcher.Cleanup()
	s.browser = nil
	utils.Debugf("浏览器已关闭")
	return err
}

// DynamicPage 浏览器中的单个标签页
type DynamicPage struct {
	page   *rod.Page
	closed bool
	styles []ImageStyle // 最近一次ContentImages读取的样式,按Index对应
}

// Navigate 导航并等待DOMContentLoaded
func (p *DynamicPage) Navigate(ctx context.Context, pageURL string, timeout time.Duration) error {
	if p.closed {
		return ErrPageClosed
	}

	p.styles = nil

	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page := p.page.Context(navCtx)
	wait := page.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := page.Navigate(pageURL); err != nil {
		return fmt.Errorf("导航失败: %w", err)
	}
	wait()

	if err := navCtx.Err(); err != nil {
		return fmt.Errorf("等待DOMContentLoaded超时(%s): %w", timeout, err)
	}
	return nil
}

// MetaImage 实现DocumentReader接口
func (p *DynamicPage) MetaImage(ctx context.Context, key MetaKey) (string, error) {
	res, err := p.eval(ctx, metaImageJS, key.Selector())
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

// ContentImages 实现DocumentReader接口
// 同时缓存每张图片的计算样式,供ComputedStyle读取
func (p *DynamicPage) ContentImages(ctx context.Context) ([]ContentImage, error) {
	res, err := p.eval(ctx, contentImagesJS, ContentImageSelector)
	if err != nil {
		return nil, err
	}

	images, styles := decodeContentImages(res.Value)
	p.styles = styles
	return images, nil
}

// ComputedStyle 实现DocumentReader接口
func (p *DynamicPage) ComputedStyle(ctx context.Context, img ContentImage) (ImageStyle, error) {
	if p.closed {
		return ImageStyle{}, ErrPageClosed
	}
	if p.styles == nil {
		return ImageStyle{}, fmt.Errorf("尚未读取正文图片")
	}
	if img.Index < 0 || img.Index >= len(p.styles) {
		return ImageStyle{}, fmt.Errorf("图片序号越界: 第%d张,共%d张", img.Index, len(p.styles))
	}
	return p.styles[img.Index], nil
}

// decodeContentImages 解析contentImagesJS的返回值
func decodeContentImages(value gson.JSON) ([]ContentImage, []ImageStyle) {
	values := value.Arr()
	images := make([]ContentImage, 0, len(values))
	styles := make([]ImageStyle, 0, len(values))
	for i, v := range values {
		images = append(images, ContentImage{Index: i, Src: v.Get("src").Str()})
		styles = append(styles, ImageStyle{
			MarginLeft:  v.Get("marginLeft").Str(),
			MarginRight: v.Get("marginRight").Str(),
			TextAlign:   v.Get("textAlign").Str(),
		})
	}
	return images, styles
}

func (p *DynamicPage) eval(ctx context.Context, js string, args ...interface{}) (*proto.RuntimeRemoteObject, error) {
	if p.closed {
		return nil, ErrPageClosed
	}
	res, err := p.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return nil, fmt.Errorf("页面脚本执行失败: %w", err)
	}
	return res, nil
}

// Close 关闭标签页,可重复调用
func (p *DynamicPage) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return p.page.Close()
}
