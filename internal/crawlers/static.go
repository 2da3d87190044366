package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/RecoveryAshes/imgenrich/internal/utils"
	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"
)

// ErrPageNotLoaded 页面尚未成功加载
var ErrPageNotLoaded = errors.New("页面尚未加载")

// StaticConfig 静态模式配置
type StaticConfig struct {
	IgnoreCertErrors bool
	MaxBodySize      int // 字节,0表示使用colly默认值
}

// StaticSession 不启动浏览器,直接抓取HTML
type StaticSession struct {
	collector *colly.Collector
}

// NewStaticSession 创建静态会话
func NewStaticSession(cfg StaticConfig) *StaticSession {
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
	)

	// 4xx/5xx页面同样解析,与浏览器行为一致
	c.ParseHTTPErrorResponse = true
	if cfg.MaxBodySize > 0 {
		c.MaxBodySize = cfg.MaxBodySize
	}

	c.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.IgnoreCertErrors,
		},
	})
	if cfg.IgnoreCertErrors {
		utils.Debugf("静态模式: TLS证书验证已禁用")
	}

	return &StaticSession{collector: c}
}

// NewPage 实现Session接口
func (s *StaticSession) NewPage(_ context.Context, opts PageOptions) (Page, error) {
	return &StaticPage{collector: s.collector, opts: opts}, nil
}

// Close 实现Session接口
func (s *StaticSession) Close() error {
	return nil
}

// StaticPage 一次HTML抓取的结果
type StaticPage struct {
	collector *colly.Collector
	opts      PageOptions
	doc       *HTMLDocument
	closed    bool
}

// Navigate 抓取页面并解析
func (p *StaticPage) Navigate(ctx context.Context, pageURL string, timeout time.Duration) error {
	if p.closed {
		return ErrPageClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c := p.collector.Clone()
	c.Context = ctx
	c.SetRequestTimeout(timeout)

	c.OnRequest(func(r *colly.Request) {
		for name, values := range p.opts.ExtraHeaders {
			if len(values) > 0 {
				r.Headers.Set(name, values[0])
			}
		}
		if p.opts.UserAgent != "" {
			r.Headers.Set("User-Agent", p.opts.UserAgent)
		}
		r.Headers.Set("Accept-Encoding", "gzip, deflate, br")
	})

	// 编码转换统一在解压后完成,colly只看到不带charset的类型
	var contentType string
	c.OnResponseHeaders(func(r *colly.Response) {
		contentType = r.Headers.Get("Content-Type")
		if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
			r.Headers.Set("Content-Type", mediaType)
		}
	})

	var parseErr error
	c.OnResponse(func(r *colly.Response) {
		body, err := decompressBody(r.Headers.Get("Content-Encoding"), r.Body)
		if err != nil {
			parseErr = err
			return
		}
		doc, err := ParseHTMLDocument(body, contentType, r.Request.URL.String())
		if err != nil {
			parseErr = err
			return
		}
		p.doc = doc
	})

	if err := c.Visit(pageURL); err != nil {
		return fmt.Errorf("抓取页面失败: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if parseErr != nil {
		return parseErr
	}
	if p.doc == nil {
		return ErrPageNotLoaded
	}
	return nil
}

// MetaImage 实现DocumentReader接口
func (p *StaticPage) MetaImage(ctx context.Context, key MetaKey) (string, error) {
	if p.doc == nil {
		return "", ErrPageNotLoaded
	}
	return p.doc.MetaImage(ctx, key)
}

// ContentImages 实现DocumentReader接口
func (p *StaticPage) ContentImages(ctx context.Context) ([]ContentImage, error) {
	if p.doc == nil {
		return nil, ErrPageNotLoaded
	}
	return p.doc.ContentImages(ctx)
}

// ComputedStyle 实现DocumentReader接口
func (p *StaticPage) ComputedStyle(ctx context.Context, img ContentImage) (ImageStyle, error) {
	if p.doc == nil {
		return ImageStyle{}, ErrPageNotLoaded
	}
	return p.doc.ComputedStyle(ctx, img)
}

// Close 实现Page接口
func (p *StaticPage) Close() error {
	p.closed = true
	p.doc = nil
	return nil
}

// decompressBody 根据Content-Encoding解压响应体
// colly已自动解压gzip,此时响应体不再带gzip魔数,直接返回
func decompressBody(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "gzip":
		if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
			return body, nil
		}
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()
		return readAllWrapped(reader, "gzip")

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()
		return readAllWrapped(reader, "deflate")

	case "br":
		return readAllWrapped(brotli.NewReader(bytes.NewReader(body)), "brotli")

	case "", "identity":
		return body, nil

	default:
		utils.Warnf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}

func readAllWrapped(r io.Reader, name string) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%s读取失败: %w", name, err)
	}
	return data, nil
}
