package crawlers

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

var contentImageMatcher = cascadia.MustCompile(ContentImageSelector)

// HTMLDocument 基于静态HTML的文档读取器
// 计算样式由内联样式、align属性和<center>祖先推算,不解析样式表
type HTMLDocument struct {
	doc     *goquery.Document
	baseURL *url.URL
	images  []*html.Node
}

// ParseHTMLDocument 解析HTML,按Content-Type或<meta charset>转码为UTF-8
// pageURL 用于解析图片的相对地址,可以为空
func ParseHTMLDocument(body []byte, contentType string, pageURL string) (*HTMLDocument, error) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("识别页面编码失败: %w", err)
	}

	root, err := html.Parse(reader)
	if err != nil {
		return nil, fmt.Errorf("解析HTML失败: %w", err)
	}

	doc := goquery.NewDocumentFromNode(root)
	base, _ := url.Parse(pageURL)
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok && base != nil {
		if ref, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = ref
		}
	}

	return &HTMLDocument{
		doc:     doc,
		baseURL: base,
		images:  doc.FindMatcher(contentImageMatcher).Nodes,
	}, nil
}

// MetaImage 实现DocumentReader接口
func (d *HTMLDocument) MetaImage(_ context.Context, key MetaKey) (string, error) {
	content, _ := d.doc.Find(key.Selector()).First().Attr("content")
	return content, nil
}

// ContentImages 实现DocumentReader接口
func (d *HTMLDocument) ContentImages(_ context.Context) ([]ContentImage, error) {
	images := make([]ContentImage, 0, len(d.images))
	for i, node := range d.images {
		images = append(images, ContentImage{
			Index: i,
			Src:   d.resolveSrc(attrValue(node, "src")),
		})
	}
	return images, nil
}

// ComputedStyle 实现DocumentReader接口
func (d *HTMLDocument) ComputedStyle(_ context.Context, img ContentImage) (ImageStyle, error) {
	if img.Index < 0 || img.Index >= len(d.images) {
		return ImageStyle{}, fmt.Errorf("图片索引越界: %d", img.Index)
	}
	node := d.images[img.Index]

	decls := parseInlineStyle(attrValue(node, "style"))
	left, right := marginSides(decls)
	return ImageStyle{
		MarginLeft:  left,
		MarginRight: right,
		TextAlign:   inheritedTextAlign(node),
	}, nil
}

// resolveSrc 与浏览器中img.src一致,返回绝对地址
func (d *HTMLDocument) resolveSrc(src string) string {
	src = strings.TrimSpace(src)
	if src == "" || d.baseURL == nil {
		return src
	}
	ref, err := d.baseURL.Parse(src)
	if err != nil {
		return src
	}
	return ref.String()
}

// styleDecl 单条CSS声明
type styleDecl struct {
	prop  string
	value string
}

// parseInlineStyle 按出现顺序解析style属性
func parseInlineStyle(style string) []styleDecl {
	var decls []styleDecl
	for _, part := range strings.Split(style, ";") {
		prop, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		value = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "!important"))
		if prop == "" {
			continue
		}
		decls = append(decls, styleDecl{prop: prop, value: strings.ToLower(strings.TrimSpace(value))})
	}
	return decls
}

// marginSides 计算左右外边距,后出现的声明覆盖先出现的
func marginSides(decls []styleDecl) (left, right string) {
	left, right = "0px", "0px"
	for _, decl := range decls {
		switch decl.prop {
		case "margin":
			fields := strings.Fields(decl.value)
			switch len(fields) {
			case 1:
				left, right = fields[0], fields[0]
			case 2, 3:
				left, right = fields[1], fields[1]
			case 4:
				right, left = fields[1], fields[3]
			}
		case "margin-left", "margin-inline-start":
			left = decl.value
		case "margin-right", "margin-inline-end":
			right = decl.value
		}
	}
	return left, right
}

// inheritedTextAlign 沿祖先链查找生效的text-align
func inheritedTextAlign(node *html.Node) string {
	for n := node; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}

		align := ""
		for _, decl := range parseInlineStyle(attrValue(n, "style")) {
			if decl.prop == "text-align" {
				align = decl.value
			}
		}
		if align != "" && align != "inherit" {
			return align
		}

		if n != node {
			if n.Data == "center" {
				return "center"
			}
			if a := strings.ToLower(strings.TrimSpace(attrValue(n, "align"))); a != "" {
				return a
			}
		}
	}
	return "start"
}

func attrValue(node *html.Node, name string) string {
	for _, attr := range node.Attr {
		if attr.Namespace == "" && strings.EqualFold(attr.Key, name) {
			return attr.Val
		}
	}
	return ""
}
