package models

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// ValidateURL 验证URL
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("无效的URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL必须是HTTP或HTTPS协议")
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL必须包含主机名")
	}
	return nil
}

// ImageFileName 由记录id生成图片文件名
// id中的路径分隔符替换为下划线,空id使用unknown
func ImageFileName(id string, ext string) string {
	name := strings.NewReplacer("/", "_", "\\", "_").Replace(strings.TrimSpace(id))
	if name == "" || name == "." || name == ".." {
		name = "unknown"
	}
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return name
	}
	return name + "." + ext
}

// generateID 生成唯一ID
func generateID() string {
	return uuid.New().String()
}
