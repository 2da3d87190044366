package core

import (
	"net/http"

	"github.com/RecoveryAshes/imgenrich/internal/models"
	"github.com/RecoveryAshes/imgenrich/internal/utils"
)

// HeaderManager 管理页面访问和图片下载共用的请求头部
// 实现 HeaderProvider 接口
type HeaderManager struct {
	defaults  http.Header
	config    http.Header
	cli       http.Header
	validator *utils.HeaderValidator
	redactor  *utils.HeaderRedactor
}

// NewHeaderManager 创建头部管理器
// 优先级: 默认 < 配置文件 headers < 命令行 -H
func NewHeaderManager(configHeaders map[string]string, cliHeaders []string, userAgent string) (*HeaderManager, error) {
	cli, err := models.CliHeaders(cliHeaders).Parse()
	if err != nil {
		return nil, err
	}

	config := make(http.Header, len(configHeaders))
	for name, value := range configHeaders {
		config.Set(name, value)
	}

	return &HeaderManager{
		defaults:  defaultHeaders(userAgent),
		config:    config,
		cli:       cli,
		validator: utils.NewHeaderValidator(),
		redactor:  utils.NewHeaderRedactor(),
	}, nil
}

func defaultHeaders(userAgent string) http.Header {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return http.Header{
		"User-Agent":      []string{userAgent},
		"Accept-Language": []string{"fr-FR,fr;q=0.9,en;q=0.8"},
	}
}

// Validate 依次验证配置文件和命令行头部
func (hm *HeaderManager) Validate() error {
	if err := hm.validator.Validate(hm.config); err != nil {
		utils.Errorf("配置文件头部验证失败: %v", err)
		return err
	}
	if err := hm.validator.Validate(hm.cli); err != nil {
		utils.Errorf("命令行头部验证失败: %v", err)
		return err
	}
	return nil
}

// GetMergedHeaders 按优先级合并头部
func (hm *HeaderManager) GetMergedHeaders() http.Header {
	result := hm.defaults.Clone()
	for _, layer := range []http.Header{hm.config, hm.cli} {
		for name, values := range layer {
			result[name] = append([]string(nil), values...)
		}
	}
	return result
}

// GetSafeHeaders 返回脱敏后的头部 (用于日志)
func (hm *HeaderManager) GetSafeHeaders() map[string]string {
	return hm.redactor.Redact(hm.GetMergedHeaders())
}

// String 脱敏后的头部摘要
func (hm *HeaderManager) String() string {
	return hm.redactor.RedactToString(hm.GetMergedHeaders())
}

// GetHeaders 实现 HeaderProvider 接口
func (hm *HeaderManager) GetHeaders() (http.Header, error) {
	if err := hm.Validate(); err != nil {
		return nil, err
	}
	return hm.GetMergedHeaders(), nil
}
