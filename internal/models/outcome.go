package models

import "fmt"

// ErrorKind 记录级错误类型
type ErrorKind string

const (
	ErrorKindNone           ErrorKind = ""
	ErrorKindPageLoadFailed ErrorKind = "PAGE_LOAD_FAILED" // 导航失败,写入记录
	ErrorKindNoImageFound   ErrorKind = "NO_IMAGE_FOUND"   // 未找到图片,不写入记录
	ErrorKindDownloadFailed ErrorKind = "DOWNLOAD_FAILED"  // 下载失败,仅记录日志和报告
)

// Persisted 该错误是否写入记录的error字段
func (k ErrorKind) Persisted() bool {
	return k == ErrorKindPageLoadFailed
}

// Outcome 单条记录的处理结果
// 由流水线产生,由批处理合并到记录
type Outcome struct {
	State     PipelineState // 最终状态
	ImagePath string        // 下载成功后的本地路径
	Type      string        // 导航成功后的分类标记
	ErrorKind ErrorKind     // 错误类型
	ImageURL  string        // 定位到的图片地址
	Detail    string        // 失败细节
}

// NavFailedOutcome 导航失败的结果
func NavFailedOutcome(detail string) Outcome {
	return Outcome{
		State:     StateNavFailed,
		ErrorKind: ErrorKindPageLoadFailed,
		Detail:    detail,
	}
}

// Succeeded 是否成功下载了图片
func (o Outcome) Succeeded() bool {
	return o.ImagePath != ""
}

// EnrichError 带类型的处理错误
type EnrichError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// NewEnrichError 创建处理错误
func NewEnrichError(kind ErrorKind, message string, err error) *EnrichError {
	return &EnrichError{Kind: kind, Message: message, Err: err}
}

// Error 实现error接口
func (e *EnrichError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap 支持errors.Unwrap
func (e *EnrichError) Unwrap() error {
	return e.Err
}
