package crawlers

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/RecoveryAshes/imgenrich/internal/models"
	"github.com/RecoveryAshes/imgenrich/internal/utils"
	utls "github.com/refraction-networking/utls"
)

// partSuffix 下载中的临时文件后缀
const partSuffix = ".part"

// HTTPStatusError 非200响应
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

// Error 实现error接口
func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// DownloaderConfig 下载器配置
type DownloaderConfig struct {
	Timeout            time.Duration // 单次下载超时,0表示不限制
	TLSFingerprint     bool          // 使用随机化的TLS ClientHello
	InsecureSkipVerify bool
}

// DownloadResult 下载成功的结果
type DownloadResult struct {
	Path  string
	Bytes int64
}

// Downloader 图片下载器
// http 使用普通传输,https 使用TLS传输,每个地址只尝试一次
type Downloader struct {
	headers models.HeaderProvider
	plain   *http.Client
	secure  *http.Client
}

// NewDownloader 创建下载器
func NewDownloader(cfg DownloaderConfig, headers models.HeaderProvider) *Downloader {
	plainTransport := &http.Transport{
		Proxy:       http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{Timeout: 30 * time.Second}).DialContext,
	}

	secureTransport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout: 15 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
	}
	if cfg.TLSFingerprint {
		insecure := cfg.InsecureSkipVerify
		secureTransport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialTLSRandomized(ctx, network, addr, insecure)
		}
	}

	return &Downloader{
		headers: headers,
		plain:   &http.Client{Transport: plainTransport, Timeout: cfg.Timeout, CheckRedirect: noRedirect},
		secure:  &http.Client{Transport: secureTransport, Timeout: cfg.Timeout, CheckRedirect: noRedirect},
	}
}

// noRedirect 不跟随重定向,3xx按非200处理
func noRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

// dialTLSRandomized 使用utls建立TLS连接
// 不协商ALPN,保证与http.Transport的HTTP/1.1一致
func dialTLSRandomized(ctx context.Context, network, addr string, insecure bool) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 30 * time.Second}
	rawConn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(addr)
	tlsConn := utls.UClient(rawConn, &utls.Config{
		ServerName:         host,
		InsecureSkipVerify: insecure,
	}, utls.HelloRandomizedNoALPN)

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}

// Download 下载imageURL到dest
// 只有200视为成功;失败时不会留下部分文件
func (d *Downloader) Download(ctx context.Context, imageURL string, dest string) (DownloadResult, error) {
	client, err := d.clientFor(imageURL)
	if err != nil {
		return DownloadResult{}, downloadError("不支持的图片地址", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return DownloadResult{}, downloadError("构建请求失败", err)
	}
	if err := d.applyHeaders(req); err != nil {
		return DownloadResult{}, downloadError("获取请求头部失败", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return DownloadResult{}, downloadError("请求失败", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return DownloadResult{}, downloadError("响应状态异常",
			&HTTPStatusError{URL: imageURL, StatusCode: resp.StatusCode})
	}

	written, err := writeAtomically(dest, resp.Body)
	if err != nil {
		return DownloadResult{}, downloadError("写入图片失败", err)
	}

	utils.Debugf("图片已保存: %s (%d 字节)", dest, written)
	return DownloadResult{Path: dest, Bytes: written}, nil
}

func (d *Downloader) clientFor(rawURL string) (*http.Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("缺少主机名: %s", rawURL)
	}

	switch parsed.Scheme {
	case "https":
		return d.secure, nil
	case "http":
		return d.plain, nil
	default:
		return nil, fmt.Errorf("不支持的协议: %q", parsed.Scheme)
	}
}

// applyHeaders 应用共享头部,Accept-Encoding交给Transport处理
func (d *Downloader) applyHeaders(req *http.Request) error {
	if d.headers != nil {
		headers, err := d.headers.GetHeaders()
		if err != nil {
			return err
		}
		for name, values := range headers {
			if len(values) > 0 {
				req.Header.Set(name, values[0])
			}
		}
	}
	req.Header.Del("Accept-Encoding")
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")
	}
	return nil
}

// writeAtomically 先写入临时文件,完整写入后再重命名
func writeAtomically(dest string, body io.Reader) (int64, error) {
	if dir := filepath.Dir(dest); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("创建目录失败: %w", err)
		}
	}

	partPath := dest + partSuffix
	file, err := os.Create(partPath)
	if err != nil {
		return 0, fmt.Errorf("创建文件失败: %w", err)
	}

	written, copyErr := io.Copy(file, body)
	closeErr := file.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		os.Remove(partPath)
		return 0, copyErr
	}

	if err := os.Rename(partPath, dest); err != nil {
		os.Remove(partPath)
		return 0, fmt.Errorf("重命名文件失败: %w", err)
	}
	return written, nil
}

func downloadError(message string, err error) error {
	return models.NewEnrichError(models.ErrorKindDownloadFailed, message, err)
}
