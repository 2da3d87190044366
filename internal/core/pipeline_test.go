package core

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/RecoveryAshes/imgenrich/internal/crawlers"
	"github.com/RecoveryAshes/imgenrich/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ogPage = `<html><head><meta property="og:image" content="https://cdn.example.com/og.jpg"></head>
<body><article><img src="/other.jpg"></article></body></html>`
	relativeOGPage = `<html><head><meta property="og:image" content="/media/cover.png"></head></html>`
	centeredPage   = `<html><body><article>
<img src="/ads/banner.gif"><img src="/photos/main.jpg" style="margin: 0 auto">
</article></body></html>`
	emptyPage = `<html><head><title>rien</title></head><body><p>texte</p></body></html>`
)

func newTestPipeline(t *testing.T, session crawlers.Session, dl ImageDownloader) *Pipeline {
	t.Helper()
	p, err := NewPipeline(session, dl, nil, testEnrichConfig(), true)
	require.NoError(t, err)
	return p
}

func TestPipeline_Downloaded(t *testing.T) {
	session := newFakeSession(map[string]string{"https://site.example/a": ogPage})
	dl := &fakeDownloader{}
	p := newTestPipeline(t, session, dl)

	item := models.NewItem("1", "https://site.example/a")
	outcome := p.Process(context.Background(), &item)

	assert.Equal(t, models.StateDownloaded, outcome.State)
	assert.Equal(t, "HTML", outcome.Type)
	assert.Equal(t, filepath.Join("datajson", "1.jpg"), outcome.ImagePath)
	assert.Equal(t, "https://cdn.example.com/og.jpg", outcome.ImageURL)
	assert.Equal(t, models.ErrorKindNone, outcome.ErrorKind)

	require.Len(t, dl.calls, 1)
	assert.Equal(t, "https://cdn.example.com/og.jpg", dl.calls[0].URL)

	assert.True(t, session.allClosed(), "页面应在返回前关闭")
	assert.Equal(t, 1200, session.lastOpts.ViewportWidth)
	assert.Equal(t, 1600, session.lastOpts.ViewportHeight)
	assert.Equal(t, DefaultUserAgent, session.lastOpts.UserAgent)
	assert.True(t, session.lastOpts.Stealth)
	assert.Equal(t, testEnrichConfig().NavTimeout, session.opened[0].timeout)

	assert.Equal(t, models.ShapeUntouched, item.Shape(), "流水线不修改记录")
}

func TestPipeline_RelativeImageResolved(t *testing.T) {
	session := newFakeSession(map[string]string{"https://site.example/news/b": relativeOGPage})
	dl := &fakeDownloader{}
	p := newTestPipeline(t, session, dl)

	item := models.NewItem("b", "https://site.example/news/b")
	outcome := p.Process(context.Background(), &item)

	assert.Equal(t, models.StateDownloaded, outcome.State)
	require.Len(t, dl.calls, 1)
	assert.Equal(t, "https://site.example/media/cover.png", dl.calls[0].URL)
}

func TestPipeline_CenteredContentImage(t *testing.T) {
	session := newFakeSession(map[string]string{"https://site.example/c": centeredPage})
	dl := &fakeDownloader{}
	p := newTestPipeline(t, session, dl)

	item := models.NewItem("c", "https://site.example/c")
	outcome := p.Process(context.Background(), &item)

	assert.Equal(t, models.StateDownloaded, outcome.State)
	assert.Equal(t, "https://site.example/photos/main.jpg", outcome.ImageURL)
}

func TestPipeline_NoImage(t *testing.T) {
	session := newFakeSession(map[string]string{"https://site.example/d": emptyPage})
	dl := &fakeDownloader{}
	p := newTestPipeline(t, session, dl)

	item := models.NewItem("d", "https://site.example/d")
	outcome := p.Process(context.Background(), &item)

	assert.Equal(t, models.StateNoImage, outcome.State)
	assert.Equal(t, "HTML", outcome.Type)
	assert.Empty(t, outcome.ImagePath)
	assert.Empty(t, dl.calls, "未找到图片时不应下载")

	item.Apply(outcome)
	assert.Equal(t, models.ShapeLoaded, item.Shape())
}

func TestPipeline_NavigationFailure(t *testing.T) {
	session := newFakeSession(map[string]string{})
	session.navErr["https://down.example/"] = errors.New("navigation timeout")
	dl := &fakeDownloader{}
	p := newTestPipeline(t, session, dl)

	item := models.NewItem("e", "https://down.example/")
	outcome := p.Process(context.Background(), &item)

	assert.Equal(t, models.StateNavFailed, outcome.State)
	assert.Equal(t, models.ErrorKindPageLoadFailed, outcome.ErrorKind)
	assert.Empty(t, outcome.Type)
	assert.Contains(t, outcome.Detail, "navigation timeout")
	assert.Empty(t, dl.calls)
	assert.True(t, session.allClosed())

	item.Apply(outcome)
	assert.Equal(t, models.ShapeNavFailed, item.Shape())
	assert.Equal(t, "PAGE_LOAD_FAILED", item.Error)
}

func TestPipeline_InvalidURLSkipsNetwork(t *testing.T) {
	for _, rawURL := range []string{"", "not a url", "ftp://files.example/x", "https://"} {
		t.Run(rawURL, func(t *testing.T) {
			session := newFakeSession(nil)
			p := newTestPipeline(t, session, &fakeDownloader{})

			item := models.NewItem("f", rawURL)
			outcome := p.Process(context.Background(), &item)

			assert.Equal(t, models.StateNavFailed, outcome.State)
			assert.Empty(t, session.opened, "URL无效时不应创建页面")
		})
	}
}

func TestPipeline_NewPageFailure(t *testing.T) {
	session := newFakeSession(nil)
	session.newPageErr = errors.New("browser crashed")
	p := newTestPipeline(t, session, &fakeDownloader{})

	item := models.NewItem("g", "https://site.example/g")
	outcome := p.Process(context.Background(), &item)

	assert.Equal(t, models.StateNavFailed, outcome.State)
	assert.Equal(t, models.ErrorKindPageLoadFailed, outcome.ErrorKind)
}

func TestPipeline_DownloadFailureNotPersisted(t *testing.T) {
	session := newFakeSession(map[string]string{"https://site.example/h": ogPage})
	dl := &fakeDownloader{fail: map[string]error{
		"https://cdn.example.com/og.jpg": &crawlers.HTTPStatusError{URL: "https://cdn.example.com/og.jpg", StatusCode: 404},
	}}
	p := newTestPipeline(t, session, dl)

	item := models.NewItem("h", "https://site.example/h")
	outcome := p.Process(context.Background(), &item)

	assert.Equal(t, models.StateDownloadFailed, outcome.State)
	assert.Equal(t, models.ErrorKindDownloadFailed, outcome.ErrorKind)
	assert.Equal(t, "HTML", outcome.Type)
	assert.Empty(t, outcome.ImagePath)
	assert.Contains(t, outcome.Detail, "404")

	item.Apply(outcome)
	assert.Equal(t, models.ShapeLoaded, item.Shape())
	assert.Empty(t, item.Error, "下载失败不写入error字段")
}

func TestPipeline_IDSanitizedForFileName(t *testing.T) {
	session := newFakeSession(map[string]string{"https://site.example/i": ogPage})
	dl := &fakeDownloader{}
	p := newTestPipeline(t, session, dl)

	item := models.NewItem("2024/05/i", "https://site.example/i")
	p.Process(context.Background(), &item)

	require.Len(t, dl.calls, 1)
	assert.Equal(t, filepath.Join("datajson", "2024_05_i.jpg"), dl.calls[0].Dest)
}

func TestPipeline_InvalidHeadersFailNavigation(t *testing.T) {
	session := newFakeSession(map[string]string{"https://site.example/j": ogPage})
	hm, err := NewHeaderManager(map[string]string{"Host": "x"}, nil, "")
	require.NoError(t, err)

	p, err := NewPipeline(session, &fakeDownloader{}, hm, testEnrichConfig(), false)
	require.NoError(t, err)

	item := models.NewItem("j", "https://site.example/j")
	outcome := p.Process(context.Background(), &item)
	assert.Equal(t, models.StateNavFailed, outcome.State)
}

func TestPipeline_PageUsesMergedUserAgent(t *testing.T) {
	tests := []struct {
		name       string
		cliHeaders []string
		userAgent  string
		want       string
	}{
		{name: "命令行覆盖", cliHeaders: []string{"User-Agent: cli-agent/1.0"}, userAgent: "config-agent", want: "cli-agent/1.0"},
		{name: "配置值", userAgent: "config-agent", want: "config-agent"},
		{name: "默认值", want: DefaultUserAgent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := newFakeSession(map[string]string{"https://site.example/ua": ogPage})
			hm, err := NewHeaderManager(nil, tt.cliHeaders, tt.userAgent)
			require.NoError(t, err)

			p, err := NewPipeline(session, &fakeDownloader{}, hm, testEnrichConfig(), false)
			require.NoError(t, err)

			item := models.NewItem("ua", "https://site.example/ua")
			outcome := p.Process(context.Background(), &item)
			require.Equal(t, models.StateDownloaded, outcome.State)

			// 下载器读取的头部与页面使用的UA一致
			headers, err := hm.GetHeaders()
			require.NoError(t, err)
			assert.Equal(t, tt.want, session.lastOpts.UserAgent)
			assert.Equal(t, tt.want, headers.Get("User-Agent"))
		})
	}
}

func TestNewPipeline_Validation(t *testing.T) {
	cfg := testEnrichConfig()
	cfg.ImageDir = ""
	_, err := NewPipeline(newFakeSession(nil), &fakeDownloader{}, nil, cfg, false)
	assert.Error(t, err)

	_, err = NewPipeline(nil, &fakeDownloader{}, nil, testEnrichConfig(), false)
	assert.Error(t, err)
}
