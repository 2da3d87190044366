package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/RecoveryAshes/imgenrich/internal/crawlers"
	"github.com/RecoveryAshes/imgenrich/internal/models"
)

var errNotNavigated = errors.New("页面未加载")

// fakeSession 按URL返回预置HTML的会话
type fakeSession struct {
	mu         sync.Mutex
	pages      map[string]string // url → html
	navErr     map[string]error
	newPageErr error
	opened     []*fakePage
	lastOpts   crawlers.PageOptions
}

func newFakeSession(pages map[string]string) *fakeSession {
	return &fakeSession{pages: pages, navErr: map[string]error{}}
}

func (s *fakeSession) NewPage(_ context.Context, opts crawlers.PageOptions) (crawlers.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.newPageErr != nil {
		return nil, s.newPageErr
	}
	s.lastOpts = opts
	page := &fakePage{session: s}
	s.opened = append(s.opened, page)
	return page, nil
}

func (s *fakeSession) Close() error { return nil }

func (s *fakeSession) allClosed() bool {
	for _, p := range s.opened {
		if !p.closed {
			return false
		}
	}
	return true
}

type fakePage struct {
	session *fakeSession
	doc     *crawlers.HTMLDocument
	navURL  string
	timeout time.Duration
	closed  bool
}

func (p *fakePage) Navigate(_ context.Context, pageURL string, timeout time.Duration) error {
	p.navURL = pageURL
	p.timeout = timeout
	if err := p.session.navErr[pageURL]; err != nil {
		return err
	}
	body, ok := p.session.pages[pageURL]
	if !ok {
		return errors.New("net::ERR_NAME_NOT_RESOLVED")
	}
	doc, err := crawlers.ParseHTMLDocument([]byte(body), "text/html; charset=utf-8", pageURL)
	if err != nil {
		return err
	}
	p.doc = doc
	return nil
}

func (p *fakePage) MetaImage(ctx context.Context, key crawlers.MetaKey) (string, error) {
	if p.doc == nil {
		return "", errNotNavigated
	}
	return p.doc.MetaImage(ctx, key)
}

func (p *fakePage) ContentImages(ctx context.Context) ([]crawlers.ContentImage, error) {
	if p.doc == nil {
		return nil, errNotNavigated
	}
	return p.doc.ContentImages(ctx)
}

func (p *fakePage) ComputedStyle(ctx context.Context, img crawlers.ContentImage) (crawlers.ImageStyle, error) {
	if p.doc == nil {
		return crawlers.ImageStyle{}, errNotNavigated
	}
	return p.doc.ComputedStyle(ctx, img)
}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

// fakeDownloader 记录下载请求,按URL返回预置错误
type fakeDownloader struct {
	calls []downloadCall
	fail  map[string]error
}

type downloadCall struct {
	URL  string
	Dest string
}

func (d *fakeDownloader) Download(_ context.Context, imageURL string, dest string) (crawlers.DownloadResult, error) {
	d.calls = append(d.calls, downloadCall{URL: imageURL, Dest: dest})
	if err := d.fail[imageURL]; err != nil {
		return crawlers.DownloadResult{}, models.NewEnrichError(models.ErrorKindDownloadFailed, "下载失败", err)
	}
	return crawlers.DownloadResult{Path: dest, Bytes: 42}, nil
}

func testEnrichConfig() models.EnrichConfig {
	return models.EnrichConfig{
		ImageDir:       "datajson",
		ImageExt:       "jpg",
		TypeValue:      DefaultTypeValue,
		NavTimeout:     30 * time.Second,
		ViewportWidth:  1200,
		ViewportHeight: 1600,
		UserAgent:      DefaultUserAgent,
	}
}
