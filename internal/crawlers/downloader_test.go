package crawlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RecoveryAshes/imgenrich/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fakeJPEG = []byte{0xFF, 0xD8, 0xFF, 0xE0, 'J', 'F', 'I', 'F', 0x00, 0xFF, 0xD9}

func newTestDownloader(headers models.HeaderProvider) *Downloader {
	return NewDownloader(DownloaderConfig{Timeout: 5 * time.Second, InsecureSkipVerify: true}, headers)
}

func assertNoFile(t *testing.T, path string) {
	t.Helper()
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "文件不应存在: %s", path)
}

func TestDownloader_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(fakeJPEG)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "images", "42.jpg")
	result, err := newTestDownloader(nil).Download(context.Background(), server.URL+"/a.jpg", dest)
	require.NoError(t, err)

	assert.Equal(t, dest, result.Path)
	assert.Equal(t, int64(len(fakeJPEG)), result.Bytes)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, fakeJPEG, data)
	assertNoFile(t, dest+partSuffix)
}

func TestDownloader_NonOKStatus(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusNoContent, http.StatusMovedPermanently, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if status == http.StatusMovedPermanently {
					if r.URL.Path == "/moved" {
						w.Write(fakeJPEG)
						return
					}
					http.Redirect(w, r, "/moved", status)
					return
				}
				w.WriteHeader(status)
				w.Write([]byte("not an image"))
			}))
			defer server.Close()

			dest := filepath.Join(t.TempDir(), "1.jpg")
			_, err := newTestDownloader(nil).Download(context.Background(), server.URL+"/missing.jpg", dest)
			require.Error(t, err)

			var statusErr *HTTPStatusError
			require.True(t, errors.As(err, &statusErr))
			assert.Equal(t, status, statusErr.StatusCode)

			var enrichErr *models.EnrichError
			require.True(t, errors.As(err, &enrichErr))
			assert.Equal(t, models.ErrorKindDownloadFailed, enrichErr.Kind)

			assertNoFile(t, dest)
			assertNoFile(t, dest+partSuffix)
		})
	}
}

func TestDownloader_DoesNotFollowRedirect(t *testing.T) {
	var targetHits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/real.jpg" {
			targetHits++
			w.Write(fakeJPEG)
			return
		}
		http.Redirect(w, r, "/real.jpg", http.StatusFound)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "1.jpg")
	_, err := newTestDownloader(nil).Download(context.Background(), server.URL+"/moved.jpg", dest)
	require.Error(t, err)

	var statusErr *HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusFound, statusErr.StatusCode)
	assert.Equal(t, 0, targetHits)
	assertNoFile(t, dest)
}

func TestDownloader_InterruptedStreamRemovesPartial(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.WriteHeader(http.StatusOK)
		w.Write(fakeJPEG)
		w.(http.Flusher).Flush()

		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			conn.Close()
		}
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "2.jpg")
	_, err := newTestDownloader(nil).Download(context.Background(), server.URL+"/broken.jpg", dest)
	require.Error(t, err)

	assertNoFile(t, dest)
	assertNoFile(t, dest+partSuffix)
}

func TestDownloader_FailureKeepsExistingFile(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "3.jpg")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0644))

	_, err := newTestDownloader(nil).Download(context.Background(), server.URL+"/x.jpg", dest)
	require.Error(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}

func TestDownloader_UnsupportedScheme(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "4.jpg")

	for _, rawURL := range []string{"ftp://example.com/a.jpg", "data:image/png;base64,AAAA", "/relative.jpg", "https:///nohost.jpg"} {
		t.Run(rawURL, func(t *testing.T) {
			_, err := newTestDownloader(nil).Download(context.Background(), rawURL, dest)
			require.Error(t, err)

			var enrichErr *models.EnrichError
			require.True(t, errors.As(err, &enrichErr))
			assert.Equal(t, models.ErrorKindDownloadFailed, enrichErr.Kind)
			assertNoFile(t, dest)
		})
	}
}

func TestDownloader_AppliesHeaders(t *testing.T) {
	var gotToken, gotUA, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Token")
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Write(fakeJPEG)
	}))
	defer server.Close()

	headers := models.StaticHeaders{
		"X-Token":         []string{"secret"},
		"User-Agent":      []string{"imgenrich-test"},
		"Accept-Encoding": []string{"br"},
	}

	dest := filepath.Join(t.TempDir(), "5.jpg")
	_, err := newTestDownloader(headers).Download(context.Background(), server.URL+"/h.jpg", dest)
	require.NoError(t, err)

	assert.Equal(t, "secret", gotToken)
	assert.Equal(t, "imgenrich-test", gotUA)
	assert.Contains(t, gotAccept, "image/")
}

func TestDownloader_HTTPS(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(fakeJPEG)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "6.jpg")
	result, err := newTestDownloader(nil).Download(context.Background(), server.URL+"/s.jpg", dest)
	require.NoError(t, err)
	assert.Equal(t, dest, result.Path)
}

func TestDownloader_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(fakeJPEG)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dest := filepath.Join(t.TempDir(), "7.jpg")
	_, err := newTestDownloader(nil).Download(ctx, server.URL+"/c.jpg", dest)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assertNoFile(t, dest)
}
