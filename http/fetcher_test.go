package http_test

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fwojciec/harvest"
	harvesthttp "github.com/fwojciec/harvest/http"
	"github.com/fwojciec/harvest/mock"
	harvestzip "github.com/fwojciec/harvest/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// zipBytes builds an archive holding one text member large enough to pass
// the default minimum size.
func zipBytes(t *testing.T, id string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: id + ".txt", Method: zip.Store})
	require.NoError(t, err)
	_, err = w.Write([]byte(strings.Repeat("It was a dark and stormy night. ", 10)))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func mirrors(urls ...string) *mock.MirrorResolver {
	return &mock.MirrorResolver{
		ResolveFn: func(string) []string { return urls },
	}
}

func stagedFiles(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestArchiveFetcher_Fetch(t *testing.T) {
	t.Parallel()

	t.Run("stages valid archive from primary URL", func(t *testing.T) {
		t.Parallel()

		payload := zipBytes(t, "42")
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(payload)
		}))
		defer server.Close()

		dir := t.TempDir()
		f := harvesthttp.NewArchiveFetcher(dir, mirrors(), harvestzip.NewValidator())

		archive, err := f.Fetch(context.Background(), harvest.Link{URL: server.URL + "/42/42.zip", ID: "42"})
		require.NoError(t, err)

		assert.Equal(t, "42", archive.ID)
		assert.Equal(t, filepath.Join(dir, "42.zip"), archive.Path)
		assert.Equal(t, server.URL+"/42/42.zip", archive.SourceURL)
		assert.Equal(t, []string{"42.zip"}, stagedFiles(t, dir))
	})

	t.Run("falls back to mirror past 404", func(t *testing.T) {
		t.Parallel()

		payload := zipBytes(t, "42")
		var mu sync.Mutex
		var requested []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			requested = append(requested, r.URL.Path)
			mu.Unlock()
			if r.URL.Path == "/primary/42.zip" {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write(payload)
		}))
		defer server.Close()

		dir := t.TempDir()
		f := harvesthttp.NewArchiveFetcher(dir, mirrors(server.URL+"/mirror/42.zip"), harvestzip.NewValidator())

		archive, err := f.Fetch(context.Background(), harvest.Link{URL: server.URL + "/primary/42.zip", ID: "42"})
		require.NoError(t, err)

		assert.Equal(t, server.URL+"/mirror/42.zip", archive.SourceURL)
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []string{"/primary/42.zip", "/mirror/42.zip"}, requested)
	})

	t.Run("skips undersized body", func(t *testing.T) {
		t.Parallel()

		payload := zipBytes(t, "42")
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/small.zip" {
				_, _ = w.Write([]byte("tiny"))
				return
			}
			_, _ = w.Write(payload)
		}))
		defer server.Close()

		f := harvesthttp.NewArchiveFetcher(t.TempDir(), mirrors(server.URL+"/good.zip"), harvestzip.NewValidator())

		archive, err := f.Fetch(context.Background(), harvest.Link{URL: server.URL + "/small.zip", ID: "42"})
		require.NoError(t, err)
		assert.Equal(t, server.URL+"/good.zip", archive.SourceURL)
	})

	t.Run("discards invalid archive and tries next candidate", func(t *testing.T) {
		t.Parallel()

		payload := zipBytes(t, "42")
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/corrupt.zip" {
				_, _ = w.Write(bytes.Repeat([]byte("x"), 500))
				return
			}
			_, _ = w.Write(payload)
		}))
		defer server.Close()

		dir := t.TempDir()
		f := harvesthttp.NewArchiveFetcher(dir, mirrors(server.URL+"/good.zip"), harvestzip.NewValidator())

		archive, err := f.Fetch(context.Background(), harvest.Link{URL: server.URL + "/corrupt.zip", ID: "42"})
		require.NoError(t, err)
		assert.Equal(t, server.URL+"/good.zip", archive.SourceURL)
		assert.Equal(t, []string{"42.zip"}, stagedFiles(t, dir))
	})

	t.Run("returns unavailable when every candidate fails", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/a.zip":
				http.NotFound(w, r)
			case "/b.zip":
				w.WriteHeader(http.StatusInternalServerError)
			default:
				_, _ = w.Write(bytes.Repeat([]byte("x"), 500))
			}
		}))
		defer server.Close()

		dir := t.TempDir()
		f := harvesthttp.NewArchiveFetcher(dir, mirrors(server.URL+"/b.zip", server.URL+"/c.zip"), harvestzip.NewValidator())

		_, err := f.Fetch(context.Background(), harvest.Link{URL: server.URL + "/a.zip", ID: "42"})
		require.Error(t, err)
		assert.Equal(t, harvest.EUNAVAILABLE, harvest.ErrorCode(err))
		assert.Equal(t, "all attempts failed for 42", harvest.ErrorMessage(err))
		assert.Empty(t, stagedFiles(t, dir))
	})

	t.Run("moves on when an attempt times out", func(t *testing.T) {
		t.Parallel()

		payload := zipBytes(t, "42")
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/slow.zip" {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
				return
			}
			_, _ = w.Write(payload)
		}))
		defer server.Close()

		f := harvesthttp.NewArchiveFetcher(t.TempDir(), mirrors(server.URL+"/fast.zip"), harvestzip.NewValidator(),
			harvesthttp.WithTimeout(50*time.Millisecond))

		archive, err := f.Fetch(context.Background(), harvest.Link{URL: server.URL + "/slow.zip", ID: "42"})
		require.NoError(t, err)
		assert.Equal(t, server.URL+"/fast.zip", archive.SourceURL)
	})

	t.Run("sends browser-like headers", func(t *testing.T) {
		t.Parallel()

		payload := zipBytes(t, "42")
		var mu sync.Mutex
		var got http.Header
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			got = r.Header.Clone()
			mu.Unlock()
			_, _ = w.Write(payload)
		}))
		defer server.Close()

		f := harvesthttp.NewArchiveFetcher(t.TempDir(), mirrors(), harvestzip.NewValidator())

		_, err := f.Fetch(context.Background(), harvest.Link{URL: server.URL + "/42.zip", ID: "42"})
		require.NoError(t, err)
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, harvesthttp.DefaultUserAgent, got.Get("User-Agent"))
		assert.Equal(t, harvesthttp.DefaultAccept, got.Get("Accept"))
		assert.Equal(t, harvesthttp.DefaultAcceptLanguage, got.Get("Accept-Language"))
	})

	t.Run("waits on domain limiter with request host", func(t *testing.T) {
		t.Parallel()

		payload := zipBytes(t, "42")
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(payload)
		}))
		defer server.Close()

		var hosts []string
		limiter := &mock.DomainLimiter{
			WaitFn: func(_ context.Context, domain string) error {
				hosts = append(hosts, domain)
				return nil
			},
		}
		f := harvesthttp.NewArchiveFetcher(t.TempDir(), mirrors(), harvestzip.NewValidator(),
			harvesthttp.WithDomainLimiter(limiter))

		_, err := f.Fetch(context.Background(), harvest.Link{URL: server.URL + "/42.zip", ID: "42"})
		require.NoError(t, err)
		assert.Equal(t, []string{strings.TrimPrefix(server.URL, "http://")}, hosts)
	})

	t.Run("staging write failure is internal", func(t *testing.T) {
		t.Parallel()

		payload := zipBytes(t, "42")
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(payload)
		}))
		defer server.Close()

		missing := filepath.Join(t.TempDir(), "does-not-exist")
		f := harvesthttp.NewArchiveFetcher(missing, mirrors(), harvestzip.NewValidator())

		_, err := f.Fetch(context.Background(), harvest.Link{URL: server.URL + "/42.zip", ID: "42"})
		require.Error(t, err)
		assert.Equal(t, harvest.EINTERNAL, harvest.ErrorCode(err))
	})

	t.Run("returns context error when cancelled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		f := harvesthttp.NewArchiveFetcher(t.TempDir(), mirrors(), harvestzip.NewValidator())

		_, err := f.Fetch(ctx, harvest.Link{URL: "http://example.invalid/42.zip", ID: "42"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestArchiveFetcher_Candidates(t *testing.T) {
	t.Parallel()

	f := harvesthttp.NewArchiveFetcher(t.TempDir(), mirrors(
		"https://a.example/42.zip",
		"https://primary.example/42.zip",
		"https://b.example/42.zip",
	), harvestzip.NewValidator())

	got := f.Candidates(harvest.Link{URL: "https://primary.example/42.zip", ID: "42"})

	assert.Equal(t, []string{
		"https://primary.example/42.zip",
		"https://a.example/42.zip",
		"https://b.example/42.zip",
	}, got)
}
