package dataset

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcherEnsure(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		statusCode  int
		expectError error
	}{
		{
			name:        "successful download",
			contentType: "text/csv",
			body:        storeCSV,
			statusCode:  http.StatusOK,
		},
		{
			name:        "server error",
			statusCode:  http.StatusInternalServerError,
			expectError: ErrDownload,
		},
		{
			name:        "not found",
			statusCode:  http.StatusNotFound,
			expectError: ErrDownload,
		},
		{
			name:        "html interstitial by content type",
			contentType: "text/html; charset=utf-8",
			body:        "<html><body>quota exceeded</body></html>",
			statusCode:  http.StatusOK,
			expectError: ErrUnexpectedContent,
		},
		{
			name:        "html interstitial by body",
			contentType: "application/octet-stream",
			body:        "<!DOCTYPE html><html><head></head></html>",
			statusCode:  http.StatusOK,
			expectError: ErrUnexpectedContent,
		},
		{
			name:        "empty body",
			contentType: "text/csv",
			statusCode:  http.StatusOK,
			expectError: ErrDownload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotID = r.URL.Query().Get("id")
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				}
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			dest := filepath.Join(t.TempDir(), "downloads", "store.csv")
			f := NewFetcher(NewHTTPDownloader(server.URL+"/uc?id=%s", server.Client()), nil)
			err := f.Ensure(context.Background(), Source{Name: "store", FileID: "abc123", Path: dest})

			assert.Equal(t, "abc123", gotID)
			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
				assert.NoFileExists(t, dest)
				entries, _ := os.ReadDir(filepath.Dir(dest))
				assert.Empty(t, entries, "temporary file must be cleaned up")
				return
			}
			require.NoError(t, err)
			content, err := os.ReadFile(dest)
			require.NoError(t, err)
			assert.Equal(t, tt.body, string(content))
		})
	}
}

func TestFetcherSkipsExistingFiles(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(trainCSV))
	}))
	defer server.Close()

	dir := t.TempDir()
	existing := writeFixture(t, dir, "train.csv", "already here")

	f := NewFetcher(NewHTTPDownloader(server.URL+"/uc?id=%s", server.Client()), nil)
	require.NoError(t, f.Ensure(context.Background(), Source{Name: "train", FileID: "t", Path: existing}))
	assert.Equal(t, int32(0), hits.Load())

	content, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "already here", string(content))
}

func TestFetcherSharesConcurrentDownloads(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(trainCSV))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "train.csv")
	f := NewFetcher(NewHTTPDownloader(server.URL+"/uc?id=%s", server.Client()), nil)

	var downloaded atomic.Int64
	f.OnDownload = func(_ context.Context, _ Source, n int64) { downloaded.Add(n) }

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.Ensure(context.Background(), Source{Name: "train", FileID: "t", Path: dest})
		}(i)
	}

	// let every caller reach the singleflight group before answering
	require.Eventually(t, func() bool { return hits.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, int64(len(trainCSV)), downloaded.Load())
	assert.FileExists(t, dest)
}

func TestFetcherContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dest := filepath.Join(t.TempDir(), "train.csv")
	f := NewFetcher(NewHTTPDownloader(server.URL+"/uc?id=%s", server.Client()), nil)
	err := f.Ensure(ctx, Source{Name: "train", FileID: "t", Path: dest})
	assert.ErrorIs(t, err, ErrDownload)
	assert.NoFileExists(t, dest)
}
