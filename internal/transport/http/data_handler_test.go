package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "salesdash/internal/errors"
	"salesdash/internal/exporter"
	"salesdash/internal/operations"
	"salesdash/internal/services"
	transport "salesdash/internal/transport/http"
	api "salesdash/pkg/contracts/api/v1"
)

type stubDataService struct {
	file    *services.PreprocessedFile
	preview *api.DataPreview
	err     error
}

func (s stubDataService) PreprocessedCSV(context.Context) (*services.PreprocessedFile, error) {
	return s.file, s.err
}

func (s stubDataService) PreprocessedPreview(context.Context) (*api.DataPreview, error) {
	return s.preview, s.err
}

func newDataRouter(svc transport.DataService) http.Handler {
	logger := discardLogger()
	r := chi.NewRouter()
	r.Mount("/api/v1/data", transport.NewDataHandler(svc, apierrors.NewErrorHandler(logger, false), logger).Routes())
	return r
}

func writePreprocessed(t *testing.T) *services.PreprocessedFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Preprocessed_sales_data.csv")
	content := "Store,Sales\n1,0.25\n2,-1.5\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	etag, err := exporter.FileETag(path)
	require.NoError(t, err)
	return &services.PreprocessedFile{
		Path:    path,
		Size:    int64(len(content)),
		ModTime: time.Now(),
		ETag:    etag,
	}
}

func TestDownloadPreprocessed(t *testing.T) {
	file := writePreprocessed(t)
	router := newDataRouter(stubDataService{file: file})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/data/preprocessed", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, file.ETag, rec.Header().Get("ETag"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Preprocessed_sales_data.csv")
	assert.Equal(t, "Store,Sales\n1,0.25\n2,-1.5\n", rec.Body.String())
}

func TestDownloadPreprocessedNotModified(t *testing.T) {
	file := writePreprocessed(t)
	router := newDataRouter(stubDataService{file: file})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/data/preprocessed", nil)
	req.Header.Set("If-None-Match", file.ETag)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestDownloadPreprocessedMissing(t *testing.T) {
	router := newDataRouter(stubDataService{err: services.ErrNoPreprocessedData})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/data/preprocessed", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "DATA_NOT_FOUND", decode(t, rec)["error_code"])
}

func TestDownloadPreprocessedRemovedAfterStat(t *testing.T) {
	file := writePreprocessed(t)
	require.NoError(t, os.Remove(file.Path))
	router := newDataRouter(stubDataService{file: file})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/data/preprocessed", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreviewPreprocessed(t *testing.T) {
	preview := &api.DataPreview{
		Message: operations.PreprocessingCompleteMessage,
		Columns: []string{"Store", "Sales", "Year"},
		Rows: [][]string{
			{"1", "0.25", "2015"},
			{"2", "-1.5", "2015"},
			{"3", "0.75", "2014"},
			{"4", "1.1", "2014"},
			{"5", "0", "2013"},
		},
		ETag: `"abc123"`,
	}
	router := newDataRouter(stubDataService{preview: preview})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/data/preprocessed/preview", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, `"abc123"`, rec.Header().Get("ETag"))

	body := decode(t, rec)
	assert.Equal(t, "Data Preprocessing Complete", body["message"])
	assert.Equal(t, []interface{}{"Store", "Sales", "Year"}, body["columns"])
	rows, ok := body["rows"].([]interface{})
	require.True(t, ok)
	require.Len(t, rows, 5)
	assert.Equal(t, []interface{}{"1", "0.25", "2015"}, rows[0])
}

func TestPreviewPreprocessedMissing(t *testing.T) {
	router := newDataRouter(stubDataService{err: services.ErrNoPreprocessedData})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/data/preprocessed/preview", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "DATA_NOT_FOUND", decode(t, rec)["error_code"])
}
