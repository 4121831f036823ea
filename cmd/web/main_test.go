package main

import (
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesdash/internal/config"
	"salesdash/internal/report"
	transport "salesdash/internal/transport/http"
)

func embeddedFrontend(t *testing.T) fs.FS {
	t.Helper()
	sub, err := fs.Sub(frontendFiles, "frontend")
	require.NoError(t, err)
	return sub
}

func TestFrontendEmbedding(t *testing.T) {
	frontend := embeddedFrontend(t)

	for _, name := range []string{"index.html", "assets/app.js", "assets/style.css"} {
		t.Run(name, func(t *testing.T) {
			info, err := fs.Stat(frontend, name)
			require.NoError(t, err)
			assert.Positive(t, info.Size())
		})
	}
}

func TestEmbeddedDashboardRenders(t *testing.T) {
	page, err := transport.NewPageHandler(embeddedFrontend(t), config.AppVersion, slog.Default())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	page.Index(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	for _, name := range []string{"hidden_layers", "neurons", "dropout", "learning_rate", "epochs", "activation", "optimizer"} {
		assert.Contains(t, body, `name="`+name+`"`, name)
	}
	for _, chart := range report.ChartNames {
		assert.Contains(t, body, `data-chart="`+chart+`"`, chart)
	}
	assert.Contains(t, body, config.AppVersion)
	assert.Contains(t, body, `id="preview-table"`)
}
