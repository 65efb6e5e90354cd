package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/d60-Lab/engage-agent/config"
	"github.com/d60-Lab/engage-agent/internal/api/handler"
	"github.com/d60-Lab/engage-agent/internal/repository"
	"github.com/d60-Lab/engage-agent/internal/service"
	"github.com/d60-Lab/engage-agent/pkg/database"
)

func TestRouter(t *testing.T) {
	db, err := database.InitDB(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	l := repository.NewGormLedger(db)
	t.Cleanup(func() { _ = l.Close() })

	h := handler.NewHandler(l, service.PostingWindow{
		Start:    config.Clock{Hour: 8},
		End:      config.Clock{Hour: 22},
		Location: time.UTC,
	}, 5)
	r := NewRouter(h, "engage-agent", gin.TestMode, zaptest.NewLogger(t))

	for _, path := range []string{"/healthz", "/api/v1/engagement/followed", "/api/v1/engagement/stats"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Accept-Encoding", "gzip")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"), path)
	}

	req := httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/v1/engagement/stats")

	req = httptest.NewRequest(http.MethodGet, "/api/v1/relations", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
