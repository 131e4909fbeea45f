package storage

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/intake-api/internal/service/storage"
	"github.com/jwalitptl/intake-api/pkg/blobstore"
)

func TestStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	up := blobstore.NewMemoryUploader("c")
	r := gin.New()
	NewHandler(storage.NewService(up, 0, nil)).RegisterRoutes(r.Group("/api"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/azure/status", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"connected":true}`, w.Body.String())

	up.PingErr = errors.New("AuthenticationFailed")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/azure/status", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"connected":false,"error":"AuthenticationFailed"}`, w.Body.String())
}
