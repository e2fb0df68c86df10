package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fabsignup/fabsignup/internal/config"
	"github.com/fabsignup/fabsignup/internal/database"
	"github.com/fabsignup/fabsignup/internal/notify"
	"github.com/fabsignup/fabsignup/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Export.Local.BaseDir = t.TempDir()
	cfg.Form.LookupAttempts = 1
	db, err := database.Open(config.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	svc := service.NewSignupService(cfg, db, service.Options{Notifier: &notify.LogNotifier{}})
	return SetupRouter(svc, gin.TestMode)
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRootAndRequestID(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "running", decode(t, w)["status"])
	_, err := uuid.Parse(w.Header().Get("X-Request-ID"))
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))
}

func TestNoRouteAndPreflight(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodGet, "/api/v1/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, w)["code"])

	w = do(r, http.MethodOptions, "/api/v1/setup", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthAndCatalog(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])

	w = do(r, http.MethodGet, "/api/v1/catalog", "")
	require.Equal(t, http.StatusOK, w.Code)
	names, ok := decode(t, w)["data"].([]interface{})
	require.True(t, ok)
	assert.Contains(t, names, "First name")
	assert.Contains(t, names, "Package name")
}

func TestSetupWithoutForm(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/v1/setup", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decode(t, w)
	assert.Equal(t, "NO_FORM", body["code"])
	assert.Contains(t, body["message"], "register the form")
}

func TestRegisterFormThenSetup(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/v1/form", `{
		"items": [
			{"title": "First name", "type": "TEXT"},
			{"title": "Email", "type": "TEXT"}
		],
		"header": ["Timestamp", "First name", "Email"]
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(r, http.MethodPost, "/api/v1/setup", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(r, http.MethodGet, "/api/v1/mappings/fields", "")
	require.Equal(t, http.StatusOK, w.Code)
	rows, ok := decode(t, w)["data"].([]interface{})
	require.True(t, ok)
	assert.Len(t, rows, 3)
}

func TestBadRequests(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/v1/submissions", "{")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_PARAMS", decode(t, w)["code"])

	w = do(r, http.MethodPut, "/api/v1/mappings/fields/abc", `{"target":"First name"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ROW", decode(t, w)["code"])

	w = do(r, http.MethodPost, "/api/v1/actions/export", `{"backend":"ftp"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
