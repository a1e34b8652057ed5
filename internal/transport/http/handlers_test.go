package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jewelfinder-go/internal/app"
	"jewelfinder-go/internal/domain/dispatch"
	"jewelfinder-go/internal/platform/config"
	"jewelfinder-go/internal/platform/logging"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger, err := logging.NewLogger(&logging.LogCfg{
		LogLevel: "error",
		LogDir:   t.TempDir(),
		LogFile:  "test.log",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })
	return logger
}

func newTestRouter(t *testing.T, upstream http.HandlerFunc) *gin.Engine {
	t.Helper()
	server := httptest.NewServer(upstream)
	t.Cleanup(server.Close)

	cfg := config.DefaultConfig()
	cfg.API.BaseURL = server.URL
	cfg.API.Timeout = 5 * time.Second
	cfg.Server.StaticDir = ""
	logger := testLogger(t)

	svc := app.NewService(app.Deps{
		Config: cfg,
		Logger: logger,
		Dispatcher: dispatch.NewClient(dispatch.ClientOptions{
			BaseURL: server.URL,
			Timeout: 5 * time.Second,
			Logger:  logger,
		}),
	})
	t.Cleanup(func() { _ = svc.Close() })

	return Build(Options{Config: cfg, Logger: logger, Service: svc})
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestSearchTextEndpoint(t *testing.T) {
	router := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": [{"id": "a", "image_path": "/a.jpg"}]}`))
	})

	rec, resp := doJSON(t, router, http.MethodPost, "/api/search/text", `{"query": "gold ring"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "results", data["phase"])
}

func TestSearchTextEndpoint_EmptyQueryRejected(t *testing.T) {
	router := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no upstream call expected")
	})

	rec, resp := doJSON(t, router, http.MethodPost, "/api/search/text", `{"query": "  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestSearchImageEndpoint_DropRejectsNonImage(t *testing.T) {
	router := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no upstream call expected")
	})

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	fw, err := writer.CreateFormFile("file", "doc.pdf")
	require.NoError(t, err)
	fw.Write([]byte("%PDF-"))
	require.NoError(t, writer.WriteField("source", "drop"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/search/image", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSketchEndpoints(t *testing.T) {
	router := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": "s", "image_path": "/s.jpg"}]`))
	})

	// empty canvas cannot be searched
	rec, _ := doJSON(t, router, http.MethodPost, "/api/sketch/search", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp := doJSON(t, router, http.MethodPost, "/api/sketch/stroke",
		`{"points": [{"x": 10, "y": 10}, {"x": 50, "y": 50}]}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	state := resp.Data.(map[string]any)
	assert.Equal(t, float64(1), state["strokes"])
	assert.Equal(t, false, state["empty"])

	rec, _ = doJSON(t, router, http.MethodPost, "/api/sketch/search", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp = doJSON(t, router, http.MethodPost, "/api/sketch/undo", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	state = resp.Data.(map[string]any)
	assert.Equal(t, float64(0), state["strokes"])

	rec, _ = doJSON(t, router, http.MethodPost, "/api/sketch/tool", `{"tool": "eraser"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = doJSON(t, router, http.MethodPost, "/api/sketch/tool", `{"tool": "spraycan"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFocusEndpoints(t *testing.T) {
	router := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": "a", "image_path": "/a.jpg"}, {"id": "b", "image_path": "/b.jpg"}]`))
	})

	rec, _ := doJSON(t, router, http.MethodPost, "/api/search/text", `{"query": "gold"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := doJSON(t, router, http.MethodPost, "/api/session/focus", `{"index": 0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	focused := resp.Data.(map[string]any)["focused"].(map[string]any)
	assert.Equal(t, float64(0), focused["index"])

	rec, resp = doJSON(t, router, http.MethodPost, "/api/session/focus/next", "")
	require.Equal(t, http.StatusOK, rec.Code)
	focused = resp.Data.(map[string]any)["focused"].(map[string]any)
	assert.Equal(t, float64(1), focused["index"])

	// wraps back around
	rec, resp = doJSON(t, router, http.MethodPost, "/api/session/focus/next", "")
	require.Equal(t, http.StatusOK, rec.Code)
	focused = resp.Data.(map[string]any)["focused"].(map[string]any)
	assert.Equal(t, float64(0), focused["index"])

	rec, resp = doJSON(t, router, http.MethodPost, "/api/session/focus/dismiss", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, resp.Data.(map[string]any)["focused"])

	rec, _ = doJSON(t, router, http.MethodPost, "/api/session/focus", `{"index": 9}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOCREndpoints(t *testing.T) {
	router := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ocr/read":
			w.Write([]byte(`{"raw_text": "GOLD", "cleaned_query": "gold"}`))
		case "/search/text":
			w.Write([]byte(`[]`))
		}
	})

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	fw, err := writer.CreateFormFile("file", "label.jpg")
	require.NoError(t, err)
	fw.Write([]byte("jpegbytes"))
	require.NoError(t, writer.WriteField("mode", "llm"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/ocr/read", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	review := resp.Data.(map[string]any)["review"].(map[string]any)
	assert.Equal(t, "gold", review["cleaned_query"])

	rec2, resp2 := doJSON(t, router, http.MethodPost, "/api/ocr/confirm", `{"query": "gold bracelet"}`)
	require.Equal(t, http.StatusOK, rec2.Code)
	assert.Equal(t, "results", resp2.Data.(map[string]any)["phase"])

	// a second confirm has nothing staged
	rec3, _ := doJSON(t, router, http.MethodPost, "/api/ocr/confirm", `{"query": "again"}`)
	assert.Equal(t, http.StatusBadRequest, rec3.Code)
}

func TestSessionAndStatusEndpoints(t *testing.T) {
	router := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {})

	rec, resp := doJSON(t, router, http.MethodGet, "/api/session", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "idle", resp.Data.(map[string]any)["phase"])

	rec, resp = doJSON(t, router, http.MethodGet, "/api/system/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Data.(map[string]any)["generated_at"])

	// history disabled still answers
	rec, resp = doJSON(t, router, http.MethodGet, "/api/history", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
}

func TestServerErrorPropagatesMessage(t *testing.T) {
	router := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail": "index not loaded"}`))
	})

	rec, resp := doJSON(t, router, http.MethodPost, "/api/search/text", `{"query": "gold"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	data := resp.Data.(map[string]any)
	assert.Equal(t, "error", data["phase"])
	assert.Equal(t, "Search failed. Server Error: 500 - index not loaded", data["message"])
}
