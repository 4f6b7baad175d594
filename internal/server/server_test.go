package server

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tendant/ecosort-api/internal/config"
	"github.com/tendant/ecosort-api/internal/models"
	"github.com/tendant/ecosort-api/internal/storage"
)

type fakeModel struct {
	mu     sync.Mutex
	text   string
	err    error
	prompt models.Prompt
}

func (f *fakeModel) Describe(ctx context.Context, p models.Prompt) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompt = p
	return f.text, f.err
}

func (f *fakeModel) Name() string { return "fake:vision" }

type fixture struct {
	cfg       config.Config
	uploadDir string
	model     *fakeModel
	server    *Server
	http      *httptest.Server
}

func newFixture(t *testing.T, extra map[string]string) *fixture {
	t.Helper()
	root := t.TempDir()
	dataDir := filepath.Join(root, "data")
	uploadDir := filepath.Join(root, "uploads")
	staticDir := filepath.Join(root, "static")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	require.NoError(t, os.MkdirAll(staticDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "toronto"+storage.DocumentSuffix),
		[]byte("Blue bin: plastic bottles."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "index.html"),
		[]byte("<html>EcoSort</html>"), 0o644))

	environ := map[string]string{
		"DATA_DIR":        dataDir,
		"UPLOAD_DIR":      uploadDir,
		"STATIC_DIR":      staticDir,
		"MAX_IMAGE_SIZE":  "80000",
		"METRICS_ENABLED": "true",
	}
	for k, v := range extra {
		environ[k] = v
	}
	cfg, err := config.FromMap(environ)
	require.NoError(t, err)

	model := &fakeModel{text: "Rinse it and put it in the blue bin."}
	s, err := New(cfg, model, zaptest.NewLogger(t))
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	return &fixture{cfg: cfg, uploadDir: uploadDir, model: model, server: s, http: ts}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(1, 1, color.RGBA{G: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func (f *fixture) upload(t *testing.T, img []byte, metadata string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "bottle.png")
	require.NoError(t, err)
	_, err = part.Write(img)
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("metadata", metadata))
	require.NoError(t, mw.Close())

	resp, err := http.Post(f.http.URL+"/upload-image", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func stagedFiles(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return entries
}

func TestServer_UploadSuccess(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.upload(t, pngBytes(t), `{"city":null,"region":"Toronto Region"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{
		"filename": "bottle.png",
		"content_type": "application/octet-stream",
		"metadata": {"city": null, "region": "Toronto Region"},
		"response": "Rinse it and put it in the blue bin."
	}`, readBody(t, resp))

	assert.Contains(t, f.model.prompt.Text, "Blue bin: plastic bottles.")
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
	assert.Empty(t, stagedFiles(t, f.uploadDir))
}

func TestServer_UploadClientErrors(t *testing.T) {
	f := newFixture(t, nil)

	cases := []struct {
		name     string
		metadata string
		detail   string
	}{
		{"invalid json", `not json`, "Invalid JSON metadata"},
		{"unknown region", `{"region":"atlantis"}`, "Instruction not found for specified city or region"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := f.upload(t, pngBytes(t), tc.metadata)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.JSONEq(t, `{"detail":"`+tc.detail+`"}`, readBody(t, resp))
		})
	}
}

func TestServer_UploadTooLarge(t *testing.T) {
	f := newFixture(t, map[string]string{"MAX_IMAGE_SIZE": "100"})

	resp := f.upload(t, bytes.Repeat([]byte("a"), 101), `{"region":"toronto"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"detail":"Image too large, must be smaller than 100 bytes"}`, readBody(t, resp))
}

func TestServer_UploadModelFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.model.err = errors.New("401 invalid api key sk-secret")

	resp := f.upload(t, pngBytes(t), `{"region":"toronto"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := readBody(t, resp)
	assert.JSONEq(t, `{"detail":"Internal server error"}`, body)
	assert.NotContains(t, body, "sk-secret")
	assert.Empty(t, stagedFiles(t, f.uploadDir))
}

func TestServer_SystemRoutes(t *testing.T) {
	f := newFixture(t, nil)

	t.Run("health", func(t *testing.T) {
		resp, err := http.Get(f.http.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"status":"healthy"}`, readBody(t, resp))
	})

	t.Run("regions", func(t *testing.T) {
		resp, err := http.Get(f.http.URL + "/regions")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.JSONEq(t, `{"regions":["toronto"]}`, readBody(t, resp))
	})

	t.Run("index redirects to static page", func(t *testing.T) {
		resp, err := http.Get(f.http.URL + "/")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, strings.HasPrefix(resp.Request.URL.Path, "/static/"))
		assert.Contains(t, readBody(t, resp), "EcoSort")
	})

	t.Run("metrics", func(t *testing.T) {
		f.upload(t, pngBytes(t), `{"region":"toronto"}`)

		resp, err := http.Get(f.http.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		body := readBody(t, resp)
		assert.Contains(t, body, `ecosort_uploads_total{outcome="success"}`)
		assert.Contains(t, body, `ecosort_model_request_duration_seconds_count{model="fake:vision"}`)
	})
}

func TestServer_MetricsDisabled(t *testing.T) {
	f := newFixture(t, map[string]string{"METRICS_ENABLED": "false"})

	resp, err := http.Get(f.http.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_CORS(t *testing.T) {
	f := newFixture(t, map[string]string{"ALLOWED_ORIGINS": "https://ecosort.example"})

	req, err := http.NewRequest(http.MethodOptions, f.http.URL+"/upload-image", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://ecosort.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "https://ecosort.example", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Empty(t, resp2.Header.Get("Access-Control-Allow-Origin"))
}

func TestServer_RecoversPanics(t *testing.T) {
	f := newFixture(t, nil)

	h := f.server.recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail":"Internal server error"}`, rec.Body.String())
}

func TestServer_RecoverAfterResponseStarted(t *testing.T) {
	f := newFixture(t, nil)

	h := f.server.recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("partial"))
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "partial", rec.Body.String())
}

func TestNew_MissingDataDir(t *testing.T) {
	cfg, err := config.FromMap(map[string]string{
		"DATA_DIR":   filepath.Join(t.TempDir(), "nope"),
		"UPLOAD_DIR": t.TempDir(),
	})
	require.NoError(t, err)

	_, err = New(cfg, &fakeModel{}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestServer_RunShutsDownOnCancel(t *testing.T) {
	port := freePort(t)
	f := newFixture(t, map[string]string{"HOST": "127.0.0.1", "PORT": strconv.Itoa(port)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + f.cfg.Addr() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_RunReportsListenError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	port := l.Addr().(*net.TCPAddr).Port

	f := newFixture(t, map[string]string{"HOST": "127.0.0.1", "PORT": strconv.Itoa(port)})
	err = f.server.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server failed")
}
