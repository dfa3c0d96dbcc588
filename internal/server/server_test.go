package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artmorph-ai/artmorph/internal/codegen"
	"github.com/artmorph-ai/artmorph/internal/config"
	"github.com/artmorph-ai/artmorph/internal/provider"
	"github.com/artmorph-ai/artmorph/internal/quota"
)

func testPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func testConfig() config.Config {
	return config.Config{
		Port: "0",
		Providers: map[string]config.ProviderConfig{
			"groq": {Model: "test-model", DailyLimit: 100},
		},
		MaxConcurrent: 4,
		CORSOrigins:   []string{"https://allowed.example"},
	}
}

// newTestServer wires a server whose only provider is the given one; pass nil
// for a provider-less server that always falls back to the mock artifact.
func newTestServer(t *testing.T, p provider.Provider) *Server {
	t.Helper()
	store := quota.NewFileStore(filepath.Join(t.TempDir(), "rate_limit.json"), map[string]int{"groq": 100})
	var providers []provider.Provider
	if p != nil {
		providers = append(providers, p)
	}
	gen := codegen.NewGenerator(providers, store, "", 0)
	return New(testConfig(), gen, store, providers, nil)
}

func multipartSnapshot(t *testing.T, image []byte, tier string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "canvas.png")
	require.NoError(t, err)
	_, err = fw.Write(image)
	require.NoError(t, err)
	if tier != "" {
		require.NoError(t, mw.WriteField("tier", tier))
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestGenerateStreamsVendorOutput(t *testing.T) {
	vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"hello\"}}]}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer vendor.Close()

	groq := provider.NewGroq("key", "m", time.Second, provider.WithGroqURL(vendor.URL))
	h := newTestServer(t, groq).Handler()

	body, contentType := multipartSnapshot(t, testPNG(t), "free")
	req := httptest.NewRequest(http.MethodPost, "/generate", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
}

func TestGenerateFallsBackToMock(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	body, contentType := multipartSnapshot(t, testPNG(t), "free")
	req := httptest.NewRequest(http.MethodPost, "/generate", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, codegen.MockArtifact, rec.Body.String())
}

func TestGenerateRejectsInvalidImage(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	body, contentType := multipartSnapshot(t, []byte("not a png"), "free")
	req := httptest.NewRequest(http.MethodPost, "/generate", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateRequiresMultipart(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader("raw"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRootBanner(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "running", got["status"])
	assert.Equal(t, "ArtMorph Code Generator", got["service"])
}

func TestHealthReportsKeysAndQuota(t *testing.T) {
	groq := provider.NewGroq("key", "m", time.Second)
	srv := newTestServer(t, groq)
	require.True(t, srv.quota.Reserve(context.Background(), "groq"))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var got struct {
		Status string            `json:"status"`
		Keys   map[string]bool   `json:"api_keys_configured"`
		State  quota.State       `json:"rate_limit_state"`
		Tiers  map[string]string `json:"tiers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "healthy", got.Status)
	assert.True(t, got.Keys["groq"])
	assert.Equal(t, 1, got.State.Counts["groq"])
	assert.Contains(t, got.Tiers["free"], "test-model")
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/generate", nil)
	req.Header.Set("Origin", "https://allowed.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://allowed.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/generate", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestConcurrencyLimitReturns503(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.sem.TryAcquire(srv.cfg.MaxConcurrent) // saturate

	body, contentType := multipartSnapshot(t, testPNG(t), "free")
	req := httptest.NewRequest(http.MethodPost, "/generate", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
