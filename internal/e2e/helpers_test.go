package e2e

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"lmhost/internal/httpapi"
	"lmhost/internal/languagemodel"
	"lmhost/internal/manager"
	"lmhost/internal/registry"
	"lmhost/pkg/types"
)

// createTempModelsDir creates a temporary directory populated with small .gguf
// files and returns the directory path and the model IDs.
func createTempModelsDir(t *testing.T, ids ...string) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	for _, id := range ids {
		p := filepath.Join(dir, id+registry.ModelExt)
		require.NoError(t, os.WriteFile(p, []byte("weights"), 0o644), "write temp model %s", p)
	}
	return dir, ids
}

// newServerForDir serves the full stack over the echo runtime.
func newServerForDir(t *testing.T, modelsDir, defaultModel string) *httptest.Server {
	t.Helper()
	return newServerForDirWithConfig(t, modelsDir, nil, manager.ManagerConfig{DefaultModel: defaultModel}, languagemodel.Options{})
}

// newServerForDirWithConfig allows configuring catalog, queueing and quotas.
func newServerForDirWithConfig(t *testing.T, modelsDir string, catalog []types.Model, cfg manager.ManagerConfig, opts languagemodel.Options) *httptest.Server {
	t.Helper()
	reg, err := registry.Build(modelsDir, catalog)
	require.NoError(t, err, "build registry")
	cfg.Registry = reg
	mgr := manager.NewWithConfig(cfg)
	t.Cleanup(func() { _ = mgr.Close() })
	svc, err := languagemodel.New(mgr, opts)
	require.NoError(t, err)
	api := httpapi.NewServer(svc, mgr)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	t.Cleanup(api.Close)
	return srv
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpDo(t *testing.T, method, url string, payload any) (*http.Response, []byte) {
	t.Helper()
	resp := httpOpen(t, method, url, payload)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

// httpOpen returns the response with its body unread.
func httpOpen(t *testing.T, method, url string, payload any) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, body)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeInto[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v), "body=%s", body)
	return v
}

func ndjson[T any](t *testing.T, body []byte) []T {
	t.Helper()
	var out []T
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		out = append(out, decodeInto[T](t, sc.Bytes()))
	}
	return out
}

func createSession(t *testing.T, base string, req types.CreateSessionRequest) types.SessionResponse {
	t.Helper()
	resp, body := httpDo(t, http.MethodPost, base+"/sessions", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body=%s", body)
	return decodeInto[types.SessionResponse](t, body)
}
