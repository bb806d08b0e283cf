package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lmhost/internal/languagemodel"
	"lmhost/internal/manager"
	"lmhost/pkg/types"
)

// wordCounter charges one token per whitespace-separated word.
type wordCounter struct{}

func (wordCounter) CountText(s string) (int, error) { return len(strings.Fields(s)), nil }

// newStack serves a real session API over the echo adapter. Model "m" is on
// disk and accepts images; "remote" downloads from a local source file.
func newStack(t *testing.T, quota int) (*Server, http.Handler) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "m.gguf")
	if err := os.WriteFile(path, []byte("weights"), 0o644); err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(dir, "remote.src")
	if err := os.WriteFile(src, make([]byte, 4096), 0o644); err != nil {
		t.Fatal(err)
	}
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Registry: []types.Model{
			{ID: "m", Path: path, Inputs: []types.ContentType{types.ContentImage}},
			{ID: "remote", Path: filepath.Join(dir, "remote.gguf"), Source: src},
		},
		DefaultModel: "m",
	})
	t.Cleanup(func() { _ = mgr.Close() })
	svc, err := languagemodel.New(mgr, languagemodel.Options{Counter: wordCounter{}, InputQuota: quota})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	srv := NewServer(svc, mgr)
	t.Cleanup(srv.Close)
	return srv, srv.Handler()
}

type mockService struct {
	params    types.SamplingParams
	avail     types.Availability
	availErr  error
	createErr error
	lastOpts  languagemodel.CreateOptions
}

func (m *mockService) Availability(_ context.Context, opts languagemodel.CreateOptions) (types.Availability, error) {
	m.lastOpts = opts
	return m.avail, m.availErr
}

func (m *mockService) Params() types.SamplingParams { return m.params }

func (m *mockService) Create(_ context.Context, opts languagemodel.CreateOptions) (*languagemodel.Session, error) {
	m.lastOpts = opts
	return nil, m.createErr
}

type mockHost struct {
	models    []types.ModelStatus
	status    types.StatusResponse
	ready     bool
	unloadErr error
	unloaded  []string
}

func (m *mockHost) Models() []types.ModelStatus  { return m.models }
func (m *mockHost) Status() types.StatusResponse { return m.status }
func (m *mockHost) Ready() bool                  { return m.ready }
func (m *mockHost) Unload(id string) error {
	m.unloaded = append(m.unloaded, id)
	return m.unloadErr
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("json: %v (body=%q)", err, w.Body.String())
	}
	return v
}

func ndjsonLines[T any](t *testing.T, w *httptest.ResponseRecorder) []T {
	t.Helper()
	var out []T
	sc := bufio.NewScanner(bytes.NewReader(w.Body.Bytes()))
	for sc.Scan() {
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(sc.Bytes(), &v); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		out = append(out, v)
	}
	return out
}

func createSession(t *testing.T, h http.Handler, req types.CreateSessionRequest) types.SessionResponse {
	t.Helper()
	w := do(t, h, http.MethodPost, "/sessions", req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", w.Code, w.Body.String())
	}
	return decode[types.SessionResponse](t, w)
}

func newRequest(method, path, body string) *http.Request {
	return httptest.NewRequest(method, path, strings.NewReader(body))
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}
