package languagemodel

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"lmhost/internal/manager"
	"lmhost/pkg/types"
)

// wordCounter charges one token per whitespace-separated word.
type wordCounter struct{}

func (wordCounter) CountText(s string) (int, error) { return len(strings.Fields(s)), nil }

// newTestService runs a Service over a real Manager with the echo adapter.
// Model "m" is on disk and accepts images; "remote" is downloadable.
func newTestService(t *testing.T, quota int) (*Service, *manager.Manager) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "m.gguf")
	require.NoError(t, os.WriteFile(path, []byte("weights"), 0o644))
	src := filepath.Join(dir, "remote.src")
	require.NoError(t, os.WriteFile(src, make([]byte, 4096), 0o644))
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Registry: []types.Model{
			{ID: "m", Path: path, Inputs: []types.ContentType{types.ContentImage}},
			{ID: "remote", Path: filepath.Join(dir, "remote.gguf"), Source: src},
			{ID: "gone", Path: filepath.Join(dir, "gone.gguf")},
		},
		DefaultModel: "m",
	})
	t.Cleanup(func() { _ = mgr.Close() })
	svc, err := New(mgr, Options{Counter: wordCounter{}, InputQuota: quota})
	require.NoError(t, err)
	return svc, mgr
}

func newSessionT(t *testing.T, svc *Service, opts CreateOptions) *Session {
	t.Helper()
	s, err := svc.Create(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(s.Destroy)
	return s
}

// fakeRuntime is a scripted Runtime.
type fakeRuntime struct {
	model  types.Model
	tokens []string
	genErr error
	// block holds Generate until closed or ctx ends.
	block chan struct{}
	// started is signaled when Generate begins.
	started chan struct{}

	mu       sync.Mutex
	avail    types.Availability
	lastReq  manager.GenerateRequest
	produced atomic.Int32
}

func newFakeRuntime(tokens ...string) *fakeRuntime {
	return &fakeRuntime{
		model:  types.Model{ID: "fake", Inputs: []types.ContentType{types.ContentAudio}},
		tokens: tokens,
		avail:  types.AvailabilityAvailable,
	}
}

func (f *fakeRuntime) ResolveModelID(id string) (string, error) {
	if id == "" {
		return f.model.ID, nil
	}
	return id, nil
}

func (f *fakeRuntime) Model(id string) (types.Model, bool) {
	return f.model, id == f.model.ID
}

func (f *fakeRuntime) Availability(string) types.Availability {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.avail
}

func (f *fakeRuntime) EnsureModel(ctx context.Context, id string, progress manager.ProgressFunc) error {
	if progress != nil {
		progress(25, 100)
		progress(75, 100)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	f.avail = types.AvailabilityAvailable
	f.mu.Unlock()
	if progress != nil {
		progress(100, 100)
	}
	return nil
}

func (f *fakeRuntime) Generate(ctx context.Context, req manager.GenerateRequest, onToken func(string) error) (manager.FinalResult, error) {
	f.mu.Lock()
	f.lastReq = req
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return manager.FinalResult{}, ctx.Err()
		}
	}
	if f.genErr != nil {
		return manager.FinalResult{}, f.genErr
	}
	var b strings.Builder
	for _, tok := range f.tokens {
		f.produced.Add(1)
		if onToken != nil {
			if err := onToken(tok); err != nil {
				return manager.FinalResult{}, err
			}
		}
		b.WriteString(tok)
	}
	return manager.FinalResult{Content: b.String(), FinishReason: "stop"}, nil
}

func (f *fakeRuntime) request() manager.GenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReq
}

func newFakeService(t *testing.T, rt *fakeRuntime, opts Options) *Service {
	t.Helper()
	if opts.Counter == nil {
		opts.Counter = wordCounter{}
	}
	svc, err := New(rt, opts)
	require.NoError(t, err)
	return svc
}

func ptrF(v float64) *float64 { return &v }
func ptrI(v int) *int         { return &v }
