package manager

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// createModelFile writes size bytes to dir/name and returns its path.
func createModelFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, bytes.Repeat([]byte{'x'}, size), 0o644); err != nil {
		t.Fatalf("write model file: %v", err)
	}
	return p
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %s", d)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// fakeAdapter is a lightweight in-memory adapter used for tests.
type fakeAdapter struct {
	startErr   error
	genErr     error
	tokens     []string
	starts     atomic.Int32
	closes     atomic.Int32
	receivedMP string

	mu      sync.Mutex
	lastReq InferRequest
	// block, if set, holds Generate until closed or ctx is done.
	block chan struct{}
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) Start(modelPath string) (InferSession, error) {
	f.starts.Add(1)
	f.mu.Lock()
	f.receivedMP = modelPath
	f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	return fakeSession{f: f}, nil
}

type fakeSession struct{ f *fakeAdapter }

func (s fakeSession) Generate(ctx context.Context, req InferRequest, onToken func(string) error) (FinalResult, error) {
	s.f.mu.Lock()
	s.f.lastReq = req
	s.f.mu.Unlock()
	if s.f.block != nil {
		select {
		case <-s.f.block:
		case <-ctx.Done():
			return FinalResult{}, ctx.Err()
		}
	}
	if s.f.genErr != nil {
		return FinalResult{}, s.f.genErr
	}
	for _, t := range s.f.tokens {
		if err := onToken(t); err != nil {
			return FinalResult{}, err
		}
	}
	return FinalResult{FinishReason: "stop"}, nil
}

func (s fakeSession) Close() error {
	s.f.closes.Add(1)
	return nil
}

// gateFetcher serves data once gate is closed and counts opens.
type gateFetcher struct {
	data  []byte
	gate  chan struct{}
	err   error
	opens atomic.Int32
}

func (f *gateFetcher) Open(ctx context.Context, source string) (io.ReadCloser, int64, error) {
	f.opens.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, 0, f.err
	}
	return io.NopCloser(bytes.NewReader(f.data)), int64(len(f.data)), nil
}

var errBoom = errors.New("boom")
