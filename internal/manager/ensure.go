package manager

import (
	"context"
	"time"

	units "github.com/docker/go-units"

	"lmhost/internal/common/fsutil"
)

// minProgressStep is the minimum byte delta between progress reports when the
// source size is unknown.
const minProgressStep = 1 << 20

// EnsureModel makes the model artifact available on disk, downloading it from
// its declared source when needed. Concurrent callers share one download.
// Canceling ctx stops the wait, not the shared download. progress, if set,
// receives byte counts while this call waits.
func (m *Manager) EnsureModel(ctx context.Context, modelID string, progress ProgressFunc) error {
	startTs := time.Now()
	m.mu.Lock()
	st, ok := m.models[modelID]
	if !ok {
		m.mu.Unlock()
		m.emit("ensure_model_not_found", modelID, nil)
		return ErrModelNotFound(modelID)
	}
	if !st.downloading && fsutil.FileExists(st.model.Path) {
		m.mu.Unlock()
		return nil
	}
	if !st.downloading && st.model.Source == "" {
		m.mu.Unlock()
		return modelUnavailableError{id: modelID, why: "not on disk and no source declared"}
	}
	key := 0
	if progress != nil {
		m.listenSeq++
		key = m.listenSeq
		if st.listeners == nil {
			st.listeners = make(map[int]ProgressFunc)
		}
		st.listeners[key] = progress
	}
	m.mu.Unlock()
	if key != 0 {
		defer func() {
			m.mu.Lock()
			delete(st.listeners, key)
			m.mu.Unlock()
		}()
	}

	m.emit("ensure_start", modelID, nil)
	ch := m.downloads.DoChan(modelID, func() (any, error) {
		return nil, m.download(modelID)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return res.Err
		}
		m.emit("ensure_ready", modelID, map[string]any{"dur_ms": int(time.Since(startTs) / time.Millisecond)})
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// download runs one fetch of modelID into its registry path.
func (m *Manager) download(modelID string) error {
	m.mu.Lock()
	st := m.models[modelID]
	if fsutil.FileExists(st.model.Path) {
		// A previous flight finished between the caller's check and ours.
		m.mu.Unlock()
		return nil
	}
	st.downloading = true
	st.loaded, st.total = 0, 0
	mdl := st.model
	m.mu.Unlock()
	m.emit("download_start", modelID, map[string]any{"source": mdl.Source})

	err := m.fetch(modelID, mdl.Source, mdl.Path)

	m.mu.Lock()
	st.downloading = false
	loaded := st.loaded
	if err != nil {
		m.lastErr = err.Error()
	} else {
		m.downloadsTotal++
	}
	m.mu.Unlock()

	if err != nil {
		m.emit("download_error", modelID, map[string]any{"error": err.Error()})
		return modelUnavailableError{id: modelID, why: "download failed: " + err.Error()}
	}
	m.emit("download_done", modelID, map[string]any{"bytes": loaded, "size": units.HumanSize(float64(loaded))})
	return nil
}

func (m *Manager) fetch(modelID, source, dst string) error {
	rc, size, err := m.fetcher.Open(m.baseCtx, source)
	if err != nil {
		return err
	}
	defer rc.Close()

	var reported int64 = -1
	report := func(n int64) {
		step := int64(minProgressStep)
		if size > 0 {
			step = size / 100
		}
		if reported >= 0 && n-reported < step && n != size {
			return
		}
		reported = n
		m.setProgress(modelID, n, size)
	}
	report(0)
	n, err := fsutil.WriteFileAtomic(dst, rc, report)
	if err != nil {
		return err
	}
	if reported != n || size == 0 {
		// Final report with a known total so listeners observe completion.
		m.setProgress(modelID, n, n)
	}
	return nil
}

// setProgress records progress and fans it out to waiting listeners.
func (m *Manager) setProgress(modelID string, loaded, total int64) {
	m.mu.Lock()
	st := m.models[modelID]
	st.loaded, st.total = loaded, total
	listeners := make([]ProgressFunc, 0, len(st.listeners))
	for _, fn := range st.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(loaded, total)
	}
	m.emit("download_progress", modelID, map[string]any{"loaded": loaded, "total": total})
}
