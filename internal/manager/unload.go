package manager

import (
	"time"
)

// Unload initiates a graceful drain of a loaded model and releases it.
//   - Marks the instance draining so new generations are rejected.
//   - Waits up to drainTimeout for in-flight and queued requests to finish.
//   - Closes the runtime session and forgets the instance.
//
// If the drain times out the instance keeps serving, its runtime is left
// open and a TooBusy error is returned. The artifact stays on disk; the next
// generation after an unload loads it again.
func (m *Manager) Unload(modelID string) error {
	if modelID == "" {
		return ErrModelNotFound("(unspecified)")
	}
	m.mu.Lock()
	st, ok := m.models[modelID]
	if !ok {
		m.mu.Unlock()
		return ErrModelNotFound(modelID)
	}
	inst := st.inst
	if inst == nil {
		m.mu.Unlock()
		return nil
	}
	inst.Draining = true
	m.mu.Unlock()
	m.emit("unload_start", modelID, nil)

	deadline := time.Now().Add(m.drainTimeout)
	for {
		m.mu.RLock()
		qlen := len(inst.queueCh)
		inflight := len(inst.genCh)
		m.mu.RUnlock()
		if inflight == 0 && qlen == 0 {
			break
		}
		if time.Now().After(deadline) {
			m.mu.Lock()
			inst.Draining = false
			m.mu.Unlock()
			m.emit("unload_timeout", modelID, map[string]any{"inflight": inflight, "queue": qlen})
			return ErrTooBusy(modelID)
		}
		time.Sleep(10 * time.Millisecond)
	}

	m.mu.Lock()
	sess := inst.session
	inst.session = nil
	if st.inst == inst {
		st.inst = nil
	}
	m.mu.Unlock()
	if sess != nil {
		if err := sess.Close(); err != nil {
			m.emit("unload_error", modelID, map[string]any{"error": err.Error()})
			return err
		}
	}
	m.emit("unload_done", modelID, nil)
	return nil
}
