package manager

import (
	"context"
	"time"
)

// instance returns the runtime instance for modelID, creating it on first use.
func (m *Manager) instance(modelID string) (*Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.models[modelID]
	if !ok {
		return nil, ErrModelNotFound(modelID)
	}
	if st.inst == nil {
		st.inst = &Instance{
			ID:       modelID,
			LastUsed: time.Now(),
			genCh:    make(chan struct{}, 1),
			queueCh:  make(chan struct{}, m.maxQueueDepth),
		}
	}
	return st.inst, nil
}

// beginGeneration reserves a queue slot and then the single in-flight slot.
// Returns the admitted instance and a release func to be deferred.
func (m *Manager) beginGeneration(ctx context.Context, modelID string) (*Instance, func(), error) {
	inst, err := m.instance(modelID)
	if err != nil {
		return nil, func() {}, err
	}
	m.mu.RLock()
	draining := inst.Draining
	m.mu.RUnlock()
	// If draining, reject new work to allow graceful unload
	if draining {
		return nil, func() {}, tooBusyError{modelID: modelID}
	}

	// Fast path: respect an already-canceled context
	if err := ctx.Err(); err != nil {
		return nil, func() {}, err
	}

	// Try to reserve a queue slot with timeout
	timer := time.NewTimer(m.maxWait)
	defer timer.Stop()
	select {
	case inst.queueCh <- struct{}{}:
		// reserved queue slot
	case <-ctx.Done():
		return nil, func() {}, ctx.Err()
	case <-timer.C:
		return nil, func() {}, tooBusyError{modelID: modelID}
	}

	// Wait to acquire the single in-flight slot
	acquired := false
	defer func() {
		if !acquired {
			<-inst.queueCh
		}
	}()
	timer2 := time.NewTimer(m.maxWait)
	defer timer2.Stop()
	select {
	case inst.genCh <- struct{}{}:
		acquired = true
		m.mu.Lock()
		inst.LastUsed = time.Now()
		m.mu.Unlock()
		return inst, func() { <-inst.genCh; <-inst.queueCh }, nil
	case <-ctx.Done():
		return nil, func() {}, ctx.Err()
	case <-timer2.C:
		return nil, func() {}, tooBusyError{modelID: modelID}
	}
}
