package manager

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"lmhost/pkg/types"
)

type Manager struct {
	mu           sync.RWMutex
	models       map[string]*modelState
	order        []string
	defaultModel string
	lastErr      string

	adapter   InferenceAdapter
	fetcher   Fetcher
	publisher EventPublisher
	log       zerolog.Logger

	// downloads dedupes concurrent fetches of the same model. Fetches run on
	// baseCtx, detached from callers, so a canceled waiter does not abort a
	// fetch other waiters share.
	downloads  singleflight.Group
	listenSeq  int
	baseCtx    context.Context
	cancelBase context.CancelFunc

	// Queue config
	maxQueueDepth int
	maxWait       time.Duration
	drainTimeout  time.Duration

	startTime      time.Time
	loadsTotal     uint64
	downloadsTotal uint64

	closeOnce sync.Once
}

// New builds a Manager over reg with package defaults.
func New(reg []types.Model, defaultModel string) *Manager {
	return NewWithConfig(ManagerConfig{Registry: reg, DefaultModel: defaultModel})
}

// SetEventPublisher replaces the event sink. Nil restores the no-op sink.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p == nil {
		p = noopPublisher{}
	}
	m.publisher = p
}

// DefaultModel returns the model used when callers do not name one.
func (m *Manager) DefaultModel() string { return m.defaultModel }

// ResolveModelID substitutes the default model for an empty id.
func (m *Manager) ResolveModelID(id string) (string, error) {
	if id != "" {
		return id, nil
	}
	if m.defaultModel == "" {
		return "", modelNotFoundError{id: "(unspecified)"}
	}
	return m.defaultModel, nil
}

// Model returns the registry entry for id.
func (m *Manager) Model(id string) (types.Model, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.models[id]
	if !ok {
		return types.Model{}, false
	}
	return st.model, true
}

func (m *Manager) ListModels() []types.Model {
	m.mu.RLock()
	defer m.mu.RUnlock()
	// return a copy to avoid external mutation
	out := make([]types.Model, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.models[id].model)
	}
	return out
}

// Ready reports whether the default model (or, without a default, any model)
// is available for inference.
func (m *Manager) Ready() bool {
	if m.defaultModel != "" {
		return m.Availability(m.defaultModel) == types.AvailabilityAvailable
	}
	for _, mdl := range m.ListModels() {
		if m.Availability(mdl.ID) == types.AvailabilityAvailable {
			return true
		}
	}
	return false
}

// BackendName reports the inference adapter in use.
func (m *Manager) BackendName() string { return m.adapter.Name() }

// Close abandons in-flight downloads and releases loaded models.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.cancelBase()
		m.mu.Lock()
		var sessions []InferSession
		for _, st := range m.models {
			if st.inst != nil && st.inst.session != nil {
				sessions = append(sessions, st.inst.session)
				st.inst.session = nil
			}
		}
		m.mu.Unlock()
		for _, s := range sessions {
			_ = s.Close()
		}
	})
	return nil
}

// emit logs and publishes a lifecycle event.
func (m *Manager) emit(name, modelID string, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	ev := m.log.Debug()
	if _, failed := fields["error"]; failed {
		ev = m.log.Warn()
	}
	ev.Str("event", name).Str("model", modelID).Fields(fields).Msg("manager")
	m.mu.RLock()
	p := m.publisher
	m.mu.RUnlock()
	p.Publish(Event{Name: name, ModelID: modelID, Fields: fields})
}
