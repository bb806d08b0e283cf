package manager

import (
	"time"

	"lmhost/pkg/types"
)

// ModelStatus reports availability and runtime state for one model.
func (m *Manager) ModelStatus(modelID string) (types.ModelStatus, bool) {
	av := m.Availability(modelID)
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.models[modelID]
	if !ok {
		return types.ModelStatus{}, false
	}
	return m.modelStatusLocked(st, av), true
}

func (m *Manager) modelStatusLocked(st *modelState, av types.Availability) types.ModelStatus {
	ms := types.ModelStatus{
		Model:         st.model,
		Availability:  av,
		MaxQueueDepth: m.maxQueueDepth,
	}
	if st.downloading {
		ms.DownloadProgress = st.fraction()
	}
	if inst := st.inst; inst != nil {
		ms.Loaded = inst.session != nil
		ms.LastUsed = inst.LastUsed.Unix()
		ms.QueueLen = len(inst.queueCh)
		ms.Inflight = len(inst.genCh)
		ms.MaxQueueDepth = cap(inst.queueCh)
	}
	return ms
}

// Models returns status entries for every registered model, in registry order.
func (m *Manager) Models() []types.ModelStatus {
	ids := make([]string, 0)
	for _, mdl := range m.ListModels() {
		ids = append(ids, mdl.ID)
	}
	out := make([]types.ModelStatus, 0, len(ids))
	for _, id := range ids {
		if ms, ok := m.ModelStatus(id); ok {
			out = append(out, ms)
		}
	}
	return out
}

// Status builds a detailed status response for /status. Session counts are
// filled in by the caller that owns the sessions.
func (m *Manager) Status() types.StatusResponse {
	models := m.Models()
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now()
	return types.StatusResponse{
		Models:         models,
		Backend:        m.adapter.Name(),
		LastError:      m.lastErr,
		UptimeSeconds:  int64(now.Sub(m.startTime) / time.Second),
		ServerTimeUnix: now.Unix(),
		DownloadsTotal: m.downloadsTotal,
		LoadsTotal:     m.loadsTotal,
	}
}
