package manager

import (
	"lmhost/internal/common/fsutil"
	"lmhost/pkg/types"
)

// Availability derives the lifecycle stage of a model:
//
//	downloading  a fetch is running
//	available    the artifact exists on disk
//	downloadable a source is declared
//	unavailable  unknown model, or nothing to fetch from
//
// The progression only moves forward unless the file is removed externally.
func (m *Manager) Availability(modelID string) types.Availability {
	m.mu.RLock()
	st, ok := m.models[modelID]
	if !ok {
		m.mu.RUnlock()
		return types.AvailabilityUnavailable
	}
	downloading := st.downloading
	mdl := st.model
	m.mu.RUnlock()

	switch {
	case downloading:
		return types.AvailabilityDownloading
	case fsutil.FileExists(mdl.Path):
		return types.AvailabilityAvailable
	case mdl.Source != "":
		return types.AvailabilityDownloadable
	default:
		return types.AvailabilityUnavailable
	}
}
