package manager

import (
	"time"

	"lmhost/pkg/types"
)

// ProgressFunc receives download progress in bytes. total is 0 when the
// source does not report a size.
type ProgressFunc func(loaded, total int64)

// modelState is the mutable bookkeeping for one registry entry.
type modelState struct {
	model types.Model
	// download bookkeeping, guarded by Manager.mu
	downloading bool
	loaded      int64
	total       int64
	listeners   map[int]ProgressFunc
	// inst is created lazily on first generation.
	inst *Instance
}

// fraction reports download progress in [0, 1].
func (st *modelState) fraction() float64 {
	if st.total <= 0 {
		return 0
	}
	f := float64(st.loaded) / float64(st.total)
	if f > 1 {
		f = 1
	}
	return f
}

// Instance represents the runtime side of a model: admission slots and the
// adapter session holding the loaded weights.
type Instance struct {
	ID       string
	LastUsed time.Time
	Draining bool
	// Queueing primitives
	genCh   chan struct{} // size 1: single in-flight generation
	queueCh chan struct{} // buffered: queue slots
	session InferSession
}
