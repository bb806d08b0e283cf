package manager

import (
	"context"
	"strings"
	"time"

	"lmhost/pkg/types"
)

// GenerateRequest is one generation against a registered model.
type GenerateRequest struct {
	// ModelID may be empty to select the default model.
	ModelID  string
	Prompt   string
	Messages []types.Message
	Params   InferParams
}

// Generate runs one generation on the model's runtime, streaming tokens to
// onToken. The model must already be on disk; the runtime session is loaded
// on first use and reused afterwards. Generations on the same model are
// admitted one at a time through the per-model queue.
func (m *Manager) Generate(ctx context.Context, req GenerateRequest, onToken func(string) error) (FinalResult, error) {
	modelID, err := m.ResolveModelID(req.ModelID)
	if err != nil {
		return FinalResult{}, err
	}
	mdl, ok := m.Model(modelID)
	if !ok {
		return FinalResult{}, ErrModelNotFound(modelID)
	}
	if av := m.Availability(modelID); av != types.AvailabilityAvailable {
		return FinalResult{}, modelUnavailableError{id: modelID, why: "model is " + string(av)}
	}

	// Admission: per-instance FIFO queue, single in-flight
	inst, release, err := m.beginGeneration(ctx, modelID)
	if err != nil {
		return FinalResult{}, err
	}
	defer release()

	sess, err := m.loadSession(inst, mdl.Path)
	if err != nil {
		return FinalResult{}, err
	}
	if onToken == nil {
		onToken = func(string) error { return nil }
	}
	var b strings.Builder
	final, err := sess.Generate(ctx, InferRequest{Prompt: req.Prompt, Messages: req.Messages, Params: req.Params}, func(tok string) error {
		b.WriteString(tok)
		return onToken(tok)
	})
	if err != nil {
		return FinalResult{}, err
	}
	if final.Content == "" {
		final.Content = b.String()
	}
	m.mu.Lock()
	inst.LastUsed = time.Now()
	m.mu.Unlock()
	return final, nil
}

// loadSession returns the instance's runtime session, starting it on first
// use. Callers must hold the instance's generation slot.
func (m *Manager) loadSession(inst *Instance, path string) (InferSession, error) {
	modelID := inst.ID
	m.mu.RLock()
	sess := inst.session
	m.mu.RUnlock()
	if sess != nil {
		return sess, nil
	}

	startTs := time.Now()
	sess, err := m.adapter.Start(path)
	if err != nil {
		m.mu.Lock()
		m.lastErr = err.Error()
		m.mu.Unlock()
		m.emit("load_error", modelID, map[string]any{"error": err.Error()})
		return nil, err
	}
	m.mu.Lock()
	inst.session = sess
	m.loadsTotal++
	m.mu.Unlock()
	m.emit("load_done", modelID, map[string]any{"backend": m.adapter.Name(), "dur_ms": int(time.Since(startTs) / time.Millisecond)})
	return sess, nil
}
