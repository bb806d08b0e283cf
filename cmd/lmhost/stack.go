package main

import (
	"fmt"
	"runtime"

	"github.com/rs/zerolog"

	"lmhost/internal/config"
	"lmhost/internal/languagemodel"
	"lmhost/internal/manager"
	"lmhost/internal/registry"
)

// stack is the in-process service graph shared by serve and prompt.
type stack struct {
	mgr *manager.Manager
	svc *languagemodel.Service
}

func newStack(cfg config.Config, log zerolog.Logger) (*stack, error) {
	reg, err := registry.Build(cfg.ModelsDir, cfg.Models)
	if err != nil {
		return nil, fmt.Errorf("load models: %w", err)
	}
	maxWait, _ := cfg.MaxWaitDuration()

	var adapter manager.InferenceAdapter
	switch cfg.Backend {
	case "llama":
		if !manager.LlamaBuilt() {
			log.Warn().Msg("llama backend selected but binary built without the 'llama' tag; model loads will fail")
		}
		threads := cfg.LlamaThreads
		if threads <= 0 {
			threads = runtime.NumCPU()
		}
		adapter = manager.NewLlamaAdapter(cfg.LlamaCtx, threads)
	default:
		adapter = manager.NewEchoAdapter(0)
	}

	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Registry:      reg,
		DefaultModel:  cfg.DefaultModel,
		MaxQueueDepth: cfg.MaxQueueDepth,
		MaxWait:       maxWait,
		Adapter:       adapter,
		Logger:        &log,
	})
	svc, err := languagemodel.New(mgr, languagemodel.Options{
		Sampling:     cfg.Sampling,
		InputQuota:   cfg.InputQuota,
		StreamBuffer: cfg.StreamBuffer,
		Logger:       &log,
	})
	if err != nil {
		_ = mgr.Close()
		return nil, err
	}
	log.Info().Int("models", len(reg)).Str("backend", adapter.Name()).Str("models_dir", cfg.ModelsDir).Msg("registry loaded")
	return &stack{mgr: mgr, svc: svc}, nil
}

func (s *stack) Close() error { return s.mgr.Close() }
