package manager

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"lmhost/pkg/types"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
	defaultDrainTimeout  = 5 * time.Second
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Registry      []types.Model
	DefaultModel  string
	MaxQueueDepth int
	MaxWait       time.Duration
	DrainTimeout  time.Duration
	// Adapter runs inference. Nil selects the echo adapter.
	Adapter InferenceAdapter
	// Fetcher opens model sources for download. Nil selects DefaultFetcher.
	Fetcher   Fetcher
	Publisher EventPublisher
	Logger    *zerolog.Logger
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		models:       make(map[string]*modelState, len(cfg.Registry)),
		defaultModel: cfg.DefaultModel,
		adapter:      cfg.Adapter,
		fetcher:      cfg.Fetcher,
		publisher:    cfg.Publisher,
		log:          zerolog.Nop(),
		startTime:    time.Now(),
	}
	m.baseCtx, m.cancelBase = context.WithCancel(context.Background())
	for _, mdl := range cfg.Registry {
		m.order = append(m.order, mdl.ID)
		m.models[mdl.ID] = &modelState{model: mdl}
	}
	// Apply defaults if unset
	if cfg.MaxQueueDepth <= 0 {
		m.maxQueueDepth = defaultMaxQueueDepth
	} else {
		m.maxQueueDepth = cfg.MaxQueueDepth
	}
	if cfg.MaxWait <= 0 {
		m.maxWait = defaultMaxWait
	} else {
		m.maxWait = cfg.MaxWait
	}
	if cfg.DrainTimeout <= 0 {
		m.drainTimeout = defaultDrainTimeout
	} else {
		m.drainTimeout = cfg.DrainTimeout
	}
	if m.adapter == nil {
		m.adapter = NewEchoAdapter(0)
	}
	if m.fetcher == nil {
		m.fetcher = DefaultFetcher{}
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	if cfg.Logger != nil {
		m.log = cfg.Logger.With().Str("component", "manager").Logger()
	}
	return m
}
