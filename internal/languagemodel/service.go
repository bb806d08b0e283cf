package languagemodel

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lmhost/internal/manager"
	"lmhost/pkg/types"
)

// Defaults applied when the corresponding Options fields are unset.
const (
	DefaultInputQuota   = 6144
	DefaultStreamBuffer = 16
)

// DefaultSampling is used when Options.Sampling is the zero value.
var DefaultSampling = types.SamplingParams{
	DefaultTopK:        3,
	MaxTopK:            128,
	DefaultTemperature: 1.0,
	MaxTemperature:     2.0,
}

// Runtime is the model lifecycle the service drives. *manager.Manager
// satisfies it.
type Runtime interface {
	ResolveModelID(id string) (string, error)
	Model(id string) (types.Model, bool)
	Availability(id string) types.Availability
	EnsureModel(ctx context.Context, id string, progress manager.ProgressFunc) error
	Generate(ctx context.Context, req manager.GenerateRequest, onToken func(string) error) (manager.FinalResult, error)
}

// Options configures a Service.
type Options struct {
	Sampling types.SamplingParams
	// InputQuota is the per-session input token budget.
	InputQuota int
	// StreamBuffer bounds the chunks a streaming prompt buffers ahead of its
	// consumer.
	StreamBuffer int
	// Counter counts text tokens. Nil selects the cl100k_base tiktoken counter.
	Counter TokenCounter
	Logger  *zerolog.Logger
}

// Service is the model registry and session factory.
type Service struct {
	rt           Runtime
	sampling     types.SamplingParams
	quota        int
	streamBuffer int
	counter      TokenCounter
	log          zerolog.Logger
	active       atomic.Int64
}

// New builds a Service over rt.
func New(rt Runtime, opts Options) (*Service, error) {
	if opts.Sampling == (types.SamplingParams{}) {
		opts.Sampling = DefaultSampling
	}
	if err := opts.Sampling.Validate(); err != nil {
		return nil, fmt.Errorf("sampling: %w", err)
	}
	if opts.InputQuota <= 0 {
		opts.InputQuota = DefaultInputQuota
	}
	if opts.StreamBuffer <= 0 {
		opts.StreamBuffer = DefaultStreamBuffer
	}
	if opts.Counter == nil {
		c, err := NewTiktokenCounter()
		if err != nil {
			return nil, err
		}
		opts.Counter = c
	}
	s := &Service{
		rt:           rt,
		sampling:     opts.Sampling,
		quota:        opts.InputQuota,
		streamBuffer: opts.StreamBuffer,
		counter:      opts.Counter,
		log:          zerolog.Nop(),
	}
	if opts.Logger != nil {
		s.log = opts.Logger.With().Str("component", "languagemodel").Logger()
	}
	return s, nil
}

// DownloadProgress is reported to CreateOptions.Monitor.
type DownloadProgress struct {
	// Loaded is the downloaded fraction in [0, 1].
	Loaded float64
	Bytes  int64
	Total  int64
}

// CreateOptions configures a new session. Availability accepts the same shape.
type CreateOptions struct {
	// Model selects a registry entry; empty uses the default model.
	Model          string
	Temperature    *float64
	TopK           *int
	InitialPrompts []types.Message
	ExpectedInputs []types.ContentType
	// Monitor observes download progress while Create waits for the model.
	// It is informational only.
	Monitor func(DownloadProgress)
}

// Params returns the global sampling bounds.
func (s *Service) Params() types.SamplingParams { return s.sampling }

// InputQuota returns the quota given to new sessions.
func (s *Service) InputQuota() int { return s.quota }

// ActiveSessions counts sessions that have not been destroyed.
func (s *Service) ActiveSessions() int { return int(s.active.Load()) }

// Availability reports whether a session created with opts would be usable.
// Unknown models and unsupported expected inputs report unavailable;
// out-of-range sampling options are an InvalidArgument error.
func (s *Service) Availability(ctx context.Context, opts CreateOptions) (types.Availability, error) {
	const op = "availability"
	if err := ctx.Err(); err != nil {
		return types.AvailabilityUnavailable, wrapError(KindAborted, op, err)
	}
	if _, _, err := checkSampling(op, s.sampling, opts.Temperature, opts.TopK); err != nil {
		return types.AvailabilityUnavailable, err
	}
	for _, ct := range opts.ExpectedInputs {
		if !ct.Valid() {
			return types.AvailabilityUnavailable, newError(KindInvalidArgument, op, "unknown content type %q", ct)
		}
	}
	id, err := s.rt.ResolveModelID(opts.Model)
	if err != nil {
		return types.AvailabilityUnavailable, nil
	}
	mdl, ok := s.rt.Model(id)
	if !ok {
		return types.AvailabilityUnavailable, nil
	}
	for _, ct := range opts.ExpectedInputs {
		if !mdl.Accepts(ct) {
			return types.AvailabilityUnavailable, nil
		}
	}
	return s.rt.Availability(id), nil
}

// Create builds a session, downloading the model first when it is only
// downloadable. Canceling ctx before completion fails with Aborted.
func (s *Service) Create(ctx context.Context, opts CreateOptions) (*Session, error) {
	const op = "create"
	if err := ctx.Err(); err != nil {
		return nil, wrapError(KindAborted, op, err)
	}
	temp, topK, err := checkSampling(op, s.sampling, opts.Temperature, opts.TopK)
	if err != nil {
		return nil, err
	}
	id, err := s.rt.ResolveModelID(opts.Model)
	if err != nil {
		return nil, wrapError(KindUnavailable, op, err)
	}
	mdl, ok := s.rt.Model(id)
	if !ok {
		return nil, newError(KindUnavailable, op, "model %q not found", id)
	}
	expected := make([]types.ContentType, 0, len(opts.ExpectedInputs))
	for _, ct := range opts.ExpectedInputs {
		if !ct.Valid() {
			return nil, newError(KindInvalidArgument, op, "unknown content type %q", ct)
		}
		if !mdl.Accepts(ct) {
			return nil, newError(KindCapability, op, "model %q does not accept %s input", id, ct)
		}
		if !slices.Contains(expected, ct) {
			expected = append(expected, ct)
		}
	}
	if err := validateInput(op, opts.InitialPrompts, expected, inputRules{allowLeadingSystem: true}); err != nil {
		return nil, err
	}
	seedCost, err := countMessages(s.counter, opts.InitialPrompts)
	if err != nil {
		return nil, wrapError(KindInternal, op, err)
	}
	if seedCost > s.quota {
		return nil, newError(KindQuotaExceeded, op, "initial prompts need %d tokens, quota is %d", seedCost, s.quota)
	}

	if err := s.awaitModel(ctx, op, id, opts.Monitor); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, wrapError(KindAborted, op, err)
	}

	sess := newSession(s, sessionConfig{
		id:          uuid.NewString(),
		model:       mdl,
		temperature: temp,
		topK:        topK,
		expected:    expected,
		quota:       s.quota,
		seed:        types.CloneMessages(opts.InitialPrompts),
		seedCost:    seedCost,
	})
	inputTokensTotal.Add(float64(seedCost))
	s.log.Info().Str("session", sess.ID()).Str("model", id).Int("seed_tokens", seedCost).Msg("session created")
	return sess, nil
}

// awaitModel makes the model available, reporting progress to monitor. The
// monitor always sees 0 first and 1 last on success.
func (s *Service) awaitModel(ctx context.Context, op, id string, monitor func(DownloadProgress)) error {
	report := func(DownloadProgress) {}
	last := -1.0
	if monitor != nil {
		report = func(p DownloadProgress) {
			if p.Loaded <= last {
				return
			}
			last = p.Loaded
			monitor(p)
		}
	}
	switch s.rt.Availability(id) {
	case types.AvailabilityAvailable:
		report(DownloadProgress{Loaded: 0})
		report(DownloadProgress{Loaded: 1})
		return nil
	case types.AvailabilityUnavailable:
		return newError(KindUnavailable, op, "model %q is unavailable", id)
	}

	report(DownloadProgress{Loaded: 0})
	start := time.Now()
	progress := make(chan DownloadProgress, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.rt.EnsureModel(ctx, id, func(loaded, total int64) {
			p := DownloadProgress{Bytes: loaded, Total: total}
			if total > 0 {
				p.Loaded = min(float64(loaded)/float64(total), 1)
			}
			// Keep only the newest report while the monitor is busy.
			select {
			case <-progress:
			default:
			}
			progress <- p
		})
	}()
	for {
		select {
		case p := <-progress:
			if p.Loaded < 1 {
				report(p)
			}
		case err := <-done:
			if err != nil {
				if ctx.Err() != nil {
					return wrapError(KindAborted, op, ctx.Err())
				}
				return wrapError(KindUnavailable, op, err)
			}
			report(DownloadProgress{Loaded: 1})
			s.log.Debug().Str("model", id).Dur("waited", time.Since(start)).Msg("model ready")
			return nil
		}
	}
}
