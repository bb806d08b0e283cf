package languagemodel

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"lmhost/internal/manager"
	"lmhost/pkg/types"
)

// Text builds a prompt input holding one user text message.
func Text(s string) []types.Message { return []types.Message{types.UserText(s)} }

// PromptOptions tunes a prompt or measurement.
type PromptOptions struct {
	// ResponseConstraint is a JSON Schema the completion must satisfy.
	ResponseConstraint []byte
	// OmitResponseConstraintInput keeps the constraint out of the model input
	// and out of the charged tokens.
	OmitResponseConstraintInput bool
}

type sessionConfig struct {
	id          string
	model       types.Model
	temperature float64
	topK        int
	expected    []types.ContentType
	quota       int
	seed        []types.Message
	seedCost    int
}

// Session is one conversation. Mutating operations (Prompt, PromptStreaming,
// Append, Clone) run one at a time in call order; Destroy may be called at
// any point and makes in-flight and later operations fail with Disposed.
type Session struct {
	svc     *Service
	cfg     sessionConfig
	created time.Time

	// slot admits one mutating operation at a time.
	slot chan struct{}
	// life is canceled by Destroy.
	life context.Context
	kill context.CancelFunc

	mu        sync.Mutex
	destroyed bool
	history   []types.Message
	usage     int
}

func newSession(svc *Service, cfg sessionConfig) *Session {
	life, kill := context.WithCancel(context.Background())
	s := &Session{
		svc:     svc,
		cfg:     cfg,
		created: time.Now(),
		slot:    make(chan struct{}, 1),
		life:    life,
		kill:    kill,
		history: types.CloneMessages(cfg.seed),
		usage:   cfg.seedCost,
	}
	svc.active.Add(1)
	sessionsActive.Inc()
	return s
}

func (s *Session) ID() string                          { return s.cfg.id }
func (s *Session) Model() string                       { return s.cfg.model.ID }
func (s *Session) Temperature() float64                { return s.cfg.temperature }
func (s *Session) TopK() int                           { return s.cfg.topK }
func (s *Session) InputQuota() int                     { return s.cfg.quota }
func (s *Session) CreatedAt() time.Time                { return s.created }
func (s *Session) ExpectedInputs() []types.ContentType { return slices.Clone(s.cfg.expected) }

// InputUsage returns the input tokens charged so far.
func (s *Session) InputUsage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

// History returns a copy of the conversation, seed included.
func (s *Session) History() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.CloneMessages(s.history)
}

// Destroyed reports whether Destroy has been called.
func (s *Session) Destroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

// Destroy ends the session. It is idempotent and never blocks on in-flight
// operations.
func (s *Session) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	s.history = nil
	s.mu.Unlock()
	s.kill()
	s.svc.active.Add(-1)
	sessionsActive.Dec()
	s.svc.log.Info().Str("session", s.cfg.id).Msg("session destroyed")
}

// Prompt submits input and returns the full completion. The input and the
// reply are added to history only on success.
func (s *Session) Prompt(ctx context.Context, input []types.Message, opts PromptOptions) (string, error) {
	const op = "prompt"
	reply, err := s.prompt(ctx, op, input, opts)
	observePrompt(op, err)
	return reply, err
}

func (s *Session) prompt(ctx context.Context, op string, input []types.Message, opts PromptOptions) (string, error) {
	opCtx, release, err := s.begin(ctx, op)
	if err != nil {
		return "", err
	}
	defer release()
	t, err := s.prepare(op, input, opts)
	if err != nil {
		return "", err
	}
	reply, err := s.generate(opCtx, op, t, nil)
	if err != nil {
		return "", s.classify(op, opCtx, err)
	}
	if err := s.commit(op, t, reply); err != nil {
		return "", err
	}
	return reply, nil
}

// Append adds input to history without generating a reply.
func (s *Session) Append(ctx context.Context, input []types.Message) error {
	const op = "append"
	opCtx, release, err := s.begin(ctx, op)
	if err != nil {
		return err
	}
	defer release()
	if err := validateInput(op, input, s.cfg.expected, inputRules{}); err != nil {
		return err
	}
	cost, err := countMessages(s.svc.counter, input)
	if err != nil {
		return wrapError(KindInternal, op, err)
	}
	if err := s.checkQuota(op, cost); err != nil {
		return err
	}
	if err := opCtx.Err(); err != nil {
		return s.classify(op, opCtx, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return disposed(op)
	}
	s.history = append(s.history, types.CloneMessages(input)...)
	s.usage += cost
	inputTokensTotal.Add(float64(cost))
	return nil
}

// Clone returns a new session with the same configuration and the initial
// prompts only. Turns added after creation are not carried over.
func (s *Session) Clone(ctx context.Context) (*Session, error) {
	const op = "clone"
	opCtx, release, err := s.begin(ctx, op)
	if err != nil {
		return nil, err
	}
	defer release()
	if err := opCtx.Err(); err != nil {
		return nil, s.classify(op, opCtx, err)
	}
	cfg := s.cfg
	cfg.id = uuid.NewString()
	cfg.expected = slices.Clone(s.cfg.expected)
	cfg.seed = types.CloneMessages(s.cfg.seed)
	c := newSession(s.svc, cfg)
	s.svc.log.Info().Str("session", c.cfg.id).Str("origin", s.cfg.id).Msg("session cloned")
	return c, nil
}

// MeasureInputUsage returns what input would cost in a prompt with opts. It
// changes nothing.
func (s *Session) MeasureInputUsage(ctx context.Context, input []types.Message, opts PromptOptions) (int, error) {
	const op = "measureInputUsage"
	if s.Destroyed() {
		return 0, disposed(op)
	}
	if err := ctx.Err(); err != nil {
		return 0, wrapError(KindAborted, op, err)
	}
	cost, _, _, err := s.cost(op, input, opts)
	return cost, err
}

// begin admits a mutating operation. The returned context ends when ctx does
// or when the session is destroyed; release must be called once.
func (s *Session) begin(ctx context.Context, op string) (context.Context, func(), error) {
	if s.Destroyed() {
		return nil, nil, disposed(op)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, wrapError(KindAborted, op, err)
	}
	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, wrapError(KindAborted, op, ctx.Err())
	case <-s.life.Done():
		return nil, nil, disposed(op)
	}
	if s.Destroyed() {
		<-s.slot
		return nil, nil, disposed(op)
	}
	opCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.life, cancel)
	return opCtx, func() {
		stop()
		cancel()
		<-s.slot
	}, nil
}

// turn is a validated, priced prompt ready for generation.
type turn struct {
	input      []types.Message
	cost       int
	constraint *constraint
	hasPrefix  bool
	prefix     string
	transcript string
	messages   []types.Message
}

// cost validates input and prices it. Capability errors surface before any
// token counting.
func (s *Session) cost(op string, input []types.Message, opts PromptOptions) (int, *constraint, string, error) {
	if err := validateInput(op, input, s.cfg.expected, inputRules{allowPrefix: true}); err != nil {
		return 0, nil, "", err
	}
	c, err := compileConstraint(opts.ResponseConstraint)
	if err != nil {
		return 0, nil, "", wrapError(KindInvalidArgument, op, fmt.Errorf("response constraint: %w", err))
	}
	n, err := countMessages(s.svc.counter, input)
	if err != nil {
		return 0, nil, "", wrapError(KindInternal, op, err)
	}
	instruction := ""
	if c != nil && !opts.OmitResponseConstraintInput {
		instruction = c.instruction()
		k, err := s.svc.counter.CountText(instruction)
		if err != nil {
			return 0, nil, "", wrapError(KindInternal, op, err)
		}
		n += k
	}
	return n, c, instruction, nil
}

func (s *Session) prepare(op string, input []types.Message, opts PromptOptions) (*turn, error) {
	n, c, instruction, err := s.cost(op, input, opts)
	if err != nil {
		return nil, err
	}
	if err := s.checkQuota(op, n); err != nil {
		return nil, err
	}
	t := &turn{input: types.CloneMessages(input), cost: n, constraint: c}
	if k := len(input); k > 0 && input[k-1].Prefix {
		t.hasPrefix = true
		t.prefix = input[k-1].Text()
	}
	s.mu.Lock()
	t.messages = append(types.CloneMessages(s.history), t.input...)
	s.mu.Unlock()
	t.transcript = renderTranscript(t.messages, instruction)
	return t, nil
}

func (s *Session) checkQuota(op string, cost int) error {
	s.mu.Lock()
	usage := s.usage
	s.mu.Unlock()
	if usage+cost > s.cfg.quota {
		return newError(KindQuotaExceeded, op, "input needs %d tokens, %d of %d remain", cost, s.cfg.quota-usage, s.cfg.quota)
	}
	return nil
}

func (s *Session) generate(ctx context.Context, op string, t *turn, onToken func(string) error) (string, error) {
	params := manager.InferParams{
		Temperature: float32(s.cfg.temperature),
		TopK:        s.cfg.topK,
	}
	if t.constraint != nil {
		params.ResponseSchema = t.constraint.raw
	}
	res, err := s.svc.rt.Generate(ctx, manager.GenerateRequest{
		ModelID:  s.cfg.model.ID,
		Prompt:   t.transcript,
		Messages: t.messages,
		Params:   params,
	}, onToken)
	if err != nil {
		return "", err
	}
	if t.constraint != nil {
		if err := t.constraint.check(res.Content); err != nil {
			return "", wrapError(KindInvalidArgument, op, fmt.Errorf("response does not satisfy constraint: %w", err))
		}
	}
	return res.Content, nil
}

// commit records a finished turn. A prefix message is merged with the reply
// into one assistant message.
func (s *Session) commit(op string, t *turn, reply string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return disposed(op)
	}
	in := t.input
	if t.hasPrefix {
		in = in[:len(in)-1]
	}
	s.history = append(s.history, in...)
	s.history = append(s.history, types.AssistantText(t.prefix+reply))
	s.usage += t.cost
	inputTokensTotal.Add(float64(t.cost))
	return nil
}

// classify maps a failure of an admitted operation onto the error taxonomy.
func (s *Session) classify(op string, ctx context.Context, err error) error {
	if s.Destroyed() {
		return disposed(op)
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return wrapError(KindAborted, op, err)
	}
	if manager.IsModelNotFound(err) || manager.IsModelUnavailable(err) || manager.IsDependencyUnavailable(err) {
		return wrapError(KindUnavailable, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func disposed(op string) error {
	return newError(KindDisposed, op, "session is destroyed")
}
