package languagemodel

import (
	"context"
	"io"
	"iter"
	"sync"

	"lmhost/pkg/types"
)

// Stream is a single-pass sequence of completion chunks. Read it with Recv
// until io.EOF, or range over All. Close abandons it early. A stream holds the
// session's operation slot until it is drained or closed.
type Stream struct {
	s  *Session
	op string
	t  *turn

	ctx     context.Context
	cancel  context.CancelFunc
	release func()

	chunks chan string
	// reply and genErr are written before chunks is closed.
	reply  string
	genErr error

	mu    sync.Mutex
	done  bool
	final error
}

// Recv returns the next chunk, io.EOF after the last one, or the error that
// ended the stream. The turn is added to history when Recv reaches io.EOF.
func (st *Stream) Recv() (string, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.done {
		return "", st.final
	}
	if err := st.ctx.Err(); err != nil {
		st.finish(st.s.classify(st.op, st.ctx, err))
		return "", st.final
	}
	select {
	case tok, ok := <-st.chunks:
		if ok {
			return tok, nil
		}
	case <-st.ctx.Done():
		st.finish(st.s.classify(st.op, st.ctx, st.ctx.Err()))
		return "", st.final
	}

	if st.genErr != nil {
		st.finish(st.s.classify(st.op, st.ctx, st.genErr))
	} else if err := st.ctx.Err(); err != nil {
		st.finish(st.s.classify(st.op, st.ctx, err))
	} else {
		st.finish(st.s.commit(st.op, st.t, st.reply))
	}
	return "", st.final
}

// finish stops generation, waits for the producer to exit and frees the
// session slot. Callers hold st.mu.
func (st *Stream) finish(err error) {
	st.cancel()
	for range st.chunks {
	}
	st.release()
	observePrompt("stream", err)
	if err == nil {
		err = io.EOF
	}
	st.final = err
	st.done = true
}

// All yields chunks until the stream ends. A failure is yielded once as the
// final element. Breaking out of the loop closes the stream.
func (st *Stream) All() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		defer st.Close()
		for {
			tok, err := st.Recv()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			if !yield(tok, nil) {
				return
			}
		}
	}
}

// Close abandons the stream. Unless Recv already returned io.EOF, history
// and usage are left unchanged and later Recv calls report Aborted.
func (st *Stream) Close() error {
	st.cancel()
	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.done {
		st.finish(newError(KindAborted, st.op, "stream closed"))
	}
	return nil
}

// PromptStreaming is Prompt delivered as chunks. The chunks concatenate to
// the completion; history is updated once the consumer reads past the last
// chunk. Validation, capability and quota failures are returned directly;
// generation failures and cancellation are returned by Recv.
func (s *Session) PromptStreaming(ctx context.Context, input []types.Message, opts PromptOptions) (*Stream, error) {
	const op = "promptStreaming"
	opCtx, release, err := s.begin(ctx, op)
	if err != nil {
		observePrompt("stream", err)
		return nil, err
	}
	t, err := s.prepare(op, input, opts)
	if err != nil {
		release()
		observePrompt("stream", err)
		return nil, err
	}
	streamCtx, cancel := context.WithCancel(opCtx)
	st := &Stream{
		s:       s,
		op:      op,
		t:       t,
		ctx:     streamCtx,
		cancel:  cancel,
		release: release,
		chunks:  make(chan string, s.svc.streamBuffer),
	}
	go func() {
		st.reply, st.genErr = s.generate(streamCtx, op, t, func(tok string) error {
			select {
			case st.chunks <- tok:
				return nil
			case <-streamCtx.Done():
				return streamCtx.Err()
			}
		})
		close(st.chunks)
	}()
	return st, nil
}
