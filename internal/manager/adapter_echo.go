package manager

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lmhost/pkg/types"
)

// echoAdapter is a deterministic in-process runtime. It never reads model
// weights: replies are derived from the last user turn, and a response schema
// is answered with a minimal instance of that schema.
type echoAdapter struct {
	delay time.Duration
}

// NewEchoAdapter returns the echo runtime. delay is slept between tokens.
func NewEchoAdapter(delay time.Duration) InferenceAdapter {
	return &echoAdapter{delay: delay}
}

func (a *echoAdapter) Name() string { return "echo" }

func (a *echoAdapter) Start(modelPath string) (InferSession, error) {
	return &echoSession{delay: a.delay}, nil
}

type echoSession struct {
	delay time.Duration
}

func (s *echoSession) Generate(ctx context.Context, req InferRequest, onToken func(string) error) (FinalResult, error) {
	reply := echoReply(req.Messages)
	if len(req.Params.ResponseSchema) > 0 {
		ex, err := schemaExample(req.Params.ResponseSchema)
		if err != nil {
			return FinalResult{}, err
		}
		reply = ex
	}
	toks := splitTokens(reply)
	finish := "stop"
	if req.Params.MaxTokens > 0 && len(toks) > req.Params.MaxTokens {
		toks = toks[:req.Params.MaxTokens]
		finish = "length"
	}
	var b strings.Builder
	for i, tok := range toks {
		if i > 0 && s.delay > 0 {
			select {
			case <-time.After(s.delay):
			case <-ctx.Done():
				return FinalResult{}, ctx.Err()
			}
		}
		if err := ctx.Err(); err != nil {
			return FinalResult{}, err
		}
		if err := onToken(tok); err != nil {
			return FinalResult{}, err
		}
		b.WriteString(tok)
	}
	return FinalResult{
		Content:      b.String(),
		FinishReason: finish,
		Usage:        Usage{PromptTokens: len(splitTokens(req.Prompt)), CompletionTokens: len(toks), TotalTokens: len(splitTokens(req.Prompt)) + len(toks)},
	}, nil
}

func (s *echoSession) Close() error { return nil }

// echoReply answers the most recent user message.
func echoReply(msgs []types.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != types.RoleUser {
			continue
		}
		text := strings.TrimSpace(msgs[i].Text())
		images, audio := 0, 0
		for _, p := range msgs[i].Parts {
			switch p.Type {
			case types.ContentImage:
				images++
			case types.ContentAudio:
				audio++
			case types.ContentText:
			}
		}
		var media []string
		if images > 0 {
			media = append(media, plural(images, "image"))
		}
		if audio > 0 {
			media = append(media, plural(audio, "audio clip"))
		}
		switch {
		case text != "" && len(media) > 0:
			return fmt.Sprintf("You said: %s (with %s)", text, strings.Join(media, " and "))
		case text != "":
			return "You said: " + text
		case len(media) > 0:
			return "I received " + strings.Join(media, " and ") + "."
		}
		break
	}
	return "Hello! How can I help?"
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// splitTokens cuts s after each space so the pieces concatenate back to s.
func splitTokens(s string) []string {
	if s == "" {
		return nil
	}
	return strings.SplitAfter(s, " ")
}
