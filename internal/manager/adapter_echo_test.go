package manager

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"lmhost/pkg/types"
)

func generateEcho(t *testing.T, req InferRequest) FinalResult {
	t.Helper()
	s, err := NewEchoAdapter(0).Start("")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	res, err := s.Generate(context.Background(), req, func(string) error { return nil })
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return res
}

func TestEcho_RepliesToLastUserTurn(t *testing.T) {
	res := generateEcho(t, InferRequest{Messages: []types.Message{
		types.SystemText("be nice"),
		types.UserText("first"),
		types.AssistantText("ok"),
		types.UserText("second question"),
	}})
	if res.Content != "You said: second question" {
		t.Fatalf("content=%q", res.Content)
	}
	if res.FinishReason != "stop" {
		t.Fatalf("finish=%q", res.FinishReason)
	}
}

func TestEcho_MediaAndFallback(t *testing.T) {
	img := types.Message{Role: types.RoleUser, Parts: []types.ContentPart{types.ImagePart([]byte{1}, "image/png"), types.ImagePart([]byte{2}, "image/png")}}
	if got := generateEcho(t, InferRequest{Messages: []types.Message{img}}).Content; got != "I received 2 images." {
		t.Fatalf("content=%q", got)
	}
	mixed := types.Message{Role: types.RoleUser, Parts: []types.ContentPart{types.TextPart("listen"), types.AudioPart([]byte{1}, "audio/wav")}}
	if got := generateEcho(t, InferRequest{Messages: []types.Message{mixed}}).Content; got != "You said: listen (with 1 audio clip)" {
		t.Fatalf("content=%q", got)
	}
	if got := generateEcho(t, InferRequest{}).Content; got != "Hello! How can I help?" {
		t.Fatalf("content=%q", got)
	}
}

func TestEcho_MaxTokensTruncates(t *testing.T) {
	res := generateEcho(t, InferRequest{
		Messages: []types.Message{types.UserText("one two three four")},
		Params:   InferParams{MaxTokens: 2},
	})
	if res.Content != "You said: " || res.FinishReason != "length" {
		t.Fatalf("content=%q finish=%q", res.Content, res.FinishReason)
	}
}

func TestEcho_ResponseSchema(t *testing.T) {
	schema := []byte(`{"type":"object","properties":{"rating":{"type":"integer","minimum":1},"tags":{"type":"array","items":{"type":"string"},"minItems":1},"mood":{"enum":["happy","sad"]}}}`)
	res := generateEcho(t, InferRequest{Messages: []types.Message{types.UserText("rate")}, Params: InferParams{ResponseSchema: schema}})
	var got map[string]any
	if err := json.Unmarshal([]byte(res.Content), &got); err != nil {
		t.Fatalf("reply is not JSON: %q", res.Content)
	}
	if got["rating"] != float64(1) || got["mood"] != "happy" {
		t.Fatalf("unexpected example %v", got)
	}
	if tags, _ := got["tags"].([]any); len(tags) != 1 {
		t.Fatalf("unexpected tags %v", got["tags"])
	}
}

func TestEcho_InvalidSchema(t *testing.T) {
	s, _ := NewEchoAdapter(0).Start("")
	_, err := s.Generate(context.Background(), InferRequest{Params: InferParams{ResponseSchema: []byte("{")}}, func(string) error { return nil })
	if err == nil {
		t.Fatalf("expected schema parse error")
	}
}

func TestEcho_DelayHonorsCancel(t *testing.T) {
	s, _ := NewEchoAdapter(50 * time.Millisecond).Start("")
	ctx, cancel := context.WithCancel(context.Background())
	var toks int
	_, err := s.Generate(ctx, InferRequest{Messages: []types.Message{types.UserText("a b c d e")}}, func(string) error {
		toks++
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) || toks != 1 {
		t.Fatalf("err=%v toks=%d", err, toks)
	}
}

func TestSchemaExample_Scalars(t *testing.T) {
	cases := map[string]string{
		`{"type":"string","minLength":3}`:                  `"aaa"`,
		`{"type":"string","format":"date"}`:                `"1970-01-01"`,
		`{"type":"number","exclusiveMinimum":2.5}`:         `3.5`,
		`{"type":["null","boolean"]}`:                      `false`,
		`{"const":42}`:                                     `42`,
		`{"anyOf":[{"type":"integer"},{"type":"string"}]}`: `0`,
		`{"type":"null"}`:                                  `null`,
	}
	for schema, want := range cases {
		got, err := schemaExample([]byte(schema))
		if err != nil {
			t.Fatalf("%s: %v", schema, err)
		}
		if got != want {
			t.Fatalf("%s: got %s want %s", schema, got, want)
		}
	}
}
