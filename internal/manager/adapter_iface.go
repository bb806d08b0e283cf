package manager

import (
	"context"

	"lmhost/pkg/types"
)

// InferenceAdapter abstracts the model runtime used by the Manager.
// Concrete implementations (e.g., llama.cpp) should satisfy this interface.
type InferenceAdapter interface {
	// Name identifies the runtime in status output.
	Name() string
	// Start loads the model at modelPath. The returned session is reused for
	// every generation on that model until it is closed.
	Start(modelPath string) (InferSession, error)
}

// LlamaBuilt reports whether the binary links go-llama.cpp.
func LlamaBuilt() bool { return llamaBuilt }

// InferSession represents a loaded model.
type InferSession interface {
	// Generate streams tokens for req. The onToken callback is invoked for each
	// token; a non-nil return stops generation with that error. Implementations
	// must return when the context is canceled.
	Generate(ctx context.Context, req InferRequest, onToken func(string) error) (FinalResult, error)
	// Close releases any resources associated with the session.
	Close() error
}

// InferRequest is one generation. Prompt is the rendered transcript; Messages
// is the structured conversation it was rendered from.
type InferRequest struct {
	Prompt   string
	Messages []types.Message
	Params   InferParams
}

// InferParams captures generation parameters passed to the adapter.
type InferParams struct {
	Temperature   float32
	TopP          float32
	TopK          int
	MaxTokens     int
	Stop          []string
	Seed          int
	RepeatPenalty float32
	// ResponseSchema is a JSON Schema the output should follow, if any.
	ResponseSchema []byte
}

// FinalResult summarizes the generation after streaming.
type FinalResult struct {
	Content      string
	Usage        Usage
	FinishReason string
}

// Usage contains token accounting.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
