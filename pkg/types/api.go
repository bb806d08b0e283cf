package types

import (
	"bytes"
	"encoding/json"
)

// Input is a prompt input: a list of messages. On the wire it is either a
// plain string (one user message) or an array of messages.
type Input []Message

func (in *Input) UnmarshalJSON(b []byte) error {
	raw := bytes.TrimSpace(b)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		*in = Input{UserText(s)}
		return nil
	}
	var msgs []Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return err
	}
	*in = msgs
	return nil
}

// CreateSessionRequest is the body of POST /sessions.
type CreateSessionRequest struct {
	// Optional model identifier. If empty, the server default is used.
	// example: gemma-nano
	Model string `json:"model,omitempty" example:"gemma-nano"`
	// Sampling temperature, within [0, max_temperature].
	// example: 0.8
	Temperature *float64 `json:"temperature,omitempty" example:"0.8"`
	// Top-K sampling, within [0, max_top_k].
	// example: 5
	TopK *int `json:"top_k,omitempty" example:"5"`
	// Seed history replayed before any prompt.
	InitialPrompts []Message `json:"initial_prompts,omitempty"`
	// Content types the session must accept besides text.
	// example: ["image"]
	ExpectedInputs []ContentType `json:"expected_inputs,omitempty"`
}

// SessionResponse describes a live session.
type SessionResponse struct {
	// example: 0b7c6a52-4d59-4a57-9ad1-0f6e2b1c9a1e
	ID string `json:"id" example:"0b7c6a52-4d59-4a57-9ad1-0f6e2b1c9a1e"`
	// example: gemma-nano
	Model string `json:"model" example:"gemma-nano"`
	// example: 0.8
	Temperature float64 `json:"temperature" example:"0.8"`
	// example: 5
	TopK int `json:"top_k" example:"5"`
	// Tokens consumed so far.
	// example: 42
	InputUsage int `json:"input_usage" example:"42"`
	// Maximum input tokens for this session.
	// example: 6144
	InputQuota     int           `json:"input_quota" example:"6144"`
	ExpectedInputs []ContentType `json:"expected_inputs,omitempty"`
	// example: 1700000000
	CreatedUnix int64 `json:"created_unix" example:"1700000000"`
}

// PromptRequest is the body of POST /sessions/{id}/prompt and /measure.
type PromptRequest struct {
	// A string or an array of messages.
	Input Input `json:"input" swaggertype:"object"`
	// If true, stream NDJSON token lines followed by a final done line.
	// example: true
	Stream bool `json:"stream,omitempty" example:"true"`
	// Optional JSON Schema the completion must satisfy.
	ResponseConstraint json.RawMessage `json:"response_constraint,omitempty" swaggertype:"object"`
	// Do not charge the constraint's tokens as input.
	OmitResponseConstraintInput bool `json:"omit_response_constraint_input,omitempty"`
}

// PromptResponse is returned by a non-streaming prompt.
type PromptResponse struct {
	// example: Hello! How can I help?
	Completion string `json:"completion" example:"Hello! How can I help?"`
	// example: 42
	InputUsage int `json:"input_usage" example:"42"`
	// example: 6144
	InputQuota int `json:"input_quota" example:"6144"`
}

// AppendRequest is the body of POST /sessions/{id}/append.
type AppendRequest struct {
	Input Input `json:"input" swaggertype:"object"`
}

// MeasureResponse reports a dry-run token cost.
type MeasureResponse struct {
	// example: 17
	Tokens int `json:"tokens" example:"17"`
}

// AvailabilityResponse is returned by GET /availability.
type AvailabilityResponse struct {
	// example: gemma-nano
	Model string `json:"model" example:"gemma-nano"`
	// example: available
	Availability Availability `json:"availability" example:"available"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	Models []ModelStatus `json:"models"`
}

// ProgressEvent is one NDJSON line of a monitored session creation.
type ProgressEvent struct {
	// example: progress
	Type string `json:"type" example:"progress"`
	// Loaded fraction in [0, 1].
	// example: 0.5
	Loaded float64 `json:"loaded" example:"0.5"`
	// Set on the final line when type is "session".
	Session *SessionResponse `json:"session,omitempty"`
	// Set when type is "error".
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
	// Error kind (invalid_argument, capability, aborted, disposed, unavailable, quota_exceeded).
	// example: invalid_argument
	Kind string `json:"kind,omitempty" example:"invalid_argument"`
}

// ModelStatus summarizes one registry entry for /models and /status.
type ModelStatus struct {
	Model
	// example: available
	Availability Availability `json:"availability" example:"available"`
	// True when the inference runtime currently holds the model.
	// example: true
	Loaded bool `json:"loaded" example:"true"`
	// Last time this model served a request (unix seconds).
	// example: 1700000000
	LastUsed int64 `json:"last_used_unix,omitempty" example:"1700000000"`
	// Current queue length for generation requests.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// Number of in-flight generations.
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// Maximum queued requests allowed before backpressure triggers.
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
	// Download progress as a fraction, when downloading.
	// example: 0.25
	DownloadProgress float64 `json:"download_progress,omitempty" example:"0.25"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Models []ModelStatus `json:"models"`
	// Number of live sessions.
	// example: 3
	Sessions int `json:"sessions" example:"3"`
	// Inference backend name.
	// example: echo
	Backend string `json:"backend" example:"echo"`
	// Last error observed by the manager (if any).
	LastError string `json:"last_error,omitempty"`
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// Total completed downloads.
	// example: 1
	DownloadsTotal uint64 `json:"downloads_total" example:"1"`
	// Total model loads by the inference runtime.
	// example: 12
	LoadsTotal uint64 `json:"loads_total" example:"12"`
}

// StreamLine is one NDJSON line of a streaming prompt: token lines, then a
// final line with Done set, or an Error line if generation failed.
type StreamLine struct {
	// example: Hel
	Token string `json:"token,omitempty" example:"Hel"`
	// example: true
	Done bool `json:"done,omitempty" example:"true"`
	// Full completion, on the final line.
	Completion string         `json:"completion,omitempty"`
	InputUsage int            `json:"input_usage,omitempty"`
	InputQuota int            `json:"input_quota,omitempty"`
	Error      *ErrorResponse `json:"error,omitempty"`
}

// SessionsResponse lists live sessions.
type SessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}
