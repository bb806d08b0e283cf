package types

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Model represents a model artifact known to the host, either present on disk
// or fetchable from a declared source.
type Model struct {
	// Stable identifier for the model.
	// example: gemma-nano
	ID string `json:"id" yaml:"id" toml:"id" example:"gemma-nano"`
	// Human-friendly name.
	// example: Gemma Nano (Q4)
	Name string `json:"name" yaml:"name" toml:"name" example:"Gemma Nano (Q4)"`
	// Absolute path to the model file on disk.
	// example: /home/user/models/gemma-nano.gguf
	Path string `json:"path" yaml:"path" toml:"path" example:"/home/user/models/gemma-nano.gguf"`
	// Optional source the artifact can be fetched from (file path or http(s) URL).
	// example: https://models.example.com/gemma-nano.gguf
	Source string `json:"source,omitempty" yaml:"source,omitempty" toml:"source,omitempty" example:"https://models.example.com/gemma-nano.gguf"`
	// Content types the model accepts. Text is always accepted.
	// example: ["text","image"]
	Inputs []ContentType `json:"inputs,omitempty" yaml:"inputs,omitempty" toml:"inputs,omitempty"`
	// Quantization level or variant string.
	// example: Q4_K_M
	Quant string `json:"quant,omitempty" yaml:"quant,omitempty" toml:"quant,omitempty" example:"Q4_K_M"`
	// Optional family (e.g., llama, gemma, phi).
	// example: gemma
	Family string `json:"family,omitempty" yaml:"family,omitempty" toml:"family,omitempty" example:"gemma"`
}

// Accepts reports whether the model takes content of type ct.
func (m Model) Accepts(ct ContentType) bool {
	if ct == ContentText {
		return true
	}
	for _, in := range m.Inputs {
		if in == ct {
			return true
		}
	}
	return false
}

// Availability is the lifecycle stage of a model artifact.
type Availability string

const (
	AvailabilityUnavailable  Availability = "unavailable"
	AvailabilityDownloadable Availability = "downloadable"
	AvailabilityDownloading  Availability = "downloading"
	AvailabilityAvailable    Availability = "available"
)

// rank orders availability states along their forward progression.
func (a Availability) rank() int {
	switch a {
	case AvailabilityDownloadable:
		return 1
	case AvailabilityDownloading:
		return 2
	case AvailabilityAvailable:
		return 3
	default:
		return 0
	}
}

// Before reports whether a precedes b in the unavailable → available progression.
func (a Availability) Before(b Availability) bool { return a.rank() < b.rank() }

// SamplingParams holds the global bounds and defaults for sampling controls.
type SamplingParams struct {
	// example: 3
	DefaultTopK int `json:"default_top_k" yaml:"default_top_k" toml:"default_top_k" example:"3"`
	// example: 128
	MaxTopK int `json:"max_top_k" yaml:"max_top_k" toml:"max_top_k" example:"128"`
	// example: 1
	DefaultTemperature float64 `json:"default_temperature" yaml:"default_temperature" toml:"default_temperature" example:"1"`
	// example: 2
	MaxTemperature float64 `json:"max_temperature" yaml:"max_temperature" toml:"max_temperature" example:"2"`
}

// Validate checks 0 <= default <= max on both axes.
func (p SamplingParams) Validate() error {
	if p.DefaultTopK < 0 || p.DefaultTopK > p.MaxTopK {
		return fmt.Errorf("default_top_k %d outside [0, %d]", p.DefaultTopK, p.MaxTopK)
	}
	if p.DefaultTemperature < 0 || p.DefaultTemperature > p.MaxTemperature {
		return fmt.Errorf("default_temperature %g outside [0, %g]", p.DefaultTemperature, p.MaxTemperature)
	}
	return nil
}

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// ContentType tags a content part.
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentImage ContentType = "image"
	ContentAudio ContentType = "audio"
)

// Valid reports whether ct is a known content type.
func (ct ContentType) Valid() bool {
	switch ct {
	case ContentText, ContentImage, ContentAudio:
		return true
	}
	return false
}

// ParseContentTypes parses a list of content type names, rejecting unknown ones.
func ParseContentTypes(names []string) ([]ContentType, error) {
	out := make([]ContentType, 0, len(names))
	for _, n := range names {
		ct := ContentType(strings.ToLower(strings.TrimSpace(n)))
		if !ct.Valid() {
			return nil, fmt.Errorf("unknown content type %q", n)
		}
		out = append(out, ct)
	}
	return out, nil
}

// ContentPart is one typed unit of message content. Text parts carry Text;
// image and audio parts carry Data and an optional MediaType.
type ContentPart struct {
	Type      ContentType
	Text      string
	Data      []byte
	MediaType string
}

// TextPart builds a text content part.
func TextPart(s string) ContentPart { return ContentPart{Type: ContentText, Text: s} }

// ImagePart builds an image content part.
func ImagePart(data []byte, mediaType string) ContentPart {
	return ContentPart{Type: ContentImage, Data: data, MediaType: mediaType}
}

// AudioPart builds an audio content part.
func AudioPart(data []byte, mediaType string) ContentPart {
	return ContentPart{Type: ContentAudio, Data: data, MediaType: mediaType}
}

// contentPartJSON is the wire shape: binary values are base64 encoded.
type contentPartJSON struct {
	Type      ContentType `json:"type"`
	Value     string      `json:"value"`
	MediaType string      `json:"media_type,omitempty"`
}

func (p ContentPart) MarshalJSON() ([]byte, error) {
	w := contentPartJSON{Type: p.Type, MediaType: p.MediaType}
	switch p.Type {
	case ContentText:
		w.Value = p.Text
	case ContentImage, ContentAudio:
		w.Value = base64.StdEncoding.EncodeToString(p.Data)
	default:
		return nil, fmt.Errorf("unknown content type %q", p.Type)
	}
	return json.Marshal(w)
}

func (p *ContentPart) UnmarshalJSON(b []byte) error {
	var w contentPartJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	switch w.Type {
	case ContentText:
		*p = TextPart(w.Value)
	case ContentImage, ContentAudio:
		data, err := base64.StdEncoding.DecodeString(w.Value)
		if err != nil {
			return fmt.Errorf("%s part: invalid base64 value: %w", w.Type, err)
		}
		*p = ContentPart{Type: w.Type, Data: data, MediaType: w.MediaType}
	default:
		return fmt.Errorf("unknown content type %q", w.Type)
	}
	return nil
}

// Message is one turn of a conversation.
type Message struct {
	Role  Role
	Parts []ContentPart
	// Prefix marks a trailing assistant message whose text the model continues.
	Prefix bool
}

// UserText builds a user message with a single text part.
func UserText(s string) Message { return Message{Role: RoleUser, Parts: []ContentPart{TextPart(s)}} }

// SystemText builds a system message with a single text part.
func SystemText(s string) Message {
	return Message{Role: RoleSystem, Parts: []ContentPart{TextPart(s)}}
}

// AssistantText builds an assistant message with a single text part.
func AssistantText(s string) Message {
	return Message{Role: RoleAssistant, Parts: []ContentPart{TextPart(s)}}
}

// Text concatenates the text parts of m.
func (m Message) Text() string {
	if len(m.Parts) == 1 && m.Parts[0].Type == ContentText {
		return m.Parts[0].Text
	}
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == ContentText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// Clone returns a deep copy of m.
func (m Message) Clone() Message {
	out := Message{Role: m.Role, Prefix: m.Prefix, Parts: make([]ContentPart, len(m.Parts))}
	for i, p := range m.Parts {
		if p.Data != nil {
			p.Data = append([]byte(nil), p.Data...)
		}
		out.Parts[i] = p
	}
	return out
}

// CloneMessages deep-copies a message list.
func CloneMessages(in []Message) []Message {
	if in == nil {
		return nil
	}
	out := make([]Message, len(in))
	for i, m := range in {
		out[i] = m.Clone()
	}
	return out
}

// messageJSON is the wire shape: content is either a string or a list of parts.
type messageJSON struct {
	Role    Role            `json:"role"`
	Content json.RawMessage `json:"content"`
	Prefix  bool            `json:"prefix,omitempty"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	var content any = m.Parts
	if len(m.Parts) == 1 && m.Parts[0].Type == ContentText {
		content = m.Parts[0].Text
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(messageJSON{Role: m.Role, Content: raw, Prefix: m.Prefix})
}

func (m *Message) UnmarshalJSON(b []byte) error {
	var w messageJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if w.Role == "" {
		w.Role = RoleUser
	}
	out := Message{Role: w.Role, Prefix: w.Prefix}
	raw := bytes.TrimSpace(w.Content)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		out.Parts = []ContentPart{TextPart(s)}
	default:
		if err := json.Unmarshal(raw, &out.Parts); err != nil {
			return fmt.Errorf("message content: %w", err)
		}
	}
	*m = out
	return nil
}
