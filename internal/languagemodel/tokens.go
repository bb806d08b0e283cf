package languagemodel

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"

	"lmhost/pkg/types"
)

// Fixed costs added on top of text tokens.
const (
	messageOverheadTokens = 4
	imageTokens           = 256
	audioMinTokens        = 32
	audioBytesPerToken    = 256
)

// TokenCounter counts tokens of plain text.
type TokenCounter interface {
	CountText(s string) (int, error)
}

// TiktokenCounter counts with a tiktoken codec (cl100k_base by default).
type TiktokenCounter struct {
	codec tokenizer.Codec
}

// NewTiktokenCounter loads the cl100k_base encoding.
func NewTiktokenCounter() (*TiktokenCounter, error) {
	enc, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return &TiktokenCounter{codec: enc}, nil
}

func (c *TiktokenCounter) CountText(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	ids, _, err := c.codec.Encode(s)
	if err != nil {
		return 0, fmt.Errorf("encode: %w", err)
	}
	return len(ids), nil
}

// countMessages returns the input cost of msgs: text tokens plus a per-message
// overhead and fixed media costs.
func countMessages(c TokenCounter, msgs []types.Message) (int, error) {
	total := 0
	for _, m := range msgs {
		total += messageOverheadTokens
		for _, p := range m.Parts {
			switch p.Type {
			case types.ContentText:
				n, err := c.CountText(p.Text)
				if err != nil {
					return 0, err
				}
				total += n
			case types.ContentImage:
				total += imageTokens
			case types.ContentAudio:
				total += max(audioMinTokens, len(p.Data)/audioBytesPerToken)
			}
		}
	}
	return total, nil
}
