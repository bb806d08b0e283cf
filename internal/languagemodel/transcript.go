package languagemodel

import (
	"fmt"
	"strings"

	"lmhost/pkg/types"
)

// renderTranscript flattens a conversation into a plain-text prompt. The
// result ends with an open assistant turn, or with the assistant prefix when
// the last message is one.
func renderTranscript(msgs []types.Message, instruction string) string {
	var b strings.Builder
	prefix := ""
	if n := len(msgs); n > 0 && msgs[n-1].Prefix {
		prefix = msgs[n-1].Text()
		msgs = msgs[:n-1]
	}
	for _, m := range msgs {
		writeTurn(&b, m)
	}
	if instruction != "" {
		writeTurn(&b, types.SystemText(instruction))
	}
	b.WriteString("### Assistant:\n")
	b.WriteString(prefix)
	return b.String()
}

func writeTurn(b *strings.Builder, m types.Message) {
	b.WriteString("### ")
	b.WriteString(roleTitle(m.Role))
	b.WriteString(":\n")
	for _, p := range m.Parts {
		switch p.Type {
		case types.ContentText:
			b.WriteString(p.Text)
		case types.ContentImage, types.ContentAudio:
			fmt.Fprintf(b, "[%s %s, %d bytes]", p.Type, p.MediaType, len(p.Data))
		}
	}
	b.WriteString("\n\n")
}

func roleTitle(r types.Role) string {
	switch r {
	case types.RoleSystem:
		return "System"
	case types.RoleAssistant:
		return "Assistant"
	default:
		return "User"
	}
}
