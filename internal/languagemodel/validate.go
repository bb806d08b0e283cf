package languagemodel

import (
	"math"

	"lmhost/pkg/types"
)

// inputRules says where system messages may appear in an input.
type inputRules struct {
	// allowLeadingSystem permits a system message at index 0 only.
	allowLeadingSystem bool
	// allowPrefix permits a trailing assistant prefix message.
	allowPrefix bool
}

// validateInput checks roles, prefix placement and part types against the
// accepted content types. Capability failures are reported before any
// structural problem found later in the input, so callers never charge
// tokens for rejected media.
func validateInput(op string, msgs []types.Message, accepted []types.ContentType, rules inputRules) error {
	for _, m := range msgs {
		for _, p := range m.Parts {
			if !p.Type.Valid() {
				return newError(KindInvalidArgument, op, "unknown content type %q", p.Type)
			}
			if p.Type != types.ContentText && !acceptsType(accepted, p.Type) {
				return newError(KindCapability, op, "%s input was not declared in expected inputs", p.Type)
			}
		}
	}
	for i, m := range msgs {
		if !m.Role.Valid() {
			return newError(KindInvalidArgument, op, "message %d: unknown role %q", i, m.Role)
		}
		if m.Role == types.RoleSystem && (i != 0 || !rules.allowLeadingSystem) {
			return newError(KindInvalidArgument, op, "message %d: system messages are only allowed as the first initial prompt", i)
		}
		if m.Role == types.RoleSystem || m.Role == types.RoleAssistant {
			for _, p := range m.Parts {
				if p.Type != types.ContentText {
					return newError(KindInvalidArgument, op, "message %d: %s messages may only contain text", i, m.Role)
				}
			}
		}
		if m.Prefix {
			if !rules.allowPrefix {
				return newError(KindInvalidArgument, op, "message %d: prefix is only allowed in prompts", i)
			}
			if i != len(msgs)-1 {
				return newError(KindInvalidArgument, op, "message %d: prefix is only allowed on the last message", i)
			}
			if m.Role != types.RoleAssistant {
				return newError(KindInvalidArgument, op, "message %d: prefix requires the assistant role", i)
			}
		}
	}
	return nil
}

func acceptsType(accepted []types.ContentType, ct types.ContentType) bool {
	if ct == types.ContentText {
		return true
	}
	for _, a := range accepted {
		if a == ct {
			return true
		}
	}
	return false
}

// checkSampling validates optional temperature/topK against bounds and fills
// defaults. Omitted values take the configured defaults.
func checkSampling(op string, p types.SamplingParams, temperature *float64, topK *int) (float64, int, error) {
	t, k := p.DefaultTemperature, p.DefaultTopK
	if temperature != nil {
		t = *temperature
		if math.IsNaN(t) || t < 0 || t > p.MaxTemperature {
			return 0, 0, newError(KindInvalidArgument, op, "temperature %v outside [0, %v]", t, p.MaxTemperature)
		}
	}
	if topK != nil {
		k = *topK
		if k < 0 || k > p.MaxTopK {
			return 0, 0, newError(KindInvalidArgument, op, "topK %d outside [0, %d]", k, p.MaxTopK)
		}
	}
	return t, k, nil
}
