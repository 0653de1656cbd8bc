package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Envelope is the decoded `[method, args, kwargs]` call
type Envelope struct {
	Method string

	Args []json.RawMessage

	Kwargs map[string]json.RawMessage
}

// ParseEnvelope decodes the value of the `json` form field. present is false
// when the field was not sent at all.
func ParseEnvelope(raw string, present bool) (*Envelope, error) {

	if !present {
		return nil, &EnvelopeError{Message: "missing json field in request body"}
	}

	var parts []json.RawMessage

	if err := json.Unmarshal([]byte(raw), &parts); err != nil {
		return nil, &EnvelopeError{Message: fmt.Sprintf("json field is not a JSON array: %v", err)}
	}

	if len(parts) == 0 || len(parts) > 3 {
		return nil, &EnvelopeError{Message: fmt.Sprintf("expected [method, args, kwargs], got %d elements", len(parts))}
	}

	env := &Envelope{Kwargs: map[string]json.RawMessage{}}

	if err := json.Unmarshal(parts[0], &env.Method); err != nil || env.Method == "" {
		return nil, &EnvelopeError{Message: "method name must be a non-empty string"}
	}

	if len(parts) > 1 && !isNull(parts[1]) {

		if err := json.Unmarshal(parts[1], &env.Args); err != nil {
			return nil, &EnvelopeError{Message: "positional arguments must be a JSON array"}
		}
	}

	if len(parts) > 2 && !isNull(parts[2]) {

		if err := json.Unmarshal(parts[2], &env.Kwargs); err != nil {
			return nil, &EnvelopeError{Message: "keyword arguments must be a JSON object"}
		}
	}

	return env, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
