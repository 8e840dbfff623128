// Package envelope decodes the structured payload an assistant turn
// carries on the chat contract. Decoding is total: a payload that does not
// parse is surfaced verbatim as the user-visible response, so a malformed
// intermediate turn can never abort a poll cycle.
package envelope

import (
	"encoding/json"
	"strings"

	"chainchat/go-backend/pkg/models"
)

type wirePayload struct {
	Action      string          `json:"action"`
	Params      string          `json:"params"`
	Response    string          `json:"response"`
	Suggestions json.RawMessage `json:"suggestions"`
}

// Decode parses one assistant turn's raw content into a ResponseEnvelope.
// It never fails; see the package comment for the fallback contract.
func Decode(raw string) models.ResponseEnvelope {
	var wire wirePayload
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return models.ResponseEnvelope{Response: raw}
	}
	return models.ResponseEnvelope{
		Action:      wire.Action,
		Params:      wire.Params,
		Response:    wire.Response,
		Suggestions: normalizeSuggestions(wire.Suggestions),
	}
}

// normalizeSuggestions accepts either a JSON array of strings or one
// comma-separated string; any other shape yields an empty list.
func normalizeSuggestions(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return trimNonEmpty(list)
	}
	var csv string
	if err := json.Unmarshal(raw, &csv); err == nil {
		return trimNonEmpty(strings.Split(csv, ","))
	}
	return nil
}

func trimNonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
