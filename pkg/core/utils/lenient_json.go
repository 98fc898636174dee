package utils

import (
	"encoding/json"
	"errors"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// ErrUnparseable is returned when no decoding strategy accepts the input.
var ErrUnparseable = errors.New("model output is not decodable JSON")

// Strategy names the decoder that accepted an LLM response.
type Strategy string

const (
	StrategyJSON   Strategy = "json"
	StrategyRepair Strategy = "repair"
	StrategyHjson  Strategy = "hjson"
)

// DecodeLenient decodes model output into v, trying strict JSON, then
// json-repair (quotes, trailing commas, unclosed brackets), then Hjson
// (comments, quoteless strings). A surrounding code fence is ignored.
func DecodeLenient(input string, v any) (Strategy, error) {
	input = StripCodeFence(input)

	if json.Unmarshal([]byte(input), v) == nil {
		return StrategyJSON, nil
	}

	if repaired, err := jsonrepair.RepairJSON(input); err == nil {
		if json.Unmarshal([]byte(repaired), v) == nil {
			return StrategyRepair, nil
		}
	}

	// Hjson decodes to generic values first so v keeps its json tags.
	var generic any
	if err := hjson.Unmarshal([]byte(input), &generic); err == nil {
		if normalized, err := json.Marshal(generic); err == nil && json.Unmarshal(normalized, v) == nil {
			return StrategyHjson, nil
		}
	}

	return "", ErrUnparseable
}

// StripCodeFence removes a surrounding ```json (or bare ```) fence.
func StripCodeFence(input string) string {
	s := strings.TrimSpace(input)
	if len(s) < 6 || !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") {
		return s
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	// info string ("json", "markdown") on the opening line
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], "{[") {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}
