package signals

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/verso-app/verso/internal/types"
)

// Dimension family prefixes. The family decides how the opaque value
// column is encoded: trait families store numeric scores, conversation
// intents store a JSON payload, everything else stores plain text.
const (
	FamilyBigFive       = "big_five."
	FamilyMoral         = "moral_foundations."
	FamilyMaslow        = "maslow."
	FamilyIntent        = "intent."
	FamilyLifeSituation = "life_situation."
)

// kindFor returns the value kind a dimension's family uses.
func kindFor(dimension string) types.ValueKind {
	switch {
	case strings.HasPrefix(dimension, FamilyBigFive),
		strings.HasPrefix(dimension, FamilyMoral),
		strings.HasPrefix(dimension, FamilyMaslow):
		return types.ValueScore
	case strings.HasPrefix(dimension, FamilyIntent):
		return types.ValuePayload
	default:
		return types.ValueText
	}
}

// EncodeValue serializes a signal value for the store's value column.
func EncodeValue(dimension string, v types.SignalValue) (string, error) {
	switch kindFor(dimension) {
	case types.ValueScore:
		return strconv.FormatFloat(v.Score, 'f', -1, 64), nil
	case types.ValuePayload:
		data, err := json.Marshal(v.Payload)
		if err != nil {
			return "", fmt.Errorf("encode %s payload: %w", dimension, err)
		}
		return string(data), nil
	default:
		return v.Text, nil
	}
}

// DecodeValue parses a stored value column back into its tagged form.
// A score column that fails to parse is surfaced as text rather than
// dropped; a malformed intent payload propagates as an error.
func DecodeValue(dimension, raw string) (types.SignalValue, error) {
	switch kindFor(dimension) {
	case types.ValueScore:
		score, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return types.SignalValue{Kind: types.ValueText, Text: raw}, nil
		}
		return types.SignalValue{Kind: types.ValueScore, Score: score}, nil
	case types.ValuePayload:
		var payload map[string]any
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return types.SignalValue{}, fmt.Errorf("decode %s payload: %w", dimension, err)
		}
		return types.SignalValue{Kind: types.ValuePayload, Payload: payload}, nil
	default:
		return types.SignalValue{Kind: types.ValueText, Text: raw}, nil
	}
}

// Text builds a plain-text signal value.
func Text(s string) types.SignalValue {
	return types.SignalValue{Kind: types.ValueText, Text: s}
}

// Score builds a numeric trait-score value.
func Score(f float64) types.SignalValue {
	return types.SignalValue{Kind: types.ValueScore, Score: f}
}

// Payload builds a structured intent payload value.
func Payload(m map[string]any) types.SignalValue {
	return types.SignalValue{Kind: types.ValuePayload, Payload: m}
}
