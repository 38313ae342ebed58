package database

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kozaktomas/photo-curator/internal/errs"
)

// ParseEmbedding decodes a stored scene embedding.
//
// Accepted encodings: a JSON number array ("[0.1, 0.2]"), a JSON string
// holding either of the other encodings, and plain text with numbers
// separated by commas or whitespace, optionally wrapped in brackets
// ("[0.1 0.2]", "0.1,0.2"). Empty vectors, non-finite values and values outside
// the float32 range are rejected.
func ParseEmbedding(raw string) ([]float32, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, malformed("empty value")
	}

	if strings.HasPrefix(s, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(s), &inner); err != nil {
			return nil, malformed("invalid JSON string: %v", err)
		}
		if strings.HasPrefix(strings.TrimSpace(inner), `"`) {
			return nil, malformed("nested JSON string")
		}
		return ParseEmbedding(inner)
	}

	if strings.HasPrefix(s, "[") {
		var values []float64
		if err := json.Unmarshal([]byte(s), &values); err == nil {
			return toFloat32(values)
		}
		s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	}

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	values := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, malformed("invalid number %q", f)
		}
		values = append(values, v)
	}
	return toFloat32(values)
}

func toFloat32(values []float64) ([]float32, error) {
	if len(values) == 0 {
		return nil, malformed("no values")
	}
	out := make([]float32, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, malformed("non-finite value at position %d", i)
		}
		if math.Abs(v) > math.MaxFloat32 {
			return nil, malformed("value out of float32 range at position %d", i)
		}
		out[i] = float32(v)
	}
	return out, nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errs.ErrMalformedEmbedding, fmt.Sprintf(format, args...))
}

// FormatEmbedding encodes a vector as a JSON array, the canonical stored form.
func FormatEmbedding(v []float32) string {
	b, _ := json.Marshal(v)
	return string(b)
}
