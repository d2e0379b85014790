package executor

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// BigintSuffix marks text-encoded 64-bit integers in query results.
const BigintSuffix = ":bigint"

// DecodeBigint parses a ":bigint" tagged string. It returns false for
// anything that is not a tagged integer.
func DecodeBigint(s string) (int64, bool) {
	prefix, ok := strings.CutSuffix(s, BigintSuffix)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// DecodeValue walks a decoded value and restores tagged bigints inside
// strings, arrays and objects.
func DecodeValue(v any) any {
	switch v := v.(type) {
	case string:
		if n, ok := DecodeBigint(v); ok {
			return n
		}
		return v
	case []any:
		for i := range v {
			v[i] = DecodeValue(v[i])
		}
		return v
	case map[string]any:
		for k, item := range v {
			v[k] = DecodeValue(item)
		}
		return v
	}
	return v
}

// DecodeRow applies DecodeValue to every column of row.
func DecodeRow(row map[string]any) Row {
	out := make(Row, len(row))
	for k, v := range row {
		out[k] = DecodeValue(v)
	}
	return out
}

// unmarshalJSON decodes JSON keeping numbers as json.Number, so integers
// beyond 2^53 are not rounded through float64.
func unmarshalJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
