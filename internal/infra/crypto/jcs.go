package crypto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// CanonicalizeJSON re-serializes a JSON document into its canonical
// form: object keys sorted, no insignificant whitespace, numbers in
// shortest round-trip notation. Equivalent documents always yield
// identical bytes, which is what makes signed payloads reproducible
// no matter how a client formatted them.
func CanonicalizeJSON(input []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(input))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("invalid JSON: trailing data")
	}
	return appendCanonical(nil, value)
}

// CanonicalizeAny canonicalizes an arbitrary Go value. Raw JSON is
// canonicalized as-is; everything else goes through encoding/json
// first, so struct tags decide the key names.
func CanonicalizeAny(v any) ([]byte, error) {
	switch raw := v.(type) {
	case json.RawMessage:
		return CanonicalizeJSON(raw)
	case []byte:
		return CanonicalizeJSON(raw)
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return CanonicalizeJSON(encoded)
}

func appendCanonical(dst []byte, value any) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return append(dst, "null"...), nil
	case bool:
		if v {
			return append(dst, "true"...), nil
		}
		return append(dst, "false"...), nil
	case string:
		return appendQuoted(dst, v), nil
	case json.Number:
		f, err := strconv.ParseFloat(v.String(), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid JSON number: %w", err)
		}
		return appendNumber(dst, f)
	case float64:
		return appendNumber(dst, v)
	case map[string]any:
		return appendObject(dst, v)
	case []any:
		return appendArray(dst, v)
	default:
		return nil, fmt.Errorf("unsupported JSON type %T", value)
	}
}

func appendObject(dst []byte, obj map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var err error
	dst = append(dst, '{')
	for i, k := range keys {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = appendQuoted(dst, k)
		dst = append(dst, ':')
		if dst, err = appendCanonical(dst, obj[k]); err != nil {
			return nil, err
		}
	}
	return append(dst, '}'), nil
}

func appendArray(dst []byte, arr []any) ([]byte, error) {
	var err error
	dst = append(dst, '[')
	for i, item := range arr {
		if i > 0 {
			dst = append(dst, ',')
		}
		if dst, err = appendCanonical(dst, item); err != nil {
			return nil, err
		}
	}
	return append(dst, ']'), nil
}

const hexDigits = "0123456789abcdef"

// appendQuoted emits the two mandatory escapes and the short forms for
// common control characters, \u00XX for the remaining ones, and
// verbatim UTF-8 for everything else.
func appendQuoted(dst []byte, s string) []byte {
	dst = append(dst, '"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			dst = append(dst, '\\', byte(r))
		case '\b':
			dst = append(dst, '\\', 'b')
		case '\f':
			dst = append(dst, '\\', 'f')
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		case '\t':
			dst = append(dst, '\\', 't')
		default:
			if r < 0x20 {
				dst = append(dst, '\\', 'u', '0', '0', hexDigits[r>>4], hexDigits[r&0xf])
			} else {
				dst = utf8.AppendRune(dst, r)
			}
		}
	}
	return append(dst, '"')
}

// appendNumber renders f the way ECMAScript number-to-string does:
// shortest digit string that round-trips, positional notation between
// 1e-6 and 1e21, scientific outside that range.
func appendNumber(dst []byte, f float64) ([]byte, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, errors.New("invalid JSON number")
	}
	if f == 0 {
		return append(dst, '0'), nil
	}
	if f < 0 {
		dst = append(dst, '-')
		f = -f
	}

	// strconv's 'e' format with precision -1 gives the shortest
	// mantissa; rearrange it and the exponent per the range rules.
	sci := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, expPart, _ := strings.Cut(sci, "e")
	exp, err := strconv.Atoi(expPart)
	if err != nil {
		return nil, fmt.Errorf("invalid float exponent: %w", err)
	}
	digits := strings.ReplaceAll(mantissa, ".", "")

	switch {
	case exp <= -7 || exp >= 21:
		dst = append(dst, digits[0])
		if len(digits) > 1 {
			dst = append(dst, '.')
			dst = append(dst, digits[1:]...)
		}
		dst = append(dst, 'e')
		dst = strconv.AppendInt(dst, int64(exp), 10)
	case exp+1 >= len(digits):
		dst = append(dst, digits...)
		for i := len(digits); i < exp+1; i++ {
			dst = append(dst, '0')
		}
	case exp < 0:
		dst = append(dst, '0', '.')
		for i := 0; i < -exp-1; i++ {
			dst = append(dst, '0')
		}
		dst = append(dst, digits...)
	default:
		dst = append(dst, digits[:exp+1]...)
		dst = append(dst, '.')
		dst = append(dst, digits[exp+1:]...)
	}
	return dst, nil
}
