package canonical

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Record is a decoded object keyed by field name.
type Record = map[string]any

// Zero is the canonical form of every hex or numeric zero.
const Zero = "0x0"

var (
	ErrUnsupportedValue = errors.New("canonical: unsupported value")

	hexPattern = regexp.MustCompile(`^0[xX][0-9a-fA-F]*$`)
)

// NormalizeHex strips leading zeros from a 0x-prefixed hex string and
// lowercases it. The second return is false when s is not hex, in which
// case s is returned untouched.
func NormalizeHex(s string) (string, bool) {
	if !hexPattern.MatchString(s) {
		return s, false
	}
	digits := strings.TrimLeft(strings.ToLower(s[2:]), "0")
	if digits == "" {
		return Zero, true
	}
	return "0x" + digits, true
}

// Flatten returns the signature pre-image of v: sorted keys concatenated
// with their normalized values. Numbers are rendered as hex so that 0 and
// 0x0 share one form.
func Flatten(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeFlat(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeFlat(buf *bytes.Buffer, v any) error {
	switch x := v.(type) {
	case nil:
		return nil
	case map[string]any:
		for _, k := range sortedKeys(x) {
			buf.WriteString(k)
			if err := writeFlat(buf, x[k]); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
		}
		return nil
	case []any:
		for i, e := range x {
			if err := writeFlat(buf, e); err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
		}
		return nil
	case string:
		s, _ := NormalizeHex(x)
		buf.WriteString(s)
		return nil
	case []byte:
		s, _ := NormalizeHex("0x" + fmt.Sprintf("%x", x))
		buf.WriteString(s)
		return nil
	case bool:
		buf.WriteString(strconv.FormatBool(x))
		return nil
	case *big.Int:
		buf.WriteString(bigHex(x))
		return nil
	case json.Number:
		if n, ok := new(big.Int).SetString(x.String(), 10); ok {
			buf.WriteString(bigHex(n))
			return nil
		}
		buf.WriteString(x.String())
		return nil
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<63 {
			buf.WriteString(bigHex(big.NewInt(int64(x))))
			return nil
		}
		buf.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
		return nil
	case float32:
		return writeFlat(buf, float64(x))
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		buf.WriteString(bigHex(big.NewInt(rv.Int())))
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		buf.WriteString(bigHex(new(big.Int).SetUint64(rv.Uint())))
		return nil
	case reflect.String:
		return writeFlat(buf, rv.String())
	}

	generic, err := toGeneric(v)
	if err != nil {
		return err
	}
	return writeFlat(buf, generic)
}

// SortedJSON encodes v as JSON with object keys sorted at every level.
// Structs are first reduced to their JSON object form, so field tags apply.
func SortedJSON(v any) ([]byte, error) {
	generic, err := toGeneric(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := writeJSON(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v any) error {
	switch x := v.(type) {
	case map[string]any:
		buf.WriteByte('{')
		for i, k := range sortedKeys(x) {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeScalar(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeJSON(buf, x[k]); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
		return nil
	case []any:
		buf.WriteByte('[')
		for i, e := range x {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, e); err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		return writeScalar(buf, x)
	}
}

func writeScalar(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
	}
	// Encode always terminates with a newline.
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'}))
	return nil
}

// toGeneric reduces v to maps, slices and scalars by a JSON round trip.
// Numbers survive as json.Number so integers keep full precision.
func toGeneric(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
	}
	return out, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func bigHex(n *big.Int) string {
	if n.Sign() < 0 {
		return "-0x" + new(big.Int).Neg(n).Text(16)
	}
	return "0x" + n.Text(16)
}
