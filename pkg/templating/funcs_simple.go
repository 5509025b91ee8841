package templating

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Arguments reach helpers from three engines with different number types:
// JSON contexts decode to float64 while template literals arrive as int.
// The helpers therefore take any and coerce.

// add returns a + b.
func add(a, b any) int {
	return toInt(a) + toInt(b)
}

// sub returns a - b.
func sub(a, b any) int {
	return toInt(a) - toInt(b)
}

// div returns a / b (integer division). Returns 0 if b is 0.
func div(a, b any) int {
	d := toInt(b)
	if d == 0 {
		return 0
	}
	return toInt(a) / d
}

// mult returns a * b.
func mult(a, b any) int {
	return toInt(a) * toInt(b)
}

// maxOf returns the maximum of a and b.
func maxOf(a, b any) int {
	return max(toInt(a), toInt(b))
}

// minOf returns the minimum of a and b.
func minOf(a, b any) int {
	return min(toInt(a), toInt(b))
}

// mod returns a % b. Returns 0 if b is 0.
func mod(a, b any) int {
	d := toInt(b)
	if d == 0 {
		return 0
	}
	return toInt(a) % d
}

// inc returns i + 1.
func inc(i any) int {
	return toInt(i) + 1
}

// dec returns i - 1.
func dec(i any) int {
	return toInt(i) - 1
}

// and returns true only if both arguments are truthy.
func and(a, b any) bool {
	return truthy(a) && truthy(b)
}

// or returns true if either argument is truthy.
func or(a, b any) bool {
	return truthy(a) || truthy(b)
}

// not returns the boolean opposite of its argument.
func not(arg any) bool {
	return !truthy(arg)
}

// isSet returns true if a value is not its zero value.
func isSet(val any) bool {
	v := reflect.ValueOf(val)
	if !v.IsValid() {
		return false
	}
	return !v.IsZero()
}

// toInt converts numbers, numeric strings and booleans to int. Anything
// else is 0. Fractions are truncated toward zero.
func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int8:
		return int(n)
	case int16:
		return int(n)
	case int32:
		return int(n)
	case int64:
		return int(n)
	case uint:
		return int(n)
	case uint8:
		return int(n)
	case uint16:
		return int(n)
	case uint32:
		return int(n)
	case uint64:
		return int(n)
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
		f, _ := n.Float64()
		return floatToInt(f)
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.Atoi(s); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return floatToInt(f)
		}
		return 0
	case bool:
		if n {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func floatToInt(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(f)
}

// truthy follows the loose truthiness the engines share: nil, false, zero
// numbers, empty strings and empty collections are false.
func truthy(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case string:
		return b != ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	default:
		return true
	}
}
