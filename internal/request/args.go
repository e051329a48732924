package request

import (
	"math"

	"github.com/godbus/dbus/v5"
)

// unwrap strips any number of variant layers.
func unwrap(v any) any {
	for {
		variant, ok := v.(dbus.Variant)
		if !ok {
			return v
		}
		v = variant.Value()
	}
}

func asString(v any) (string, bool) {
	switch s := unwrap(v).(type) {
	case string:
		return s, true
	case dbus.ObjectPath:
		return string(s), true
	default:
		return "", false
	}
}

func asInt64(v any) (int64, bool) {
	switch n := unwrap(v).(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

func asUint32(v any) (uint32, bool) {
	n, ok := asInt64(v)
	if !ok || n < 0 || n > math.MaxUint32 {
		return 0, false
	}
	return uint32(n), true
}

func asInt32(v any) (int32, bool) {
	n, ok := asInt64(v)
	if !ok || n < math.MinInt32 || n > math.MaxInt32 {
		return 0, false
	}
	return int32(n), true
}

// asStrings accepts a string slice or an untyped slice holding only strings.
func asStrings(v any) ([]string, bool) {
	switch s := unwrap(v).(type) {
	case []string:
		return append([]string(nil), s...), true
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			str, ok := asString(e)
			if !ok {
				return nil, false
			}
			out = append(out, str)
		}
		return out, true
	default:
		return nil, false
	}
}

// asHints copies a hint dictionary. Values that cannot be carried in a
// variant are dropped.
func asHints(v any) (map[string]dbus.Variant, bool) {
	switch m := unwrap(v).(type) {
	case map[string]dbus.Variant:
		out := make(map[string]dbus.Variant, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out, true
	case map[string]any:
		out := make(map[string]dbus.Variant, len(m))
		for k, val := range m {
			if variant, ok := toVariant(val); ok {
				out[k] = variant
			}
		}
		return out, true
	default:
		return nil, false
	}
}

// toVariant wraps v, reporting false for types with no D-Bus signature.
// dbus.MakeVariant panics on those.
func toVariant(v any) (variant dbus.Variant, ok bool) {
	if variant, isVariant := v.(dbus.Variant); isVariant {
		return variant, true
	}
	if v == nil {
		return dbus.Variant{}, false
	}
	defer func() {
		if recover() != nil {
			variant, ok = dbus.Variant{}, false
		}
	}()
	return dbus.MakeVariant(v), true
}
