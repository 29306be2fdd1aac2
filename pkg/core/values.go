package core

import (
	"encoding/json"
	"math"
)

// NormalizeNumbers makes decoded field values compare equal to what was
// written: whole numbers become int, other numbers float64, whatever the
// decoder produced. Nil locale maps become empty.
func NormalizeNumbers(e Entity) Entity {
	if e.Fields == nil {
		e.Fields = Fields{}
	}
	for id, locales := range e.Fields {
		if locales == nil {
			e.Fields[id] = map[string]any{}
			continue
		}
		for code, v := range locales {
			locales[code] = NormalizeValue(v)
		}
	}
	return e
}

// NormalizeValue applies the NormalizeNumbers rules to one value.
func NormalizeValue(val any) any {
	switch v := val.(type) {
	case map[string]any:
		m := make(map[string]any, len(v))
		for k, item := range v {
			m[k] = NormalizeValue(item)
		}
		return m
	case []any:
		l := make([]any, len(v))
		for i, item := range v {
			l[i] = NormalizeValue(item)
		}
		return l
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i)
		}
		f, err := v.Float64()
		if err != nil {
			return v.String()
		}
		return NormalizeValue(f)
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return int(v)
		}
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	default:
		return v
	}
}
