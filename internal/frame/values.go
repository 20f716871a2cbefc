package frame

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// normalize maps Go and exported script values onto the frame value set:
// nil, int64, float64, bool, string, time.Time.
func normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case int64, bool, string, time.Time:
		return x
	case float64:
		if math.IsNaN(x) {
			return nil
		}
		return x
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return normalize(float64(x))
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// inferKind picks the narrowest kind holding every non-missing value and
// coerces the values to it.
func inferKind(vals []any) (Kind, []any) {
	var ints, floats, bools, times, texts int
	for _, v := range vals {
		switch v.(type) {
		case nil:
		case int64:
			ints++
		case float64:
			floats++
		case bool:
			bools++
		case time.Time:
			times++
		default:
			texts++
		}
	}
	switch {
	case texts > 0 || (bools > 0 && bools+floats+ints+times != bools) || (times > 0 && times != ints+floats+bools+times):
		out := make([]any, len(vals))
		for i, v := range vals {
			if v != nil {
				out[i] = FormatValue(v)
			}
		}
		return KindText, out
	case bools > 0:
		return KindBoolean, vals
	case times > 0:
		return KindDatetime, vals
	case floats > 0:
		out := make([]any, len(vals))
		for i, v := range vals {
			if n, ok := v.(int64); ok {
				out[i] = float64(n)
			} else {
				out[i] = v
			}
		}
		return KindFloat, out
	case ints > 0:
		return KindInteger, vals
	default:
		return KindText, vals
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case int:
		return float64(x), true
	}
	return 0, false
}

// compareValues orders values: missing last, numbers numerically, then
// bools, times and strings; mixed types fall back to their text form.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return 1
		default:
			return -1
		}
	}
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	switch x := a.(type) {
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			}
			return 1
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	}
	return strings.Compare(FormatValue(a), FormatValue(b))
}

// FormatValue renders a frame value as text. It is the single formatting
// rule shared by CSV export, prompts and text rendering.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		if math.IsNaN(x) {
			return ""
		}
		if math.IsInf(x, 0) {
			if x > 0 {
				return "inf"
			}
			return "-inf"
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		u := x.UTC()
		if u.Hour() == 0 && u.Minute() == 0 && u.Second() == 0 && u.Nanosecond() == 0 {
			return u.Format("2006-01-02")
		}
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
