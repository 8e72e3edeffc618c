package resource

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Normalize returns a copy of v in which every time.Time, at any depth of
// maps and slices, is replaced by its epoch seconds. Sub-second precision is
// dropped. Other values are returned unchanged.
func Normalize(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Unix()
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC().Unix()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Normalize(val)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = Normalize(m)
		}
		return out
	default:
		return v
	}
}

// QueryString builds "k1=v1&k2=v2" from params with keys in sorted order.
// Parameters with a nil value are left out and returned in missing so the
// caller can report them.
func QueryString(params map[string]any) (query string, missing []string) {
	if len(params) == 0 {
		return "", nil
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		v := Normalize(params[k])
		if v == nil {
			missing = append(missing, k)
			continue
		}
		pairs = append(pairs, url.QueryEscape(k)+"="+url.QueryEscape(fmt.Sprint(v)))
	}

	return strings.Join(pairs, "&"), missing
}
