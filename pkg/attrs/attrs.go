// Package attrs reads values back out of slog-style key/value argument lists.
package attrs

import "fmt"

// String returns the value stored under key as a string. Typed IDs and other
// fmt.Stringer values are rendered; anything else, or a missing key, yields "".
func String(kv []any, key string) string {
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); !ok || k != key {
			continue
		}
		switch v := kv[i+1].(type) {
		case string:
			return v
		case fmt.Stringer:
			return v.String()
		}
		return ""
	}
	return ""
}
