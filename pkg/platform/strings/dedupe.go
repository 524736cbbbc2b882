// Package strings holds the list helpers used for whitespace-delimited
// device token lists and alias fields.
package strings

import "strings"

// DedupeAndTrim trims each value, drops empties and keeps the first
// occurrence of every duplicate.
func DedupeAndTrim(values []string) []string {
	if values == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// SplitFields splits a whitespace-delimited list into its distinct fields.
//
//	SplitFields("tok-a  tok-b\ntok-a") // [tok-a tok-b]
func SplitFields(s string) []string {
	return DedupeAndTrim(strings.Fields(s))
}

// AppendField adds value to a whitespace-delimited list unless it is already present.
func AppendField(list, value string) string {
	return strings.Join(SplitFields(list+" "+value), " ")
}
