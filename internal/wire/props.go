package wire

import "strings"

// EncodeProperties joins a property map into the wire's flat key=value
// blob: pairs separated by propertySeparator, key and value within a pair
// separated by nameValueSeparator. Order is not significant to a reader
// but map iteration order would make encoding non-deterministic, so
// callers that need reproducible bytes (tests) should pass a map with at
// most one entry or accept that order varies run to run, matching the
// original's own use of an unordered `Properties` map.
func EncodeProperties(props map[string]string) string {
	if len(props) == 0 {
		return ""
	}
	var b strings.Builder
	first := true
	for k, v := range props {
		if !first {
			b.WriteByte(propertySeparator)
		}
		first = false
		b.WriteString(k)
		b.WriteByte(nameValueSeparator)
		b.WriteString(v)
	}
	return b.String()
}

// DecodeProperties is the inverse of EncodeProperties.
func DecodeProperties(blob string) map[string]string {
	if blob == "" {
		return nil
	}
	pairs := strings.Split(blob, string(propertySeparator))
	props := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		idx := strings.IndexByte(pair, nameValueSeparator)
		if idx < 0 {
			continue
		}
		props[pair[:idx]] = pair[idx+1:]
	}
	return props
}
