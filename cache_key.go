package websmith

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// GenerateKey builds a deterministic cache key "METHOD:URL?k1=v1&k2=v2".
// Parameter names are sorted and every value is JSON encoded, so maps with the
// same content always produce the same key. An empty method means GET. An
// error is returned when a value cannot be JSON encoded.
func GenerateKey(url string, params Params, method string) (string, error) {
	if method == "" {
		method = "GET"
	}

	var b strings.Builder
	b.WriteString(strings.ToUpper(method))
	b.WriteByte(':')
	b.WriteString(url)

	if len(params) == 0 {
		return b.String(), nil
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	b.WriteByte('?')
	for i, name := range names {
		encoded, err := json.Marshal(params[name])
		if err != nil {
			return "", fmt.Errorf("cache key param %q: %w", name, err)
		}
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.Write(encoded)
	}
	return b.String(), nil
}
