package websmith

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// Request describes one API call.
type Request struct {
	Method string
	// Path is joined to the client's base URL unless it is absolute.
	Path   string
	Params Params
	// Body is sent as JSON; []byte and io.Reader values are sent as is.
	Body   any
	Header http.Header
	// NoCache bypasses both cache tiers for this call.
	NoCache bool
	// RetryCondition overrides the client condition. Setting it also enables
	// retries for non-idempotent methods.
	RetryCondition RetryCondition
}

// Response is a completed 2xx response. Body is shared with cache entries and
// must not be modified.
type Response struct {
	StatusCode int         `json:"status"`
	Header     http.Header `json:"header,omitempty"`
	Body       []byte      `json:"body"`
	// Cached is set when the response came from a cache tier.
	Cached bool `json:"-"`
	// Shared is set when the response came from another caller's in-flight call.
	Shared bool `json:"-"`
}

// JSON decodes the body into out.
func (r *Response) JSON(out any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("decode response: empty body")
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (r *Response) clone() *Response {
	cp := *r
	return &cp
}

func (r *Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Method)
}

// bodyBytes materialises the body once so every retry sends the same payload.
func (r *Request) bodyBytes() ([]byte, error) {
	switch b := r.Body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	case io.Reader:
		data, err := io.ReadAll(b)
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		return data, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		return data, nil
	}
}

func newBodyReader(data []byte) io.Reader {
	if data == nil {
		return nil
	}
	return bytes.NewReader(data)
}

// resolveURL joins path to base unless path is already absolute.
func resolveURL(base, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") || base == "" {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// encodeQuery renders params as a sorted query string. Strings and scalars are
// used verbatim, slices repeat the key, anything else is JSON encoded.
func encodeQuery(params Params) (string, error) {
	if len(params) == 0 {
		return "", nil
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	values := url.Values{}
	for _, name := range names {
		switch v := params[name].(type) {
		case nil:
			continue
		case string:
			values.Add(name, v)
		case []string:
			for _, s := range v {
				values.Add(name, s)
			}
		case []any:
			for _, item := range v {
				s, err := queryValue(item)
				if err != nil {
					return "", fmt.Errorf("query param %q: %w", name, err)
				}
				values.Add(name, s)
			}
		default:
			s, err := queryValue(v)
			if err != nil {
				return "", fmt.Errorf("query param %q: %w", name, err)
			}
			values.Add(name, s)
		}
	}
	return values.Encode(), nil
}

func queryValue(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case fmt.Stringer:
		return t.String(), nil
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(t), nil
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	default:
		return false
	}
}
