package unprotect

import (
	"context"
	"net/http"
	"net/textproto"
	"sort"
	"strings"
)

// HeaderValues provides access to request header values by name.
//
// Implementations should return one slice entry per received header line.
// Header names are requested in canonical MIME format (for example
// "X-Forwarded-For").
//
// net/http's http.Header satisfies this interface directly.
type HeaderValues interface {
	Values(name string) []string
}

// HeaderValuesFunc adapts a function to the HeaderValues interface.
type HeaderValuesFunc func(name string) []string

// Values implements HeaderValues.
func (f HeaderValuesFunc) Values(name string) []string {
	if f == nil {
		return nil
	}

	return f(name)
}

// HeaderMap adapts a flat name to value map. Names are matched
// case-insensitively.
type HeaderMap map[string]string

// Values implements HeaderValues. When several keys differ only in case,
// their values are returned in key order.
func (m HeaderMap) Values(name string) []string {
	if v, ok := m[name]; ok {
		return []string{v}
	}

	var keys []string
	for k := range m {
		if strings.EqualFold(k, name) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}

	sort.Strings(keys)
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = m[k]
	}
	return values
}

// RequestInput provides framework-agnostic request data for resolution.
//
// Context defaults to context.Background() when nil. RemoteAddr is the
// transport peer address, with or without a port.
type RequestInput struct {
	Context    context.Context
	RemoteAddr string
	Path       string
	Headers    HeaderValues
}

// InputFromServerVars builds a RequestInput from CGI-style server variables:
// REMOTE_ADDR becomes RemoteAddr and HTTP_X_FORWARDED_FOR style keys become
// headers. Other keys are ignored.
func InputFromServerVars(vars map[string]string) RequestInput {
	var input RequestInput
	headers := make(http.Header)

	for key, value := range vars {
		upper := strings.ToUpper(key)
		switch {
		case upper == "REMOTE_ADDR":
			input.RemoteAddr = value
		case upper == "REQUEST_URI":
			input.Path = value
		case strings.HasPrefix(upper, "HTTP_") && len(upper) > len("HTTP_"):
			name := strings.ReplaceAll(upper[len("HTTP_"):], "_", "-")
			headers[textproto.CanonicalMIMEHeaderKey(name)] = []string{value}
		}
	}

	input.Headers = headers
	return input
}

// inputFromRequest adapts an *http.Request.
func inputFromRequest(r *http.Request) RequestInput {
	input := RequestInput{
		Context:    r.Context(),
		RemoteAddr: r.RemoteAddr,
		Headers:    r.Header,
	}
	if r.URL != nil {
		input.Path = r.URL.Path
	}
	return input
}

func requestInputContext(input RequestInput) context.Context {
	if input.Context == nil {
		return context.Background()
	}

	return input.Context
}

// headerValues looks up name, tolerating nil HeaderValues implementations.
func headerValues(h HeaderValues, name string) []string {
	if isNilInterface(h) {
		return nil
	}
	return h.Values(name)
}
