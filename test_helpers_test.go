package unprotect

import (
	"net/http"
	"net/url"
	"testing"
)

type resolutionState struct {
	Valid  bool
	Addr   string
	Source string
}

func resolutionStateOf(r Resolution) resolutionState {
	return resolutionState{
		Valid:  r.Valid(),
		Addr:   r.String(),
		Source: r.Source,
	}
}

func mustNewResolver(t *testing.T, opts ...Option) *Resolver {
	t.Helper()

	resolver, err := NewResolver(opts...)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	return resolver
}

func mustNewPolicy(t *testing.T, opts ...Option) *Policy {
	t.Helper()

	policy, err := NewPolicy(opts...)
	if err != nil {
		t.Fatalf("NewPolicy() error = %v", err)
	}

	return policy
}

func newTestRequest(remoteAddr, path string) *http.Request {
	req := &http.Request{
		RemoteAddr: remoteAddr,
		Header:     make(http.Header),
	}

	if path != "" {
		req.URL = &url.URL{Path: path}
	}

	return req
}

// headerInput builds a RequestInput from alternating name, value pairs.
func headerInput(remoteAddr string, pairs ...string) RequestInput {
	h := make(http.Header)
	for i := 0; i+1 < len(pairs); i += 2 {
		h.Add(pairs[i], pairs[i+1])
	}
	return RequestInput{RemoteAddr: remoteAddr, Headers: h}
}
