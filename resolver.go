package unprotect

import (
	"fmt"
	"net/http"
)

// Resolver determines the client address of a request from its headers and
// transport remote address.
//
// Sources are tried in priority order. Within a header, every line is split
// on commas and tokens are evaluated left to right; the first token that is
// a bare IP literal outside the private and reserved ranges wins.
//
// The default headers can be set by any client. Resolver reports what the
// request claims, which is only as trustworthy as the proxies in front of
// the application.
//
// Resolver instances are immutable and safe for concurrent reuse.
type Resolver struct {
	config  *config
	sources []source
}

// NewResolver creates a Resolver from one or more Option builders.
func NewResolver(opts ...Option) (*Resolver, error) {
	cfg, err := configFromOptions(opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Resolver{
		config:  cfg,
		sources: buildSources(cfg.sourcePriority),
	}, nil
}

// Resolve returns the client address for input. It never fails: when no
// source qualifies the Resolution is not Valid.
func (r *Resolver) Resolve(input RequestInput) Resolution {
	ctx := requestInputContext(input)

	for _, src := range r.sources {
		if ip, ok := r.resolveSource(ctx, src, input); ok {
			r.config.metrics.RecordResolutionSuccess(src.name)
			return Resolution{Addr: ip, Source: src.name}
		}
	}

	r.config.metrics.RecordResolutionFailure()
	return Resolution{}
}

// ResolveRequest resolves the client address of an *http.Request.
func (r *Resolver) ResolveRequest(req *http.Request) Resolution {
	if req == nil {
		return r.Resolve(RequestInput{})
	}
	return r.Resolve(inputFromRequest(req))
}

// ClientAddress returns the canonical client address, or "" when it cannot
// be determined.
func (r *Resolver) ClientAddress(input RequestInput) string {
	return r.Resolve(input).String()
}
