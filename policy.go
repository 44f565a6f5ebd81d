package unprotect

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
)

// Decision reasons.
const (
	// ReasonLoggedIn: the visitor is logged in and logged-in users are trusted.
	ReasonLoggedIn = "logged_in"
	// ReasonAllowList: the client address matched an allow-list entry.
	ReasonAllowList = "allow_list"
	// ReasonDenied: neither condition held.
	ReasonDenied = "denied"
)

// Decision is the outcome of a bypass check.
type Decision struct {
	// Bypass is true when the password prompt should be skipped.
	Bypass bool
	Reason string

	// ClientAddress is the resolved address, or "" when it was not needed or
	// could not be determined.
	ClientAddress string

	// MatchedEntry is the allow-list entry that matched, if any.
	MatchedEntry string
}

// Policy decides whether a visitor may bypass password protection.
//
// Policy instances are immutable and safe for concurrent reuse.
type Policy struct {
	resolver *Resolver
}

// NewPolicy creates a Policy with a Resolver built from opts.
func NewPolicy(opts ...Option) (*Policy, error) {
	resolver, err := NewResolver(opts...)
	if err != nil {
		return nil, err
	}
	return NewPolicyWithResolver(resolver), nil
}

// NewPolicyWithResolver creates a Policy that shares an existing Resolver.
func NewPolicyWithResolver(resolver *Resolver) *Policy {
	if resolver == nil {
		panic("unprotect: nil resolver")
	}
	return &Policy{resolver: resolver}
}

// Resolver returns the resolver used for allow-list checks.
func (p *Policy) Resolver() *Resolver {
	return p.resolver
}

// Decide reports whether the visitor described by loggedIn and input may
// bypass the password.
//
// A logged-in visitor is let through when cfg trusts logged-in users.
// Otherwise the client address is resolved and checked against the
// allow-list. An empty allow-list, an unresolved address or an allow-list
// holding only malformed entries all deny.
func (p *Policy) Decide(ctx context.Context, loggedIn bool, cfg AccessConfiguration, input RequestInput) Decision {
	if ctx == nil {
		ctx = requestInputContext(input)
	}
	input.Context = ctx

	if loggedIn && cfg.TrustLoggedIn {
		return p.record(Decision{Bypass: true, Reason: ReasonLoggedIn})
	}

	if len(cfg.AllowList) == 0 {
		return p.record(Decision{Reason: ReasonDenied})
	}

	resolution := p.resolver.Resolve(input)
	decision := Decision{Reason: ReasonDenied, ClientAddress: resolution.String()}
	if !resolution.Valid() {
		return p.record(decision)
	}

	if entry, ok := p.match(ctx, cfg, input, resolution.Addr); ok {
		decision.Bypass = true
		decision.Reason = ReasonAllowList
		decision.MatchedEntry = entry
	}
	return p.record(decision)
}

// DecideRequest is Decide for an *http.Request.
func (p *Policy) DecideRequest(loggedIn bool, cfg AccessConfiguration, r *http.Request) Decision {
	return p.Decide(r.Context(), loggedIn, cfg, inputFromRequest(r))
}

// Allow reports only the bypass outcome of Decide.
func (p *Policy) Allow(ctx context.Context, loggedIn bool, cfg AccessConfiguration, input RequestInput) bool {
	return p.Decide(ctx, loggedIn, cfg, input).Bypass
}

func (p *Policy) record(d Decision) Decision {
	p.resolver.config.metrics.RecordDecision(d.Reason)
	return d
}

// match finds the first allow-list entry containing ip. A compiled
// configuration uses its trie; otherwise entries are parsed one by one and
// malformed ones are reported.
func (p *Policy) match(ctx context.Context, cfg AccessConfiguration, input RequestInput, ip netip.Addr) (string, bool) {
	if cfg.compiled != nil {
		return cfg.compiled.match(ip)
	}

	for _, entry := range cfg.AllowList {
		prefix, err := ParseRange(entry)
		if err != nil {
			if !errors.Is(err, ErrUnsupportedFamily) {
				p.malformedEntry(ctx, input, entry, err)
			}
			continue
		}
		if ip.Is4() && inPrefix(ip, prefix) {
			return entry, true
		}
	}
	return "", false
}

func (p *Policy) malformedEntry(ctx context.Context, input RequestInput, entry string, err error) {
	cfg := p.resolver.config
	cfg.metrics.RecordSecurityEvent(securityEventMalformedRangeEntry)
	logSecurityWarning(ctx, cfg.logger, input, "allow_list", securityEventMalformedRangeEntry,
		"malformed allow-list entry treated as non-matching",
		"entry", entry, "error", fmt.Sprint(err))
}
