package unprotect

import (
	"context"
	"net/netip"
	"strings"
)

// typicalChainCapacity is the initial capacity used when collecting header
// tokens. Most chains hold one to five entries.
const typicalChainCapacity = 8

// resolveSource returns the first public address the source yields.
func (r *Resolver) resolveSource(ctx context.Context, src source, input RequestInput) (netip.Addr, bool) {
	if src.isRemoteAddr() {
		ip := parseRemoteAddr(input.RemoteAddr)
		return ip, r.isPublicAddr(ip)
	}

	values := headerValues(input.Headers, src.header)
	if len(values) == 0 {
		return netip.Addr{}, false
	}

	if r.config.parseForwarded && src.name == sourceForwarded {
		return r.resolveForwarded(ctx, src, input, values)
	}

	tokens, truncated := splitTokens(values, r.config.maxChainLength)
	if truncated {
		r.chainTooLong(ctx, src, input)
	}

	for _, token := range tokens {
		if ip := parseToken(token); r.isPublicAddr(ip) {
			return ip, true
		}
	}
	return netip.Addr{}, false
}

func (r *Resolver) resolveForwarded(ctx context.Context, src source, input RequestInput, values []string) (netip.Addr, bool) {
	nodes, truncated, err := forwardedNodes(values, r.config.maxChainLength)
	if err != nil {
		r.config.metrics.RecordSecurityEvent(securityEventMalformedForwarded)
		r.logSecurityWarning(ctx, input, src.name, securityEventMalformedForwarded,
			"malformed Forwarded header ignored", "error", err.Error())
		return netip.Addr{}, false
	}
	if truncated {
		r.chainTooLong(ctx, src, input)
	}

	for _, node := range nodes {
		if ip := parseNode(node); r.isPublicAddr(ip) {
			return ip, true
		}
	}
	return netip.Addr{}, false
}

func (r *Resolver) chainTooLong(ctx context.Context, src source, input RequestInput) {
	r.config.metrics.RecordSecurityEvent(securityEventChainTooLong)
	r.logSecurityWarning(ctx, input, src.name, securityEventChainTooLong,
		"header chain exceeds configured maximum, remaining entries ignored",
		"max_length", r.config.maxChainLength)
}

// splitTokens splits every header line on commas and trims each token.
// At most limit non-empty tokens are returned.
func splitTokens(values []string, limit int) (tokens []string, truncated bool) {
	tokens = make([]string, 0, typicalChainCapacity)
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if len(tokens) == limit {
				return tokens, true
			}
			tokens = append(tokens, trimmed)
		}
	}
	return tokens, false
}

func (r *Resolver) logSecurityWarning(ctx context.Context, input RequestInput, sourceName, event, msg string, attrs ...any) {
	logSecurityWarning(ctx, r.config.logger, input, sourceName, event, msg, attrs...)
}

func logSecurityWarning(ctx context.Context, logger Logger, input RequestInput, sourceName, event, msg string, attrs ...any) {
	baseAttrs := []any{
		"event", event,
		"source", sourceName,
		"path", input.Path,
		"remote_addr", input.RemoteAddr,
	}

	baseAttrs = append(baseAttrs, attrs...)
	logger.WarnContext(ctx, msg, baseAttrs...)
}
