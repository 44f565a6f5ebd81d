package unprotect

import (
	"fmt"
	"net/netip"
	"net/textproto"
	"strings"
)

const (
	// DefaultMaxChainLength is the maximum number of comma-separated tokens
	// evaluated per header. Tokens beyond it are ignored and a chain_too_long
	// security event is recorded. Real proxy chains rarely exceed a handful of
	// entries.
	DefaultMaxChainLength = 100
)

// Header names in the default resolution order.
const (
	HeaderCFConnectingIP   = "CF-Connecting-IP"
	HeaderClientIP         = "Client-IP"
	HeaderXForwardedFor    = "X-Forwarded-For"
	HeaderXForwarded       = "X-Forwarded"
	HeaderXClusterClientIP = "X-Cluster-Client-IP"
	HeaderForwardedFor     = "Forwarded-For"
	HeaderForwarded        = "Forwarded"
)

// SourceRemoteAddr names the transport remote address in a priority list.
const SourceRemoteAddr = "remote_addr"

// sourceForwarded is the normalized name of the Forwarded header.
var sourceForwarded = NormalizeSourceName(HeaderForwarded)

// DefaultHeaderPriority returns the default resolution order: the headers
// set by common CDNs and proxies, then the remote address.
func DefaultHeaderPriority() []string {
	return []string{
		HeaderCFConnectingIP,
		HeaderClientIP,
		HeaderXForwardedFor,
		HeaderXForwarded,
		HeaderXClusterClientIP,
		HeaderForwardedFor,
		HeaderForwarded,
		SourceRemoteAddr,
	}
}

// Option configures a Resolver or Policy.
//
// Construct options using package-provided option builder functions.
type Option func(*config) error

// config holds resolver configuration state.
//
// It is mutated by Option functions during construction.
type config struct {
	sourcePriority []string

	parseForwarded        bool
	allowPrivateAddresses bool
	allowReservedPrefixes []netip.Prefix
	maxChainLength        int

	logger  Logger
	metrics Metrics

	metricsFactory    func() (Metrics, error)
	useMetricsFactory bool
}

// source is one entry of the resolved priority list.
type source struct {
	// name is the normalized label used in metrics, logs and Resolution.
	name string

	// header is the canonical MIME header key, empty for the remote address.
	header string
}

func (s source) isRemoteAddr() bool {
	return s.header == ""
}

func buildSources(priority []string) []source {
	sources := make([]source, 0, len(priority))
	for _, name := range priority {
		normalized := NormalizeSourceName(name)
		if normalized == SourceRemoteAddr {
			sources = append(sources, source{name: SourceRemoteAddr})
			continue
		}
		sources = append(sources, source{
			name:   normalized,
			header: textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(name)),
		})
	}
	return sources
}

func clonePrefixes(prefixes []netip.Prefix) []netip.Prefix {
	if prefixes == nil {
		return nil
	}
	cloned := make([]netip.Prefix, len(prefixes))
	copy(cloned, prefixes)
	return cloned
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	cloned := make([]string, len(values))
	copy(cloned, values)
	return cloned
}

func normalizePrefixes(prefixes []netip.Prefix, kind string) ([]netip.Prefix, error) {
	normalized := make([]netip.Prefix, 0, len(prefixes))
	for _, prefix := range prefixes {
		if !prefix.IsValid() {
			return nil, fmt.Errorf("invalid %s %q", kind, prefix)
		}
		normalized = append(normalized, prefix.Masked())
	}

	return normalized, nil
}

func mergeUniquePrefixes(existing []netip.Prefix, additions ...netip.Prefix) []netip.Prefix {
	if len(existing) == 0 && len(additions) == 0 {
		return nil
	}

	merged := make([]netip.Prefix, 0, len(existing)+len(additions))
	seen := make(map[netip.Prefix]struct{}, len(existing)+len(additions))

	for _, prefix := range append(existing, additions...) {
		if _, ok := seen[prefix]; ok {
			continue
		}
		seen[prefix] = struct{}{}
		merged = append(merged, prefix)
	}

	return merged
}

func defaultConfig() *config {
	return &config{
		sourcePriority: DefaultHeaderPriority(),
		maxChainLength: DefaultMaxChainLength,
		logger:         noopLogger{},
		metrics:        noopMetrics{},
	}
}

func applyOptions(c *config, opts ...Option) error {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(c); err != nil {
			return err
		}
	}

	return nil
}

func configFromOptions(opts ...Option) (*config, error) {
	cfg := defaultConfig()

	if err := applyOptions(cfg, opts...); err != nil {
		return nil, err
	}

	if cfg.useMetricsFactory && cfg.metricsFactory == nil {
		return nil, fmt.Errorf("metrics factory cannot be nil")
	}

	validationConfig := cfg
	if cfg.useMetricsFactory {
		validationConfig = cfg.clone()
		validationConfig.metrics = noopMetrics{}
	}

	if err := validationConfig.validate(); err != nil {
		return nil, err
	}

	if cfg.useMetricsFactory {
		metrics, err := cfg.metricsFactory()
		if err != nil {
			return nil, err
		}
		cfg.metrics = metrics

		if err := cfg.validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (c *config) clone() *config {
	return &config{
		sourcePriority:        cloneStrings(c.sourcePriority),
		parseForwarded:        c.parseForwarded,
		allowPrivateAddresses: c.allowPrivateAddresses,
		allowReservedPrefixes: clonePrefixes(c.allowReservedPrefixes),
		maxChainLength:        c.maxChainLength,
		logger:                c.logger,
		metrics:               c.metrics,
		metricsFactory:        c.metricsFactory,
		useMetricsFactory:     c.useMetricsFactory,
	}
}
