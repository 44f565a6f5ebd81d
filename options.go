package unprotect

import (
	"fmt"
	"net/netip"
)

// HeaderPriority sets the resolution order. Names are header names matched
// case-insensitively, plus SourceRemoteAddr for the transport address.
func HeaderPriority(sources ...string) Option {
	sources = cloneStrings(sources)

	return func(c *config) error {
		c.sourcePriority = cloneStrings(sources)
		return nil
	}
}

// ParseForwardedElements enables RFC 7239 parsing of the Forwarded header,
// taking client candidates from its for= parameters.
//
// When disabled (the default), Forwarded is split on commas like every other
// header, so only bare address tokens qualify.
func ParseForwardedElements(enable bool) Option {
	return func(c *config) error {
		c.parseForwarded = enable
		return nil
	}
}

// AllowPrivateAddresses configures whether private-use client addresses are
// accepted.
func AllowPrivateAddresses(allow bool) Option {
	return func(c *config) error {
		c.allowPrivateAddresses = allow
		return nil
	}
}

// AllowReservedPrefixes exempts reserved prefixes from the reserved range
// filter, for example 127.0.0.0/8 in local development.
func AllowReservedPrefixes(prefixes ...netip.Prefix) Option {
	prefixes = clonePrefixes(prefixes)

	return func(c *config) error {
		normalized, err := normalizePrefixes(prefixes, "reserved prefix")
		if err != nil {
			return err
		}

		c.allowReservedPrefixes = mergeUniquePrefixes(c.allowReservedPrefixes, normalized...)
		return nil
	}
}

// MaxChainLength sets the maximum number of tokens evaluated per header.
func MaxChainLength(max int) Option {
	return func(c *config) error {
		c.maxChainLength = max
		return nil
	}
}

// WithLogger sets the logger implementation used for warning events.
func WithLogger(logger Logger) Option {
	return func(c *config) error {
		c.logger = logger
		return nil
	}
}

// WithMetrics sets a concrete metrics implementation.
//
// If previously configured, a metrics factory is disabled.
func WithMetrics(metrics Metrics) Option {
	return func(c *config) error {
		c.metrics = metrics
		c.metricsFactory = nil
		c.useMetricsFactory = false
		return nil
	}
}

// WithMetricsFactory configures a lazy metrics constructor.
//
// The factory is invoked only after option validation succeeds.
func WithMetricsFactory(factory func() (Metrics, error)) Option {
	return func(c *config) error {
		if factory == nil {
			return fmt.Errorf("metrics factory cannot be nil")
		}

		c.metricsFactory = factory
		c.useMetricsFactory = true
		return nil
	}
}
