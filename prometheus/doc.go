// Package prometheus provides a Prometheus adapter for
// github.com/abczzz13/unprotect.
//
// The package exposes unprotect options that install a Prometheus-backed
// Metrics implementation on a Resolver or Policy, using either the default
// registerer or a caller-provided registerer.
package prometheus
