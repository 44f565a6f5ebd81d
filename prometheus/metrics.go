package prometheus

import (
	"errors"
	"fmt"

	"github.com/abczzz13/unprotect"
	prom "github.com/prometheus/client_golang/prometheus"
)

const (
	resolutionsMetricName    = "unprotect_client_address_resolutions_total"
	decisionsMetricName      = "unprotect_decisions_total"
	securityEventsMetricName = "unprotect_security_events_total"

	// sourceNone labels resolutions where no source yielded an address.
	sourceNone = "none"
)

// PrometheusMetrics is a Prometheus-backed implementation of
// unprotect.Metrics.
type PrometheusMetrics struct {
	resolutions    *prom.CounterVec
	decisions      *prom.CounterVec
	securityEvents *prom.CounterVec
}

// WithMetrics returns an unprotect option that installs Prometheus-backed
// metrics using prom.DefaultRegisterer.
func WithMetrics() unprotect.Option {
	return withMetricsFactory(New)
}

// WithRegisterer returns an unprotect option that installs Prometheus-backed
// metrics using the provided registerer.
//
// If registerer is nil, prom.DefaultRegisterer is used.
func WithRegisterer(registerer prom.Registerer) unprotect.Option {
	return withMetricsFactory(func() (*PrometheusMetrics, error) {
		return NewWithRegisterer(registerer)
	})
}

// withMetricsFactory adapts a PrometheusMetrics constructor into a lazy
// unprotect.Option, invoked only once the other options validate.
func withMetricsFactory(factory func() (*PrometheusMetrics, error)) unprotect.Option {
	return unprotect.WithMetricsFactory(func() (unprotect.Metrics, error) {
		metrics, err := factory()
		if err != nil {
			return nil, err
		}
		return metrics, nil
	})
}

// New creates PrometheusMetrics and registers its collectors on
// prom.DefaultRegisterer.
func New() (*PrometheusMetrics, error) {
	return NewWithRegisterer(prom.DefaultRegisterer)
}

// NewWithRegisterer creates PrometheusMetrics and registers its collectors on
// the given registerer.
//
// If registerer is nil, prom.DefaultRegisterer is used. If the metrics are
// already registered, existing compatible collectors are reused.
func NewWithRegisterer(registerer prom.Registerer) (*PrometheusMetrics, error) {
	if registerer == nil {
		registerer = prom.DefaultRegisterer
	}

	resolutions, err := registerCounterVec(registerer, prom.NewCounterVec(
		prom.CounterOpts{
			Name: resolutionsMetricName,
			Help: "Client address resolutions by winning source (header name, remote_addr or none) and result (success, unresolved).",
		},
		[]string{"source", "result"},
	), resolutionsMetricName)
	if err != nil {
		return nil, err
	}

	decisions, err := registerCounterVec(registerer, prom.NewCounterVec(
		prom.CounterOpts{
			Name: decisionsMetricName,
			Help: "Password bypass decisions by reason (logged_in, allow_list, denied).",
		},
		[]string{"reason"},
	), decisionsMetricName)
	if err != nil {
		return nil, err
	}

	securityEvents, err := registerCounterVec(registerer, prom.NewCounterVec(
		prom.CounterOpts{
			Name: securityEventsMetricName,
			Help: "Security-related events during resolution and matching, labeled by event.",
		},
		[]string{"event"},
	), securityEventsMetricName)
	if err != nil {
		return nil, err
	}

	return &PrometheusMetrics{
		resolutions:    resolutions,
		decisions:      decisions,
		securityEvents: securityEvents,
	}, nil
}

func registerCounterVec(registerer prom.Registerer, collector *prom.CounterVec, metricName string) (*prom.CounterVec, error) {
	if err := registerer.Register(collector); err != nil {
		var alreadyRegistered prom.AlreadyRegisteredError
		if errors.As(err, &alreadyRegistered) {
			existing, ok := alreadyRegistered.ExistingCollector.(*prom.CounterVec)
			if ok {
				return existing, nil
			}
			return nil, fmt.Errorf("metric %q already registered with incompatible collector type %T", metricName, alreadyRegistered.ExistingCollector)
		}

		return nil, fmt.Errorf("register metric %q: %w", metricName, err)
	}

	return collector, nil
}

// RecordResolutionSuccess increments the resolutions counter with
// result="success" for the provided source.
func (m *PrometheusMetrics) RecordResolutionSuccess(source string) {
	m.resolutions.WithLabelValues(source, "success").Inc()
}

// RecordResolutionFailure increments the resolutions counter with
// source="none", result="unresolved".
func (m *PrometheusMetrics) RecordResolutionFailure() {
	m.resolutions.WithLabelValues(sourceNone, "unresolved").Inc()
}

// RecordDecision increments unprotect_decisions_total for the reason.
func (m *PrometheusMetrics) RecordDecision(reason string) {
	m.decisions.WithLabelValues(reason).Inc()
}

// RecordSecurityEvent increments unprotect_security_events_total for the
// provided event label.
func (m *PrometheusMetrics) RecordSecurityEvent(event string) {
	m.securityEvents.WithLabelValues(event).Inc()
}
