package prometheus

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/abczzz13/unprotect"
	prom "github.com/prometheus/client_golang/prometheus"
)

type mockMetrics struct {
	mu           sync.Mutex
	successCount map[string]int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{
		successCount: make(map[string]int),
	}
}

func (m *mockMetrics) RecordResolutionSuccess(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successCount[source]++
}

func (m *mockMetrics) RecordResolutionFailure() {}

func (m *mockMetrics) RecordDecision(string) {}

func (m *mockMetrics) RecordSecurityEvent(string) {}

func (m *mockMetrics) getSuccessCount(source string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.successCount[source]
}

func remoteOnly(addr string) unprotect.RequestInput {
	return unprotect.RequestInput{RemoteAddr: addr, Headers: make(http.Header)}
}

func TestWithMetrics_Option(t *testing.T) {
	resolver, err := unprotect.NewResolver(
		WithMetrics(),
	)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	if got := resolver.ClientAddress(remoteOnly("1.1.1.1:12345")); got != "1.1.1.1" {
		t.Fatalf("ClientAddress() = %q, want %q", got, "1.1.1.1")
	}
}

func TestWithRegisterer_Option(t *testing.T) {
	registry := prom.NewRegistry()

	resolver, err := unprotect.NewResolver(
		WithRegisterer(registry),
	)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	resolver.Resolve(remoteOnly("1.1.1.1:12345"))
	resolver.Resolve(remoteOnly("10.0.0.1:12345"))

	if got := counterValue(registry, resolutionsMetricName, map[string]string{"source": unprotect.SourceRemoteAddr, "result": "success"}); got != 1 {
		t.Fatalf("success counter = %v, want 1", got)
	}
	if got := counterValue(registry, resolutionsMetricName, map[string]string{"source": "none", "result": "unresolved"}); got != 1 {
		t.Fatalf("unresolved counter = %v, want 1", got)
	}
	if got := counterValue(registry, securityEventsMetricName, map[string]string{"event": "private_address"}); got != 1 {
		t.Fatalf("private_address counter = %v, want 1", got)
	}
}

func TestDecisionCounter(t *testing.T) {
	registry := prom.NewRegistry()

	policy, err := unprotect.NewPolicy(WithRegisterer(registry))
	if err != nil {
		t.Fatalf("NewPolicy() error = %v", err)
	}

	cfg := unprotect.NewAccessConfiguration(true, unprotect.AllowList{"1.1.1.0/24"})
	ctx := context.Background()

	policy.Decide(ctx, true, cfg, remoteOnly("8.8.8.8:1"))
	policy.Decide(ctx, false, cfg, remoteOnly("1.1.1.9:1"))
	policy.Decide(ctx, false, cfg, remoteOnly("8.8.8.8:1"))
	policy.Decide(ctx, false, cfg, remoteOnly("8.8.4.4:1"))

	for reason, want := range map[string]float64{
		unprotect.ReasonLoggedIn:  1,
		unprotect.ReasonAllowList: 1,
		unprotect.ReasonDenied:    2,
	} {
		if got := counterValue(registry, decisionsMetricName, map[string]string{"reason": reason}); got != want {
			t.Errorf("decisions{reason=%q} = %v, want %v", reason, got, want)
		}
	}
}

func TestMetricsOptions_Precedence_LastWins(t *testing.T) {
	t.Run("custom metrics after prometheus option", func(t *testing.T) {
		registry := prom.NewRegistry()
		customMetrics := newMockMetrics()

		resolver, err := unprotect.NewResolver(
			WithRegisterer(registry),
			unprotect.WithMetrics(customMetrics),
		)
		if err != nil {
			t.Fatalf("NewResolver() error = %v", err)
		}

		resolver.Resolve(remoteOnly("1.1.1.1:12345"))

		if got := customMetrics.getSuccessCount(unprotect.SourceRemoteAddr); got != 1 {
			t.Fatalf("custom metrics success count = %d, want 1", got)
		}
		if got := counterValue(registry, resolutionsMetricName, map[string]string{"source": unprotect.SourceRemoteAddr, "result": "success"}); got != 0 {
			t.Fatalf("prometheus counter = %v, want 0", got)
		}
	})

	t.Run("prometheus option after custom metrics", func(t *testing.T) {
		registry := prom.NewRegistry()
		customMetrics := newMockMetrics()

		resolver, err := unprotect.NewResolver(
			unprotect.WithMetrics(customMetrics),
			WithRegisterer(registry),
		)
		if err != nil {
			t.Fatalf("NewResolver() error = %v", err)
		}

		resolver.Resolve(remoteOnly("1.1.1.1:12345"))

		if got := customMetrics.getSuccessCount(unprotect.SourceRemoteAddr); got != 0 {
			t.Fatalf("custom metrics success count = %d, want 0", got)
		}
		if got := counterValue(registry, resolutionsMetricName, map[string]string{"source": unprotect.SourceRemoteAddr, "result": "success"}); got != 1 {
			t.Fatalf("prometheus counter = %v, want 1", got)
		}
	})
}

func TestNewWithRegisterer_ReusesCollectors(t *testing.T) {
	registry := prom.NewRegistry()
	metricsA, err := NewWithRegisterer(registry)
	if err != nil {
		t.Fatalf("NewWithRegisterer() error = %v", err)
	}

	metricsB, err := NewWithRegisterer(registry)
	if err != nil {
		t.Fatalf("second NewWithRegisterer() error = %v", err)
	}

	metricsA.RecordDecision(unprotect.ReasonDenied)
	metricsB.RecordDecision(unprotect.ReasonDenied)

	if got := counterValue(registry, decisionsMetricName, map[string]string{"reason": unprotect.ReasonDenied}); got != 2 {
		t.Fatalf("shared counter = %v, want 2", got)
	}
}

type failingRegisterer struct {
	err error
}

func (r failingRegisterer) Register(prom.Collector) error {
	return r.err
}

func (r failingRegisterer) MustRegister(...prom.Collector) {}

func (r failingRegisterer) Unregister(prom.Collector) bool {
	return false
}

func TestNewWithRegisterer_RegisterError(t *testing.T) {
	registerErr := errors.New("register failed")

	_, err := NewWithRegisterer(failingRegisterer{err: registerErr})
	if !errors.Is(err, registerErr) {
		t.Fatalf("error = %v, want wrapped register error", err)
	}
}

func TestNewWithRegisterer_IncompatibleCollectorType(t *testing.T) {
	registry := prom.NewRegistry()
	gauge := prom.NewGaugeVec(
		prom.GaugeOpts{
			Name: decisionsMetricName,
			Help: "Password bypass decisions by reason (logged_in, allow_list, denied).",
		},
		[]string{"reason"},
	)
	if err := registry.Register(gauge); err != nil {
		t.Fatalf("registry.Register() error = %v", err)
	}

	_, err := NewWithRegisterer(registry)
	if err == nil {
		t.Fatal("expected error for incompatible existing collector type")
	}
	if !strings.Contains(err.Error(), "incompatible collector type") {
		t.Fatalf("error = %q, want incompatible collector type message", err.Error())
	}
}

func TestWithRegisterer_OptionError(t *testing.T) {
	registerErr := errors.New("register failed")

	_, err := unprotect.NewResolver(WithRegisterer(failingRegisterer{err: registerErr}))
	if !errors.Is(err, registerErr) {
		t.Fatalf("error = %v, want wrapped register error", err)
	}
}

func counterValue(registry *prom.Registry, metricName string, labels map[string]string) float64 {
	metricFamilies, err := registry.Gather()
	if err != nil {
		return 0
	}

	for _, family := range metricFamilies {
		if family.GetName() != metricName {
			continue
		}

		for _, metric := range family.GetMetric() {
			metricLabels := make(map[string]string, len(metric.GetLabel()))
			for _, pair := range metric.GetLabel() {
				metricLabels[pair.GetName()] = pair.GetValue()
			}

			if !labelsMatch(metricLabels, labels) {
				continue
			}
			if metric.GetCounter() == nil {
				return 0
			}
			return metric.GetCounter().GetValue()
		}
	}

	return 0
}

func labelsMatch(metricLabels, labels map[string]string) bool {
	for labelName, labelValue := range labels {
		if metricLabels[labelName] != labelValue {
			return false
		}
	}

	return true
}
