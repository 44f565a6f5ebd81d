package unprotect

// Metrics records resolution outcomes, bypass decisions and security events.
//
// Implementations should be safe for concurrent use.
type Metrics interface {
	// RecordResolutionSuccess is called when a source yields the client
	// address.
	RecordResolutionSuccess(source string)
	// RecordResolutionFailure is called when no source yields an address.
	RecordResolutionFailure()
	// RecordDecision is called once per Policy decision with its reason.
	RecordDecision(reason string)
	// RecordSecurityEvent is called when a security-relevant condition is
	// observed.
	RecordSecurityEvent(event string)
}

// noopMetrics is the default Metrics implementation when metrics are not
// explicitly configured.
type noopMetrics struct{}

func (noopMetrics) RecordResolutionSuccess(string) {}

func (noopMetrics) RecordResolutionFailure() {}

func (noopMetrics) RecordDecision(string) {}

func (noopMetrics) RecordSecurityEvent(string) {}
