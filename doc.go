// Package unprotect decides whether a visitor may skip the password prompt of
// password-protected content.
//
// A visitor bypasses the password when either
//
//   - they are logged in and the site trusts logged-in users, or
//   - their network address matches an administrator-maintained allow-list
//     of addresses and IPv4 CIDR ranges.
//
// # Basic Usage
//
//	policy, err := unprotect.NewPolicy()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	cfg := unprotect.Options{
//	    GiveAccess:  "yes",
//	    IPAddresses: "203.0.113.0/24\n198.51.100.9",
//	}.Configuration()
//
//	decision := policy.DecideRequest(loggedIn, cfg, req)
//	if decision.Bypass {
//	    // serve the content without asking for the password
//	}
//
// # Client Address Resolution
//
// Resolver walks CF-Connecting-IP, Client-IP, X-Forwarded-For, X-Forwarded,
// X-Cluster-Client-IP, Forwarded-For, Forwarded and finally the transport
// remote address. The first token that is a bare IP literal outside the
// private-use and reserved ranges is the client address.
//
// These headers can be forged by any client unless a proxy in front of the
// application overwrites them. Narrow the order with HeaderPriority or a
// preset when the deployment is known:
//
//	policy, _ := unprotect.NewPolicy(unprotect.PresetCloudflare())
//
// # Allow-List Entries
//
// Entries are IPv4 or IPv6 literals with an optional "/n" prefix length.
// ParseAllowList validates a stored multi-line value and reports the first
// bad line. Only IPv4 entries take part in matching: IPv6 entries are
// accepted when saving but never match.
//
// # Observability
//
// The logger receives the request context. Security events (over-long header
// chains, malformed Forwarded headers, malformed allow-list entries) are
// logged as warnings and counted through Metrics. A Prometheus adapter lives
// in github.com/abczzz13/unprotect/prometheus.
//
//	metrics, _ := unprotectprom.New()
//
//	policy, err := unprotect.NewPolicy(
//	    unprotect.WithLogger(slog.Default()),
//	    unprotect.WithMetrics(metrics),
//	)
//
// # Thread Safety
//
// Resolver, Policy and AccessConfiguration values are immutable and safe for
// concurrent use.
package unprotect
