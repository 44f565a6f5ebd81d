package unprotect

import (
	"net"
	"net/netip"
	"strings"
)

var (
	// privateIPv4Prefixes and privateIPv6Prefixes are the private-use ranges a
	// proxy chain commonly contains for internal hops.
	privateIPv4Prefixes = []netip.Prefix{
		mustParsePrefix("10.0.0.0/8"),
		mustParsePrefix("172.16.0.0/12"),
		mustParsePrefix("192.168.0.0/16"),
	}

	privateIPv6Prefixes = []netip.Prefix{
		mustParsePrefix("fc00::/7"),
	}

	// Documentation ranges (192.0.2.0/24, 198.51.100.0/24, 203.0.113.0/24,
	// 2001:db8::/32) are deliberately absent: they resolve like any public
	// address.
	reservedIPv4Prefixes = []netip.Prefix{
		mustParsePrefix("0.0.0.0/8"),
		mustParsePrefix("127.0.0.0/8"),
		mustParsePrefix("169.254.0.0/16"),
		mustParsePrefix("240.0.0.0/4"),
	}

	reservedIPv6Prefixes = []netip.Prefix{
		mustParsePrefix("::/128"),
		mustParsePrefix("::1/128"),
		mustParsePrefix("::ffff:0:0/96"),
		mustParsePrefix("fe80::/10"),
	}
)

func mustParsePrefix(cidr string) netip.Prefix {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		panic("invalid built-in CIDR " + cidr + ": " + err.Error())
	}
	return prefix
}

// parseToken parses one comma-separated header token.
//
// Only bare address literals are accepted: no ports, brackets, quotes or
// zones. The caller has already trimmed surrounding whitespace.
func parseToken(s string) netip.Addr {
	if s == "" {
		return netip.Addr{}
	}

	ip, err := netip.ParseAddr(s)
	if err != nil || ip.Zone() != "" {
		return netip.Addr{}
	}
	return ip
}

// parseNode parses a node value taken from a Forwarded for= parameter.
// It handles:
//   - Port suffixes: "192.0.2.1:8080" or "[2001:db8::1]:8080"
//   - IPv6 brackets: "[2001:db8::1]"
//
// Obfuscated identifiers ("unknown", "_hidden") yield an invalid address.
func parseNode(s string) netip.Addr {
	s = strings.TrimSpace(s)
	if s == "" {
		return netip.Addr{}
	}

	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}

	return parseToken(trimMatchedPair(s, '[', ']'))
}

// parseRemoteAddr parses the transport remote address, which net/http
// delivers as "host:port".
func parseRemoteAddr(s string) netip.Addr {
	s = strings.TrimSpace(s)
	if s == "" {
		return netip.Addr{}
	}

	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}

	return parseToken(trimMatchedPair(s, '[', ']'))
}

// trimMatchedPair removes one leading and trailing delimiter when both match.
func trimMatchedPair(s string, start, end byte) string {
	if len(s) < 2 {
		return s
	}

	if s[0] != start || s[len(s)-1] != end {
		return s
	}

	return s[1 : len(s)-1]
}

func containsAddr(prefixes []netip.Prefix, ip netip.Addr) bool {
	for _, prefix := range prefixes {
		if prefix.Contains(ip) {
			return true
		}
	}
	return false
}

// isPrivateAddr reports whether ip is in a private-use range.
func isPrivateAddr(ip netip.Addr) bool {
	if ip.Is4() {
		return containsAddr(privateIPv4Prefixes, ip)
	}
	return containsAddr(privateIPv6Prefixes, ip)
}

// isReservedAddr reports whether ip is in a reserved range that never names
// a real client: unspecified, loopback, link-local, IPv4-mapped, class E.
func isReservedAddr(ip netip.Addr) bool {
	if ip.Is4() {
		return containsAddr(reservedIPv4Prefixes, ip)
	}
	return containsAddr(reservedIPv6Prefixes, ip)
}

// isPublicAddr applies the private and reserved range filters, honoring the
// AllowPrivateAddresses and AllowReservedPrefixes options.
func (r *Resolver) isPublicAddr(ip netip.Addr) bool {
	if !ip.IsValid() {
		return false
	}

	if isReservedAddr(ip) && !containsAddr(r.config.allowReservedPrefixes, ip) {
		r.config.metrics.RecordSecurityEvent(securityEventReservedAddress)
		return false
	}

	if !r.config.allowPrivateAddresses && isPrivateAddr(ip) {
		r.config.metrics.RecordSecurityEvent(securityEventPrivateAddress)
		return false
	}

	return true
}
