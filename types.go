package unprotect

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

var (
	// ErrInvalidAddressSyntax is returned when an allow-list entry is neither a
	// valid address literal nor an address with a numeric prefix length.
	ErrInvalidAddressSyntax = errors.New("invalid IP address")

	// ErrMalformedRangeEntry is returned when an allow-list entry cannot be
	// evaluated as an IPv4 range at match time.
	ErrMalformedRangeEntry = errors.New("malformed range entry")

	// ErrUnresolvedClientAddress is available to callers that want an error for
	// the "unknown client address" sentinel. Resolver itself never returns it.
	ErrUnresolvedClientAddress = errors.New("client address could not be determined")

	// ErrUnsupportedFamily is returned by ParseRange for IPv6 entries, which
	// pass validation but are never range-matched.
	ErrUnsupportedFamily = errors.New("IPv6 ranges are not matched")

	ErrInvalidForwardedHeader = errors.New("invalid Forwarded header")
)

// InvalidEntryError reports the first allow-list line that failed validation.
//
// Line is the 1-based line number in the raw multi-line value.
type InvalidEntryError struct {
	Value string
	Line  int
	Err   error
}

func (e *InvalidEntryError) Error() string {
	return fmt.Sprintf("%s is not a valid IP address (line %d): %v", e.Value, e.Line, e.Err)
}

func (e *InvalidEntryError) Unwrap() error {
	return e.Err
}

// EntryError describes why a single entry was rejected.
type EntryError struct {
	Entry  string
	Reason string
	Err    error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("%q: %v: %s", e.Entry, e.Err, e.Reason)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

// Resolution is the outcome of client address resolution.
//
// The zero value means no header produced a usable public address.
type Resolution struct {
	Addr netip.Addr

	// Source is the normalized name of the header (or remote_addr) the
	// address came from.
	Source string
}

// Valid reports whether an address was resolved.
func (r Resolution) Valid() bool {
	return r.Addr.IsValid()
}

// String returns the canonical textual form of the address, or "" when no
// address was resolved.
func (r Resolution) String() string {
	if !r.Addr.IsValid() {
		return ""
	}
	return r.Addr.String()
}

// ParsePrefixes parses CIDR strings for use with AllowReservedPrefixes.
func ParsePrefixes(cidrs ...string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, cidr := range cidrs {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q: %w", cidr, err)
		}
		prefixes = append(prefixes, prefix)
	}
	return prefixes, nil
}

// NormalizeSourceName maps a header name to the label used in metrics, logs
// and Resolution.Source ("X-Forwarded-For" -> "x_forwarded_for").
func NormalizeSourceName(headerName string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(headerName), "-", "_"))
}
