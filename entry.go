package unprotect

import (
	"net/netip"
	"strings"
)

// maxPrefixDigits bounds the prefix-length suffix of an entry. Values up to
// 999 are accepted syntactically; anything above 32 never matches.
const maxPrefixDigits = 3

// IsValidEntry reports whether entry is acceptable for the allow-list.
func IsValidEntry(entry string) bool {
	return ValidateEntry(entry) == nil
}

// ValidateEntry checks the syntax of a single allow-list entry.
//
// An entry is an IPv4 or IPv6 literal, optionally followed by "/" and a
// decimal prefix length of at most three digits. Backslash escapes in the
// address part are removed before parsing. The returned error wraps
// ErrInvalidAddressSyntax.
func ValidateEntry(entry string) error {
	addrPart := entry
	if before, suffix, found := strings.Cut(entry, "/"); found {
		if reason := checkPrefixSuffix(suffix); reason != "" {
			return &EntryError{Entry: entry, Reason: reason, Err: ErrInvalidAddressSyntax}
		}
		addrPart = before
	}

	if addrPart == "" {
		return &EntryError{Entry: entry, Reason: "empty address", Err: ErrInvalidAddressSyntax}
	}

	if !parseEntryAddr(addrPart).IsValid() {
		return &EntryError{Entry: entry, Reason: "not an IP address literal", Err: ErrInvalidAddressSyntax}
	}

	return nil
}

// checkPrefixSuffix returns a non-empty reason when suffix is not a usable
// prefix length.
func checkPrefixSuffix(suffix string) string {
	switch {
	case suffix == "":
		return "empty prefix length"
	case len(suffix) > maxPrefixDigits:
		return "prefix length too long"
	case !isDigits(suffix):
		return "prefix length is not numeric"
	}
	return ""
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// parseEntryAddr parses the address part of an entry. Zoned addresses are
// rejected.
func parseEntryAddr(s string) netip.Addr {
	ip, err := netip.ParseAddr(stripSlashes(s))
	if err != nil || ip.Zone() != "" {
		return netip.Addr{}
	}
	return ip
}

// stripSlashes removes backslash escapes: "\x" becomes "x" and "\\" becomes
// "\". A trailing lone backslash is dropped.
func stripSlashes(s string) string {
	if strings.IndexByte(s, '\\') < 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		b.WriteByte(c)
	}
	return b.String()
}
