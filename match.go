package unprotect

import (
	"encoding/binary"
	"net/netip"
	"strconv"
	"strings"
)

const ipv4Bits = 32

// ParseRange decodes an allow-list entry into an IPv4 address and prefix
// length. An entry without "/" is a single host (/32).
//
// The returned prefix is not masked; use Masked for the network address.
// IPv6 entries fail with ErrUnsupportedFamily, anything else that cannot be
// evaluated fails with ErrMalformedRangeEntry.
func ParseRange(entry string) (netip.Prefix, error) {
	addrPart, bitsPart, found := strings.Cut(entry, "/")
	if !found {
		bitsPart = strconv.Itoa(ipv4Bits)
	}

	ip := parseEntryAddr(addrPart)
	if !ip.IsValid() {
		return netip.Prefix{}, &EntryError{Entry: entry, Reason: "not an IP address literal", Err: ErrMalformedRangeEntry}
	}
	if !ip.Is4() {
		return netip.Prefix{}, &EntryError{Entry: entry, Reason: "IPv6 entry", Err: ErrUnsupportedFamily}
	}

	if reason := checkPrefixSuffix(bitsPart); reason != "" {
		return netip.Prefix{}, &EntryError{Entry: entry, Reason: reason, Err: ErrMalformedRangeEntry}
	}
	bits, err := strconv.Atoi(bitsPart)
	if err != nil || bits > ipv4Bits {
		return netip.Prefix{}, &EntryError{Entry: entry, Reason: "prefix length out of range", Err: ErrMalformedRangeEntry}
	}

	return netip.PrefixFrom(ip, bits), nil
}

// InRange reports whether the IPv4 address lies within rangeEntry.
//
// Matching is a bitmask comparison on the 32-bit address values:
//
//	wildcard = 2^(32-n) - 1
//	netmask  = ^wildcard
//	match    = address&netmask == range&netmask
//
// "/0" matches every IPv4 address. Malformed entries, IPv6 on either side and
// an empty address never match.
func InRange(address, rangeEntry string) bool {
	ip := parseToken(address)
	if !ip.Is4() {
		return false
	}

	prefix, err := ParseRange(rangeEntry)
	if err != nil {
		return false
	}

	return inPrefix(ip, prefix)
}

func inPrefix(ip netip.Addr, prefix netip.Prefix) bool {
	mask := netmask(prefix.Bits())
	return ipv4Uint32(ip)&mask == ipv4Uint32(prefix.Addr())&mask
}

func netmask(bits int) uint32 {
	wildcard := uint32(uint64(1)<<(ipv4Bits-bits) - 1)
	return ^wildcard
}

func ipv4Uint32(ip netip.Addr) uint32 {
	b := ip.As4()
	return binary.BigEndian.Uint32(b[:])
}

// AnyMatch reports whether address is within any of the entries. Entries are
// checked in order and the first match wins.
func AnyMatch(address string, entries []string) bool {
	_, ok := MatchEntry(address, entries)
	return ok
}

// MatchEntry returns the first entry that contains address.
func MatchEntry(address string, entries []string) (string, bool) {
	ip := parseToken(address)
	if !ip.Is4() {
		return "", false
	}

	for _, entry := range entries {
		prefix, err := ParseRange(entry)
		if err != nil {
			continue
		}
		if inPrefix(ip, prefix) {
			return entry, true
		}
	}
	return "", false
}
