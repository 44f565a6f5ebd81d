package unprotect

import (
	"errors"
	"net"
	"net/netip"
	"strings"

	"github.com/yl2chen/cidranger"
)

// AllowList is an ordered list of allow-list entries, one per stored line.
type AllowList []string

// SplitAllowList splits a stored multi-line value into entries. Lines are
// trimmed and blank lines skipped; entries are not validated.
func SplitAllowList(raw string) AllowList {
	if raw == "" {
		return nil
	}

	lines := strings.Split(raw, "\n")
	list := make(AllowList, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		list = append(list, line)
	}
	return list
}

// ParseAllowList splits raw like SplitAllowList and validates every entry.
// The first invalid line is reported as an *InvalidEntryError.
func ParseAllowList(raw string) (AllowList, error) {
	if raw == "" {
		return nil, nil
	}

	lines := strings.Split(raw, "\n")
	list := make(AllowList, 0, len(lines))
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := ValidateEntry(line); err != nil {
			return nil, &InvalidEntryError{Value: line, Line: i + 1, Err: err}
		}
		list = append(list, line)
	}
	return list, nil
}

// String joins the entries back into the stored multi-line form.
func (l AllowList) String() string {
	return strings.Join(l, "\n")
}

// IPv6Entries returns the valid IPv6 entries, which are accepted but never
// match a client.
func (l AllowList) IPv6Entries() []string {
	var out []string
	for _, entry := range l {
		if _, err := ParseRange(entry); errors.Is(err, ErrUnsupportedFamily) {
			out = append(out, entry)
		}
	}
	return out
}

// rangeEntry is a compiled allow-list entry stored in the trie.
type rangeEntry struct {
	network net.IPNet
	index   int
	raw     string
}

func (e *rangeEntry) Network() net.IPNet {
	return e.network
}

// compiledAllowList is the prefix trie form of an AllowList. Lookups return
// the lowest-index entry that contains the address, the same entry
// MatchEntry would return.
type compiledAllowList struct {
	ranger cidranger.Ranger
	size   int

	// skipped holds entries that cannot be range-matched.
	skipped []string
}

func compileAllowList(list AllowList) *compiledAllowList {
	c := &compiledAllowList{ranger: cidranger.NewPCTrieRanger()}
	seen := make(map[netip.Prefix]struct{}, len(list))

	for i, entry := range list {
		prefix, err := ParseRange(entry)
		if err != nil {
			c.skipped = append(c.skipped, entry)
			continue
		}

		masked := prefix.Masked()
		if _, dup := seen[masked]; dup {
			continue
		}
		seen[masked] = struct{}{}

		network := net.IPNet{
			IP:   net.IP(masked.Addr().AsSlice()),
			Mask: net.CIDRMask(masked.Bits(), ipv4Bits),
		}
		if err := c.ranger.Insert(&rangeEntry{network: network, index: i, raw: entry}); err != nil {
			c.skipped = append(c.skipped, entry)
			continue
		}
		c.size++
	}

	return c
}

// match returns the first entry containing ip.
func (c *compiledAllowList) match(ip netip.Addr) (string, bool) {
	if c == nil || c.size == 0 || !ip.Is4() {
		return "", false
	}

	entries, err := c.ranger.ContainingNetworks(net.IP(ip.AsSlice()))
	if err != nil || len(entries) == 0 {
		return "", false
	}

	best := -1
	raw := ""
	for _, e := range entries {
		re, ok := e.(*rangeEntry)
		if !ok {
			continue
		}
		if best < 0 || re.index < best {
			best = re.index
			raw = re.raw
		}
	}
	return raw, best >= 0
}
