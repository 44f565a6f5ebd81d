package unprotect

import (
	"errors"
	"fmt"
	"net/netip"
	"testing"
)

func TestInRange(t *testing.T) {
	tests := []struct {
		address string
		entry   string
		want    bool
	}{
		{address: "192.168.1.5", entry: "192.168.1.0/24", want: true},
		{address: "192.168.2.5", entry: "192.168.1.0/24", want: false},
		{address: "192.168.1.5", entry: "192.168.1.5", want: true},
		{address: "192.168.1.6", entry: "192.168.1.5", want: false},
		{address: "192.168.1.5", entry: "192.168.1.99/24", want: true},
		{address: "10.20.30.40", entry: "10.0.0.0/8", want: true},
		{address: "11.0.0.1", entry: "10.0.0.0/8", want: false},
		{address: "172.31.255.255", entry: "172.16.0.0/12", want: true},
		{address: "172.32.0.0", entry: "172.16.0.0/12", want: false},
		{address: "8.8.8.8", entry: "0.0.0.0/0", want: true},
		{address: "255.255.255.255", entry: "1.2.3.4/0", want: true},
		{address: "1.2.3.5", entry: "1.2.3.4/31", want: true},
		{address: "1.2.3.6", entry: "1.2.3.4/31", want: false},
		{address: "128.0.0.1", entry: "128.0.0.0/1", want: true},
		{address: "127.255.255.255", entry: "128.0.0.0/1", want: false},
		{address: "1.2.3.4", entry: "1.2.3.4/032", want: true},

		{address: "1.2.3.4", entry: "1.2.3.4/33", want: false},
		{address: "1.2.3.4", entry: "1.2.3.4/999", want: false},
		{address: "1.2.3.4", entry: "1.2.3.4/abc", want: false},
		{address: "1.2.3.4", entry: "1.2.3.4/", want: false},
		{address: "1.2.3.4", entry: "garbage", want: false},
		{address: "1.2.3.4", entry: "", want: false},
		{address: "1.2.3.4", entry: "::/0", want: false},
		{address: "1.2.3.4", entry: "::ffff:1.2.3.4", want: false},
		{address: "2001:db8::1", entry: "0.0.0.0/0", want: false},
		{address: "2001:db8::1", entry: "2001:db8::/32", want: false},
		{address: "", entry: "0.0.0.0/0", want: false},
		{address: "not-an-ip", entry: "0.0.0.0/0", want: false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s in %s", tt.address, tt.entry), func(t *testing.T) {
			if got := InRange(tt.address, tt.entry); got != tt.want {
				t.Fatalf("InRange(%q, %q) = %v, want %v", tt.address, tt.entry, got, tt.want)
			}
		})
	}
}

func TestInRange_HostAndUniverseProperties(t *testing.T) {
	addresses := []string{
		"0.0.0.0", "0.0.0.1", "1.2.3.4", "10.0.0.1", "127.0.0.1",
		"128.0.0.0", "192.168.255.255", "203.0.113.7", "255.255.255.254", "255.255.255.255",
	}

	for _, a := range addresses {
		if !InRange(a, a+"/32") {
			t.Errorf("InRange(%q, %q) = false, want true", a, a+"/32")
		}
		if !InRange(a, a) {
			t.Errorf("InRange(%q, %q) = false, want true", a, a)
		}
		if !InRange(a, "0.0.0.0/0") {
			t.Errorf("InRange(%q, 0.0.0.0/0) = false, want true", a)
		}
	}
}

func TestNetmask(t *testing.T) {
	tests := []struct {
		bits int
		want uint32
	}{
		{bits: 0, want: 0x00000000},
		{bits: 1, want: 0x80000000},
		{bits: 8, want: 0xFF000000},
		{bits: 24, want: 0xFFFFFF00},
		{bits: 31, want: 0xFFFFFFFE},
		{bits: 32, want: 0xFFFFFFFF},
	}

	for _, tt := range tests {
		if got := netmask(tt.bits); got != tt.want {
			t.Errorf("netmask(%d) = %#08x, want %#08x", tt.bits, got, tt.want)
		}
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		entry   string
		want    netip.Prefix
		wantErr error
	}{
		{entry: "1.2.3.4", want: netip.MustParsePrefix("1.2.3.4/32")},
		{entry: "1.2.3.4/24", want: netip.PrefixFrom(netip.MustParseAddr("1.2.3.4"), 24)},
		{entry: "0.0.0.0/0", want: netip.MustParsePrefix("0.0.0.0/0")},
		{entry: `1.2.3.4\`, want: netip.MustParsePrefix("1.2.3.4/32")},
		{entry: "2001:db8::/32", wantErr: ErrUnsupportedFamily},
		{entry: "::1", wantErr: ErrUnsupportedFamily},
		{entry: "1.2.3.4/33", wantErr: ErrMalformedRangeEntry},
		{entry: "1.2.3.4/x", wantErr: ErrMalformedRangeEntry},
		{entry: "1.2.3.4/24/8", wantErr: ErrMalformedRangeEntry},
		{entry: "bogus", wantErr: ErrMalformedRangeEntry},
	}

	for _, tt := range tests {
		t.Run(tt.entry, func(t *testing.T) {
			got, err := ParseRange(tt.entry)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseRange(%q) error = %v, want %v", tt.entry, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRange(%q) error = %v", tt.entry, err)
			}
			if got != tt.want {
				t.Fatalf("ParseRange(%q) = %v, want %v", tt.entry, got, tt.want)
			}
		})
	}
}

func TestMatchEntry(t *testing.T) {
	entries := []string{"bogus", "10.0.0.0/8", "203.0.113.0/24", "203.0.113.7"}

	got, ok := MatchEntry("203.0.113.7", entries)
	if !ok || got != "203.0.113.0/24" {
		t.Fatalf("MatchEntry() = (%q, %v), want (%q, true)", got, ok, "203.0.113.0/24")
	}

	if _, ok := MatchEntry("198.51.100.1", entries); ok {
		t.Fatal("MatchEntry() matched an address outside every range")
	}

	if !AnyMatch("10.9.8.7", entries) {
		t.Fatal("AnyMatch() = false, want true")
	}
	if AnyMatch("10.9.8.7", nil) {
		t.Fatal("AnyMatch() on empty list = true, want false")
	}
}
