package unprotect

import (
	"errors"
	"fmt"
	"net/netip"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplitAllowList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want AllowList
	}{
		{name: "empty", raw: "", want: nil},
		{name: "blank lines only", raw: "\n \n\t\n", want: AllowList{}},
		{name: "single", raw: "1.2.3.4", want: AllowList{"1.2.3.4"}},
		{
			name: "trims and keeps order",
			raw:  "  203.0.113.0/24 \r\n\n198.51.100.9\r\nbogus\n",
			want: AllowList{"203.0.113.0/24", "198.51.100.9", "bogus"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitAllowList(tt.raw)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("SplitAllowList() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseAllowList(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		want      AllowList
		wantValue string
		wantLine  int
	}{
		{name: "empty", raw: ""},
		{
			name: "valid mixed families",
			raw:  "203.0.113.0/24\n\n2001:db8::/32\n 198.51.100.9 ",
			want: AllowList{"203.0.113.0/24", "2001:db8::/32", "198.51.100.9"},
		},
		{
			name:      "first invalid line is reported",
			raw:       "1.2.3.4\n\nnot-an-ip\n1.2.3.4/abc",
			wantValue: "not-an-ip",
			wantLine:  3,
		},
		{
			name:      "suffix too long",
			raw:       "1.2.3.4/12345",
			wantValue: "1.2.3.4/12345",
			wantLine:  1,
		},
		{
			name:      "CRLF line endings keep line numbers",
			raw:       "1.2.3.4\r\n5.6.7.8\r\nbad entry\r\n",
			wantValue: "bad entry",
			wantLine:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAllowList(tt.raw)
			if tt.wantLine == 0 {
				if err != nil {
					t.Fatalf("ParseAllowList() error = %v", err)
				}
				if diff := cmp.Diff(tt.want, got); diff != "" {
					t.Fatalf("ParseAllowList() mismatch (-want +got):\n%s", diff)
				}
				return
			}

			var invalid *InvalidEntryError
			if !errors.As(err, &invalid) {
				t.Fatalf("ParseAllowList() error = %v, want *InvalidEntryError", err)
			}
			if invalid.Value != tt.wantValue || invalid.Line != tt.wantLine {
				t.Fatalf("InvalidEntryError = (%q, line %d), want (%q, line %d)", invalid.Value, invalid.Line, tt.wantValue, tt.wantLine)
			}
			if !errors.Is(err, ErrInvalidAddressSyntax) {
				t.Fatalf("ParseAllowList() error = %v, want ErrInvalidAddressSyntax in chain", err)
			}
			if got != nil {
				t.Fatalf("ParseAllowList() list = %v, want nil on error", got)
			}
		})
	}
}

func TestAllowList_StringAndIPv6Entries(t *testing.T) {
	list := AllowList{"1.2.3.4", "2001:db8::/32", "::1", "10.0.0.0/8"}

	if got, want := list.String(), "1.2.3.4\n2001:db8::/32\n::1\n10.0.0.0/8"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
	if diff := cmp.Diff([]string{"2001:db8::/32", "::1"}, list.IPv6Entries()); diff != "" {
		t.Fatalf("IPv6Entries() mismatch (-want +got):\n%s", diff)
	}
}

func TestCompiledAllowList_MatchesLinearScan(t *testing.T) {
	list := AllowList{
		"bogus",
		"203.0.113.0/24",
		"203.0.113.7",
		"203.0.113.9/24",
		"10.0.0.0/8",
		"10.1.0.0/16",
		"2001:db8::/32",
		"0.0.0.0/33",
		"192.0.2.1",
	}
	compiled := compileAllowList(list)

	if diff := cmp.Diff([]string{"bogus", "2001:db8::/32", "0.0.0.0/33"}, compiled.skipped); diff != "" {
		t.Fatalf("skipped mismatch (-want +got):\n%s", diff)
	}

	candidates := []string{
		"203.0.113.7", "203.0.113.200", "10.1.2.3", "10.200.0.1",
		"192.0.2.1", "192.0.2.2", "8.8.8.8", "0.0.0.0", "255.255.255.255",
	}
	for _, c := range candidates {
		wantEntry, wantOK := MatchEntry(c, list)
		gotEntry, gotOK := compiled.match(netip.MustParseAddr(c))
		if gotEntry != wantEntry || gotOK != wantOK {
			t.Errorf("match(%s) = (%q, %v), want (%q, %v)", c, gotEntry, gotOK, wantEntry, wantOK)
		}
	}
}

func TestCompiledAllowList_Universe(t *testing.T) {
	compiled := compileAllowList(AllowList{"0.0.0.0/0"})

	for i := 0; i < 256; i += 17 {
		addr := netip.MustParseAddr(fmt.Sprintf("%d.%d.%d.%d", i, 255-i, i/2, 1))
		if entry, ok := compiled.match(addr); !ok || entry != "0.0.0.0/0" {
			t.Fatalf("match(%s) = (%q, %v), want universe match", addr, entry, ok)
		}
	}

	if _, ok := compiled.match(netip.MustParseAddr("2001:db8::1")); ok {
		t.Fatal("IPv6 address matched an IPv4 universe entry")
	}
}

func TestCompiledAllowList_NilAndEmpty(t *testing.T) {
	var nilList *compiledAllowList
	if _, ok := nilList.match(netip.MustParseAddr("1.1.1.1")); ok {
		t.Fatal("nil compiled list matched")
	}
	if _, ok := compileAllowList(nil).match(netip.MustParseAddr("1.1.1.1")); ok {
		t.Fatal("empty compiled list matched")
	}
}
