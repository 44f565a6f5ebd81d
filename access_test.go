package unprotect

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTrustFlag(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{value: "yes", want: true},
		{value: "no", want: false},
		{value: "", want: false},
		{value: "Yes", want: false},
		{value: "YES", want: false},
		{value: " yes", want: false},
		{value: "true", want: false},
		{value: "1", want: false},
	}

	for _, tt := range tests {
		if got := ParseTrustFlag(tt.value); got != tt.want {
			t.Errorf("ParseTrustFlag(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}

	if FormatTrustFlag(true) != "yes" || FormatTrustFlag(false) != "" {
		t.Fatalf("FormatTrustFlag() = (%q, %q), want (\"yes\", \"\")", FormatTrustFlag(true), FormatTrustFlag(false))
	}
}

func TestOptions_JSONFieldNames(t *testing.T) {
	var opts Options
	if err := json.Unmarshal([]byte(`{"give_access":"yes","ip_addresses":"1.2.3.4\n5.6.7.8"}`), &opts); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}

	want := Options{GiveAccess: "yes", IPAddresses: "1.2.3.4\n5.6.7.8"}
	if diff := cmp.Diff(want, opts); diff != "" {
		t.Fatalf("Options mismatch (-want +got):\n%s", diff)
	}
}

func TestOptions_Configuration(t *testing.T) {
	cfg := Options{GiveAccess: "yes", IPAddresses: " 1.2.3.4 \n\nnot valid\n2001:db8::1"}.Configuration()

	if !cfg.TrustLoggedIn {
		t.Fatal("TrustLoggedIn = false, want true")
	}
	if diff := cmp.Diff(AllowList{"1.2.3.4", "not valid", "2001:db8::1"}, cfg.AllowList); diff != "" {
		t.Fatalf("AllowList mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"not valid", "2001:db8::1"}, cfg.Unmatchable()); diff != "" {
		t.Fatalf("Unmatchable() mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateOptions(t *testing.T) {
	cfg, err := ValidateOptions(Options{GiveAccess: "no", IPAddresses: "203.0.113.0/24\n::1"})
	if err != nil {
		t.Fatalf("ValidateOptions() error = %v", err)
	}
	if cfg.TrustLoggedIn {
		t.Fatal("TrustLoggedIn = true, want false")
	}
	if diff := cmp.Diff(AllowList{"203.0.113.0/24", "::1"}, cfg.AllowList); diff != "" {
		t.Fatalf("AllowList mismatch (-want +got):\n%s", diff)
	}

	_, err = ValidateOptions(Options{IPAddresses: "203.0.113.0/24\n1.2.3.4/abc"})
	var invalid *InvalidEntryError
	if !errors.As(err, &invalid) {
		t.Fatalf("ValidateOptions() error = %v, want *InvalidEntryError", err)
	}
	if invalid.Line != 2 || invalid.Value != "1.2.3.4/abc" {
		t.Fatalf("InvalidEntryError = %+v", invalid)
	}
}

func TestAccessConfiguration_Options(t *testing.T) {
	cfg := NewAccessConfiguration(true, AllowList{"1.2.3.4", "10.0.0.0/8"})

	want := Options{GiveAccess: "yes", IPAddresses: "1.2.3.4\n10.0.0.0/8"}
	if diff := cmp.Diff(want, cfg.Options()); diff != "" {
		t.Fatalf("Options() mismatch (-want +got):\n%s", diff)
	}
}

func TestAccessConfiguration_UnmatchableWithoutCompile(t *testing.T) {
	cfg := AccessConfiguration{AllowList: AllowList{"1.2.3.4", "1.2.3.4/40", "::1"}}

	if diff := cmp.Diff([]string{"1.2.3.4/40", "::1"}, cfg.Unmatchable()); diff != "" {
		t.Fatalf("Unmatchable() mismatch (-want +got):\n%s", diff)
	}
}
