package exedata

import (
	"strings"
	"testing"
)

func TestEncodeKnownValue(t *testing.T) {
	// "P" = 0x50 = 1010000, "a" = 0x61 = 1100001
	got := Encode("")
	if !strings.HasPrefix(got, "1010000"+"1100001") {
		t.Errorf("Encode(\"\") = %q, want prefix of PathfinderExe: bits", got)
	}

	tagOnly := Encode("")
	withName := Encode("A")
	if withName != tagOnly+"1000001" {
		t.Errorf("Encode(\"A\") = %q, want %q", withName, tagOnly+"1000001")
	}
}

func TestEncodeDeterministic(t *testing.T) {
	names := []string{"ExampleMod.TestExe", "tool.scan", "Mod.Exes.Port22Cracker"}
	for _, name := range names {
		a, b := Encode(name), Encode(name)
		if a != b {
			t.Errorf("Encode(%q) not deterministic", name)
		}
		if !Plausible(a) {
			t.Errorf("Encode(%q) = %q uses characters outside {0,1}", name, a)
		}
	}
}

func TestEncodeDistinct(t *testing.T) {
	seen := map[string]string{}
	for _, name := range []string{"a.B", "a.C", "b.B", "tool.scan", "tool.scan2"} {
		enc := Encode(name)
		if prev, ok := seen[enc]; ok {
			t.Errorf("Encode(%q) collides with Encode(%q)", name, prev)
		}
		seen[enc] = name
	}
}

func TestPlausible(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"0101", true},
		{"01a1", false},
		{"#A#", false},
	}
	for _, tt := range tests {
		if got := Plausible(tt.in); got != tt.want {
			t.Errorf("Plausible(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
