package fsh

import (
	"testing"
)

func TestFHIRVersion_IsValid(t *testing.T) {
	tests := []struct {
		version FHIRVersion
		want    bool
	}{
		{R4, true},
		{R4B, true},
		{R5, true},
		{"R3", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := tt.version.IsValid(); got != tt.want {
			t.Errorf("%v.IsValid() = %v; want %v", tt.version, got, tt.want)
		}
	}
}

func TestFHIRVersion_CorePackage(t *testing.T) {
	name, version, ok := R4.CorePackage()
	if !ok || name != "hl7.fhir.r4.core" || version != "4.0.1" {
		t.Errorf("R4.CorePackage() = %q, %q, %v", name, version, ok)
	}
	if _, _, ok := FHIRVersion("R3").CorePackage(); ok {
		t.Error("R3.CorePackage() should not be found")
	}
	if got := R5.FHIRVersionString(); got != "5.0.0" {
		t.Errorf("R5.FHIRVersionString() = %q; want 5.0.0", got)
	}
}

func TestParseFHIRVersion(t *testing.T) {
	tests := []struct {
		in   string
		want FHIRVersion
		ok   bool
	}{
		{"R4", R4, true},
		{"4.3.0", R4B, true},
		{"5.0.0", R5, true},
		{"3.0.2", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseFHIRVersion(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseFHIRVersion(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
