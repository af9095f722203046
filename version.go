package fsh

// Version is the version of this FSH front-end.
const Version = "0.3.0"

// FHIRVersion represents a FHIR specification version targeted by the
// imported definitions.
type FHIRVersion string

// Supported FHIR versions.
const (
	// R4 is FHIR Release 4 (4.0.1)
	R4 FHIRVersion = "R4"
	// R4B is FHIR Release 4B (4.3.0)
	R4B FHIRVersion = "R4B"
	// R5 is FHIR Release 5 (5.0.0)
	R5 FHIRVersion = "R5"
)

// String returns the version string.
func (v FHIRVersion) String() string {
	return string(v)
}

// IsValid returns true if this is a supported FHIR version.
func (v FHIRVersion) IsValid() bool {
	_, ok := versionConfigs[v]
	return ok
}

// CorePackage returns the name and version of the core package a
// downstream exporter resolves definitions against.
func (v FHIRVersion) CorePackage() (name, version string, ok bool) {
	cfg, ok := versionConfigs[v]
	return cfg.CorePackageName, cfg.CorePackageVersion, ok
}

// FHIRVersionString returns the release number, e.g. "4.0.1".
func (v FHIRVersion) FHIRVersionString() string {
	return versionConfigs[v].FHIRVersionString
}

type versionConfig struct {
	CorePackageName    string
	CorePackageVersion string
	FHIRVersionString  string
}

var versionConfigs = map[FHIRVersion]versionConfig{
	R4: {
		CorePackageName:    "hl7.fhir.r4.core",
		CorePackageVersion: "4.0.1",
		FHIRVersionString:  "4.0.1",
	},
	R4B: {
		CorePackageName:    "hl7.fhir.r4b.core",
		CorePackageVersion: "4.3.0",
		FHIRVersionString:  "4.3.0",
	},
	R5: {
		CorePackageName:    "hl7.fhir.r5.core",
		CorePackageVersion: "5.0.0",
		FHIRVersionString:  "5.0.0",
	},
}

// ParseFHIRVersion accepts "R4", "4.0.1" and the other supported names.
func ParseFHIRVersion(s string) (FHIRVersion, bool) {
	if v := FHIRVersion(s); v.IsValid() {
		return v, true
	}
	for v, cfg := range versionConfigs {
		if cfg.FHIRVersionString == s {
			return v, true
		}
	}
	return "", false
}
