package profiler

import "fmt"

// FHIRVersion represents a FHIR specification release.
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

// Number returns the full version number used in StructureDefinition.fhirVersion.
func (v FHIRVersion) Number() string {
	return versionConfigs[v].number
}

// CorePackage returns the npm package name and version of the core specification.
func (v FHIRVersion) CorePackage() (name, version string) {
	cfg := versionConfigs[v]
	return cfg.corePackage, cfg.number
}

type versionConfig struct {
	number      string
	corePackage string
}

var versionConfigs = map[FHIRVersion]versionConfig{
	R4:  {number: "4.0.1", corePackage: "hl7.fhir.r4.core"},
	R4B: {number: "4.3.0", corePackage: "hl7.fhir.r4b.core"},
	R5:  {number: "5.0.0", corePackage: "hl7.fhir.r5.core"},
}

// ParseVersion accepts release names ("R4") and version numbers ("4.0.1", "4.0").
func ParseVersion(s string) (FHIRVersion, error) {
	switch s {
	case "R4", "r4", "4.0", "4.0.0", "4.0.1":
		return R4, nil
	case "R4B", "r4b", "4.3", "4.3.0":
		return R4B, nil
	case "R5", "r5", "5.0", "5.0.0":
		return R5, nil
	default:
		return "", fmt.Errorf("unsupported FHIR version: %q", s)
	}
}
