package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/goccy/go-json"

	"github.com/gofhir/profiler/pkg/bridge"
	"github.com/gofhir/profiler/pkg/loader"
)

const (
	domainResourceJSON = `{"resourceType":"StructureDefinition","url":"http://hl7.org/fhir/StructureDefinition/DomainResource","name":"DomainResource","kind":"resource","abstract":true,"type":"DomainResource","fhirVersion":"4.0.1"}`
	patientJSON        = `{"resourceType":"StructureDefinition","url":"http://hl7.org/fhir/StructureDefinition/Patient","version":"4.0.1","name":"Patient","kind":"resource","abstract":false,"type":"Patient","baseDefinition":"http://hl7.org/fhir/StructureDefinition/DomainResource","fhirVersion":"4.0.1"}`
	profileJSON        = `{"resourceType":"StructureDefinition","url":"http://example.org/sd/p","version":"1.0.0","name":"P","kind":"resource","type":"Patient","baseDefinition":"http://hl7.org/fhir/StructureDefinition/Patient"}`
	profileV2JSON      = `{"resourceType":"StructureDefinition","url":"http://example.org/sd/p","version":"2.0.0","name":"P","kind":"resource","type":"Patient","baseDefinition":"http://hl7.org/fhir/StructureDefinition/Patient"}`
)

func corePackage() *loader.Package {
	return &loader.Package{
		Name:    "hl7.fhir.r4.core",
		Version: "4.0.1",
		Definitions: map[string]json.RawMessage{
			"http://hl7.org/fhir/StructureDefinition/DomainResource": json.RawMessage(domainResourceJSON),
			"http://hl7.org/fhir/StructureDefinition/Patient":        json.RawMessage(patientJSON),
		},
	}
}

func loaded(t *testing.T) *Registry {
	t.Helper()
	r := New()
	if err := r.LoadFromPackages(corePackage()); err != nil {
		t.Fatalf("LoadFromPackages() error: %v", err)
	}
	if _, err := r.Add([]byte(profileJSON), ""); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	return r
}

func TestNewRegistry(t *testing.T) {
	if n := New().Count(); n != 0 {
		t.Errorf("Count() = %d, want 0", n)
	}
}

func TestLoadFromPackages(t *testing.T) {
	r := loaded(t)
	if n := r.Count(); n != 3 {
		t.Errorf("Count() = %d, want 3", n)
	}

	def := r.GetByURL("http://hl7.org/fhir/StructureDefinition/Patient")
	if def == nil {
		t.Fatal("Patient not indexed")
	}
	if def.Kind != "resource" || def.Type != "Patient" || def.Abstract {
		t.Errorf("Patient = %+v", def)
	}
	if def.FHIRVersion != "4.0.1" || def.Version != "4.0.1" {
		t.Errorf("Patient versions = %q / %q", def.FHIRVersion, def.Version)
	}
	if def.Package != "hl7.fhir.r4.core#4.0.1" {
		t.Errorf("Package = %q", def.Package)
	}
	if !r.GetByURL("http://hl7.org/fhir/StructureDefinition/DomainResource").Abstract {
		t.Error("DomainResource should be abstract")
	}
}

func TestGetByType(t *testing.T) {
	r := loaded(t)
	if def := r.GetByType("Patient"); def == nil || def.URL != "http://hl7.org/fhir/StructureDefinition/Patient" {
		t.Errorf("GetByType(Patient) = %+v, want the core definition", def)
	}
	if def := r.GetByType("Observation"); def != nil {
		t.Errorf("GetByType(Observation) = %+v, want nil", def)
	}
}

func TestGetVersions(t *testing.T) {
	r := loaded(t)
	if _, err := r.Add([]byte(profileV2JSON), ""); err != nil {
		t.Fatal(err)
	}
	// Duplicate URL and version is ignored.
	if _, err := r.Add([]byte(profileJSON), ""); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		canonical, version, want string
	}{
		{"http://example.org/sd/p", "", "1.0.0"},
		{"http://example.org/sd/p", "2.0.0", "2.0.0"},
		{"http://example.org/sd/p|2.0.0", "", "2.0.0"},
		{"http://example.org/sd/p", "3.0.0", ""},
		{"http://hl7.org/fhir/StructureDefinition/DomainResource", "4.0.1", "fhir"},
	}
	for _, tt := range tests {
		t.Run(tt.canonical+"@"+tt.version, func(t *testing.T) {
			def := r.Get(tt.canonical, tt.version)
			switch {
			case tt.want == "" && def != nil:
				t.Errorf("Get() = %+v, want nil", def)
			case tt.want == "fhir" && (def == nil || def.FHIRVersion != tt.version):
				t.Errorf("Get() = %+v, want match on fhirVersion", def)
			case tt.want != "" && tt.want != "fhir" && (def == nil || def.Version != tt.want):
				t.Errorf("Get() = %+v, want version %s", def, tt.want)
			}
		})
	}
	if n := r.Count(); n != 4 {
		t.Errorf("Count() = %d, want 4", n)
	}
}

func TestAddRejects(t *testing.T) {
	r := New()
	tests := map[string]string{
		"not json":    `{`,
		"value set":   `{"resourceType":"ValueSet","url":"http://x"}`,
		"missing url": `{"resourceType":"StructureDefinition","name":"X"}`,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := r.Add([]byte(data), ""); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestResolveBase(t *testing.T) {
	r := loaded(t)
	ctx := context.Background()

	raw, err := r.ResolveBase(ctx, "http://hl7.org/fhir/StructureDefinition/Patient", "")
	if err != nil {
		t.Fatalf("ResolveBase() error: %v", err)
	}
	if string(raw) != patientJSON {
		t.Errorf("ResolveBase() returned %s", raw)
	}

	if _, err := r.ResolveBase(ctx, "http://example.org/missing", "1"); !errors.Is(err, bridge.ErrNotFound) {
		t.Errorf("missing url error = %v, want ErrNotFound", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := r.ResolveBase(cancelled, "http://hl7.org/fhir/StructureDefinition/Patient", ""); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled error = %v, want context.Canceled", err)
	}
}

func TestChain(t *testing.T) {
	r := loaded(t)
	chain := r.Chain("http://example.org/sd/p")
	if len(chain) != 2 {
		t.Fatalf("len(Chain) = %d, want 2", len(chain))
	}
	if chain[0].Type != "Patient" || chain[1].Type != "DomainResource" {
		t.Errorf("Chain = %s, %s", chain[0].URL, chain[1].URL)
	}
	if got := r.AllURLs(); len(got) != 3 || got[0] != "http://example.org/sd/p" {
		t.Errorf("AllURLs() = %v", got)
	}
}
