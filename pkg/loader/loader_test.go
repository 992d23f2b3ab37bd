package loader

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

const (
	manifestJSON = `{"name":"example.fhir.core","version":"1.0.0","fhirVersions":["4.0.1"]}`
	patientJSON  = `{"resourceType":"StructureDefinition","url":"http://hl7.org/fhir/StructureDefinition/Patient","name":"Patient","type":"Patient"}`
	valueSetJSON = `{"resourceType":"ValueSet","url":"http://hl7.org/fhir/ValueSet/gender"}`
)

func packageFiles() map[string]string {
	return map[string]string{
		"package/package.json":                    manifestJSON,
		"package/StructureDefinition-Patient.json": patientJSON,
		"package/ValueSet-gender.json":             valueSetJSON,
		"package/.index.json":                      `{}`,
		"package/other/nested.json":                patientJSON,
		"package/broken.json":                      `not json`,
	}
}

func tgz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func cacheDir(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	for name, content := range packageFiles() {
		path := filepath.Join(base, "example.fhir.core#1.0.0", filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return base
}

func checkPackage(t *testing.T, pkg *Package) {
	t.Helper()
	if pkg.Name != "example.fhir.core" || pkg.Version != "1.0.0" {
		t.Errorf("package = %s, want example.fhir.core#1.0.0", pkg.Ref())
	}
	if pkg.FHIRVersion != "4.0.1" {
		t.Errorf("FHIRVersion = %q, want 4.0.1", pkg.FHIRVersion)
	}
	if len(pkg.Definitions) != 1 {
		t.Errorf("len(Definitions) = %d, want 1", len(pkg.Definitions))
	}
	if _, ok := pkg.Definitions["http://hl7.org/fhir/StructureDefinition/Patient"]; !ok {
		t.Error("Patient definition not indexed")
	}
}

func TestParsePackageSpec(t *testing.T) {
	tests := []struct {
		spec string
		want PackageRef
	}{
		{"hl7.fhir.r4.core#4.0.1", PackageRef{Name: "hl7.fhir.r4.core", Version: "4.0.1"}},
		{"hl7.fhir.us.core", PackageRef{Name: "hl7.fhir.us.core"}},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			if got := ParsePackageSpec(tt.spec); got != tt.want {
				t.Errorf("ParsePackageSpec(%q) = %+v, want %+v", tt.spec, got, tt.want)
			}
		})
	}
	if s := (PackageRef{Name: "a", Version: "1"}).String(); s != "a#1" {
		t.Errorf("String() = %q", s)
	}
}

func TestLoad(t *testing.T) {
	l := NewLoader(cacheDir(t))
	pkg, err := l.Load(PackageRef{Name: "example.fhir.core", Version: "1.0.0"})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	checkPackage(t, pkg)
}

func TestLoadMissing(t *testing.T) {
	l := NewLoader(t.TempDir())
	_, err := l.Load(PackageRef{Name: "missing", Version: "0.0.1"})
	if !errors.Is(err, ErrPackageNotFound) {
		t.Errorf("Load() error = %v, want ErrPackageNotFound", err)
	}
}

func TestLoadVersionUnknown(t *testing.T) {
	l := NewLoader(t.TempDir())
	if _, err := l.LoadVersion("99.99.99"); err == nil {
		t.Error("LoadVersion should fail for unknown version")
	}
}

func TestList(t *testing.T) {
	base := cacheDir(t)
	if err := os.Mkdir(filepath.Join(base, "not-a-package"), 0o755); err != nil {
		t.Fatal(err)
	}
	got, err := NewLoader(base).List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(got) != 1 || got[0] != "example.fhir.core#1.0.0" {
		t.Errorf("List() = %v", got)
	}
}

func TestLoadTgz(t *testing.T) {
	path := filepath.Join(t.TempDir(), "package.tgz")
	if err := os.WriteFile(path, tgz(t, packageFiles()), 0o644); err != nil {
		t.Fatal(err)
	}
	pkg, err := NewLoader(t.TempDir()).LoadTgz(path)
	if err != nil {
		t.Fatalf("LoadTgz() error: %v", err)
	}
	checkPackage(t, pkg)
	if pkg.Path != path {
		t.Errorf("Path = %q, want %q", pkg.Path, path)
	}
}

func TestReadTgzErrors(t *testing.T) {
	l := NewLoader(t.TempDir())
	if _, err := l.ReadTgz(bytes.NewReader([]byte("plain")), "plain"); err == nil {
		t.Error("expected gzip error")
	}
	files := map[string]string{"package/StructureDefinition-Patient.json": patientJSON}
	if _, err := l.ReadTgz(bytes.NewReader(tgz(t, files)), "no-manifest"); err == nil {
		t.Error("expected missing manifest error")
	}
}

func TestFetch(t *testing.T) {
	archive := tgz(t, packageFiles())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/example.fhir.core/1.0.0" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	l := NewLoader(t.TempDir(), WithRegistryURL(srv.URL+"/"), WithHTTPClient(srv.Client()))
	pkg, err := l.Fetch(context.Background(), PackageRef{Name: "example.fhir.core", Version: "1.0.0"})
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	checkPackage(t, pkg)

	if _, err := l.Fetch(context.Background(), PackageRef{Name: "missing", Version: "1"}); err == nil {
		t.Error("expected HTTP error for missing package")
	}
}
