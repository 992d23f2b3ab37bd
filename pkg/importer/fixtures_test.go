package importer

import "strings"

// patientBase is a trimmed base Patient definition.
const patientBase = `{
  "resourceType": "StructureDefinition",
  "url": "http://hl7.org/fhir/StructureDefinition/Patient",
  "name": "Patient",
  "status": "active",
  "kind": "resource",
  "abstract": false,
  "type": "Patient",
  "jurisdiction": [{"text": "international"}],
  "snapshot": {"element": [
    {"id": "Patient", "path": "Patient", "min": 0, "max": "*"},
    {"id": "Patient.identifier", "path": "Patient.identifier", "min": 0, "max": "*", "type": [{"code": "Identifier"}]},
    {"id": "Patient.name", "path": "Patient.name", "short": "A name associated with the patient", "min": 0, "max": "*", "type": [{"code": "HumanName"}]},
    {"id": "Patient.name.family", "path": "Patient.name.family", "min": 0, "max": "1", "type": [{"code": "string"}]},
    {"id": "Patient.name.given", "path": "Patient.name.given", "min": 0, "max": "*", "type": [{"code": "string"}]},
    {"id": "Patient.gender", "path": "Patient.gender", "min": 0, "max": "1", "type": [{"code": "code"}],
     "base": {"path": "Patient.gender", "min": 0, "max": "1"}}
  ]}
}`

// slicedProfile constrains Patient.name with an "official" slice.
const slicedProfile = `{
  "resourceType": "StructureDefinition",
  "url": "http://example.org/StructureDefinition/OfficialPatient",
  "name": "OfficialPatient",
  "status": "draft",
  "kind": "resource",
  "abstract": false,
  "type": "Patient",
  "baseDefinition": "http://hl7.org/fhir/StructureDefinition/Patient",
  "derivation": "constraint",
  "snapshot": {"element": [
    {"id": "Patient", "path": "Patient", "min": 0, "max": "*"},
    {"id": "Patient.identifier", "path": "Patient.identifier", "min": 0, "max": "*", "type": [{"code": "Identifier"}]},
    {"id": "Patient.name", "path": "Patient.name", "short": "A name associated with the patient", "min": 1, "max": "*", "type": [{"code": "HumanName"}],
     "slicing": {"discriminator": [{"type": "value", "path": "use"}], "rules": "open"}},
    {"id": "Patient.name.family", "path": "Patient.name.family", "min": 0, "max": "1", "type": [{"code": "string"}]},
    {"id": "Patient.name.given", "path": "Patient.name.given", "min": 0, "max": "*", "type": [{"code": "string"}]},
    {"id": "Patient.name:official", "path": "Patient.name", "sliceName": "official", "short": "A name associated with the patient", "min": 1, "max": "1", "type": [{"code": "HumanName"}]},
    {"id": "Patient.name:official.family", "path": "Patient.name.family", "min": 1, "max": "1", "type": [{"code": "string"}]},
    {"id": "Patient.name:official.given", "path": "Patient.name.given", "min": 0, "max": "*", "type": [{"code": "string"}]},
    {"id": "Patient.gender", "path": "Patient.gender", "min": 0, "max": "1", "type": [{"code": "code"}]}
  ]},
  "differential": {"element": [
    {"id": "Patient.name", "path": "Patient.name", "min": 1,
     "slicing": {"discriminator": [{"type": "value", "path": "use"}], "rules": "open"}},
    {"id": "Patient.name:official", "path": "Patient.name", "sliceName": "official", "min": 1, "max": "1"},
    {"id": "Patient.name:official.family", "path": "Patient.name.family", "min": 1}
  ]}
}`

// structureDefinition wraps snapshot elements in a minimal document.
func structureDefinition(elements ...string) []byte {
	return []byte(`{"resourceType": "StructureDefinition", "url": "http://example.org/sd", "snapshot": {"element": [` +
		strings.Join(elements, ",") + `]}}`)
}
