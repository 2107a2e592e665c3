package material_test

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"matport/internal/material"
)

const sampleDefinition = `<?xml version="1.0" encoding="utf-8"?>
<MATBIN xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:xsd="http://www.w3.org/2001/XMLSchema">
  <filename>m10_00_floor.matbin</filename>
  <compression>Zlib</compression>
  <ShaderPath>N:\GR\data\Material\mtd\map\M_Floor.spx</ShaderPath>
  <SourcePath>material\m10_00_floor.matxml</SourcePath>
  <Key>140041</Key>
  <Params>
    <Param>
      <Name>g_Specular</Name>
      <Value xsi:type="xsd:float">0.25</Value>
      <Key>10</Key>
      <Type>Float</Type>
    </Param>
    <Param>
      <Name>g_BlendMode</Name>
      <Value xsi:type="xsd:int">2</Value>
      <Key>11</Key>
      <Type>Int</Type>
    </Param>
    <Param>
      <Name>g_EnableFade</Name>
      <Value xsi:type="xsd:boolean">true</Value>
      <Key>12</Key>
      <Type>Bool</Type>
    </Param>
    <Param>
      <Name>g_TintColor</Name>
      <Value xsi:type="xsd:string">1, 0.5, 0.25</Value>
      <Key>13</Key>
      <Type>Float3</Type>
    </Param>
    <Param>
      <Name>g_TileSize</Name>
      <Value xsi:type="xsd:string">512, 512</Value>
      <Key>14</Key>
      <Type>Int2</Type>
    </Param>
    <Param>
      <Name>g_Mystery</Name>
      <Value><Packed>aGVsbG8=</Packed></Value>
      <Key>15</Key>
      <Type>Blob</Type>
    </Param>
  </Params>
  <Samplers>
    <Sampler>
      <Type>C_AlbedoMap</Type>
      <Path>map\tex\m10_00_floor_a.tif</Path>
      <Key>0</Key>
      <Unk14>
        <X>0</X>
        <Y>0</Y>
      </Unk14>
    </Sampler>
    <Sampler>
      <Type>C_NormalMap_2</Type>
      <Key>1</Key>
      <Unk14>
        <X>1</X>
        <Y>2</Y>
      </Unk14>
    </Sampler>
  </Samplers>
</MATBIN>
`

func TestParseSampleDefinition(t *testing.T) {
	record, err := material.Parse([]byte(sampleDefinition), "m10.matbinbnd", "material/m10_00_floor.matbin.xml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if record.ID != "material/m10_00_floor.matbin" {
		t.Errorf("unexpected id %q", record.ID)
	}
	if record.Name != "m10_00_floor" {
		t.Errorf("unexpected name %q", record.Name)
	}
	if record.Archive != "m10.matbinbnd" {
		t.Errorf("unexpected archive %q", record.Archive)
	}
	if record.ShaderPath != `N:\GR\data\Material\mtd\map\M_Floor.spx` {
		t.Errorf("unexpected shader path %q", record.ShaderPath)
	}
	if record.EditState != material.EditStateUnmodified {
		t.Errorf("unexpected edit state %q", record.EditState)
	}
	if !record.ImportedAt.IsZero() {
		t.Errorf("ImportedAt should be zero until commit, got %v", record.ImportedAt)
	}

	if len(record.Params) != 6 {
		t.Fatalf("expected 6 params, got %d", len(record.Params))
	}
	assertValue(t, record, "g_Specular", material.FloatValue(0.25))
	assertValue(t, record, "g_BlendMode", material.IntValue(2))
	assertValue(t, record, "g_EnableFade", material.BoolValue(true))
	assertValue(t, record, "g_TintColor", material.VectorValue{1, 0.5, 0.25})
	assertValue(t, record, "g_TileSize", material.IntVectorValue{512, 512})
	assertValue(t, record, "g_Mystery", material.OpaqueValue{Declared: "Blob", Raw: "<Packed>aGVsbG8=</Packed>"})

	if len(record.Samplers) != 2 {
		t.Fatalf("expected 2 samplers, got %d", len(record.Samplers))
	}
	albedo := record.Samplers[0]
	if albedo.Slot != "C_AlbedoMap" || albedo.Type() != "AlbedoMap" {
		t.Errorf("unexpected albedo slot %q type %q", albedo.Slot, albedo.Type())
	}
	if albedo.PathValue() != `map\tex\m10_00_floor_a.tif` {
		t.Errorf("unexpected albedo path %q", albedo.PathValue())
	}
	normal := record.Samplers[1]
	if normal.Path != nil {
		t.Errorf("expected unbound normal slot, got path %q", *normal.Path)
	}
	if normal.Type() != "NormalMap" {
		t.Errorf("unexpected normal type %q", normal.Type())
	}
	if normal.ExtraX != 1 || normal.ExtraY != 2 {
		t.Errorf("unexpected extras %d/%d", normal.ExtraX, normal.ExtraY)
	}
}

func assertValue(t *testing.T, record *material.Record, name string, want material.Value) {
	t.Helper()
	param, ok := record.ParamByName(name)
	if !ok {
		t.Fatalf("param %s missing", name)
	}
	if !reflect.DeepEqual(param.Value, want) {
		t.Errorf("param %s = %#v, want %#v", name, param.Value, want)
	}
}

func TestParseEncodeRoundTrip(t *testing.T) {
	original, err := material.Parse([]byte(sampleDefinition), "m10.matbinbnd", "material/m10_00_floor.matbin.xml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	encoded := material.Encode(original)
	reparsed, err := material.Parse(encoded, "m10.matbinbnd", "material/m10_00_floor.matbin.xml")
	if err != nil {
		t.Fatalf("Parse(Encode): %v\n%s", err, encoded)
	}
	if !reflect.DeepEqual(original, reparsed) {
		t.Errorf("round trip diverged:\noriginal: %#v\nreparsed: %#v", original, reparsed)
	}

	// Encoding is deterministic.
	if again := material.Encode(reparsed); string(again) != string(encoded) {
		t.Errorf("encode not deterministic")
	}
}

func TestParseMalformed(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"truncated", sampleDefinition[:200]},
		{"wrong root", `<?xml version="1.0"?><Material></Material>`},
		{"bad float", wrapParam("g_Bad", "Float", "not-a-number")},
		{"bad vector width", wrapParam("g_Bad", "Float3", "1, 2")},
		{"bad int2 component", wrapParam("g_Bad", "Int2", "512, 0.5")},
		{"bad int2 width", wrapParam("g_Bad", "Int2", "512")},
		{"empty param name", wrapParam("", "Float", "1")},
		{"missing shader path", `<?xml version="1.0"?><MATBIN><filename>x.matbin</filename></MATBIN>`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := material.Parse([]byte(tc.body), "arc", "file.xml")
			var malformed *material.MalformedRecordError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected MalformedRecordError, got %v", err)
			}
			if malformed.Path != "file.xml" {
				t.Errorf("unexpected path %q", malformed.Path)
			}
		})
	}
}

func wrapParam(name, declared, text string) string {
	return `<?xml version="1.0"?><MATBIN><filename>x.matbin</filename>` +
		`<ShaderPath>M_Test.spx</ShaderPath><Params><Param>` +
		`<Name>` + name + `</Name><Value>` + text + `</Value><Key>0</Key><Type>` + declared + `</Type>` +
		`</Param></Params></MATBIN>`
}

func TestParseRejectsDuplicates(t *testing.T) {
	duplicateSlot := `<?xml version="1.0"?><MATBIN><filename>x.matbin</filename>` +
		`<ShaderPath>M_Test.spx</ShaderPath><Samplers>` +
		`<Sampler><Type>C_AlbedoMap</Type><Key>0</Key><Unk14><X>0</X><Y>0</Y></Unk14></Sampler>` +
		`<Sampler><Type>C_AlbedoMap</Type><Key>1</Key><Unk14><X>0</X><Y>0</Y></Unk14></Sampler>` +
		`</Samplers></MATBIN>`
	_, err := material.Parse([]byte(duplicateSlot), "arc", "x.xml")
	var violation *material.InvariantViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected InvariantViolationError, got %v", err)
	}
	if !strings.Contains(violation.Detail, "C_AlbedoMap") {
		t.Errorf("detail should name the slot: %q", violation.Detail)
	}

	duplicateParam := wrapParam("g_Dup", "Float", "1")
	duplicateParam = strings.Replace(duplicateParam, "</Param></Params>",
		`</Param><Param><Name>g_Dup</Name><Value>2</Value><Key>1</Key><Type>Float</Type></Param></Params>`, 1)
	if _, err := material.Parse([]byte(duplicateParam), "arc", "x.xml"); !errors.As(err, &violation) {
		t.Fatalf("expected InvariantViolationError for duplicate param, got %v", err)
	}
}

func TestCloneIsDeep(t *testing.T) {
	record, err := material.Parse([]byte(sampleDefinition), "m10.matbinbnd", "material/m10_00_floor.matbin.xml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	clone := record.Clone()
	tint, ok := clone.ParamByName("g_TintColor")
	if !ok {
		t.Fatal("g_TintColor missing from clone")
	}
	vector, _ := material.Vector(tint.Value)
	vector[0] = 99
	*clone.Samplers[0].Path = "changed"

	if v, _ := record.ParamByName("g_TintColor"); !reflect.DeepEqual(v.Value, material.VectorValue{1, 0.5, 0.25}) {
		t.Errorf("clone shares param storage with original: %#v", v.Value)
	}
	if record.Samplers[0].PathValue() == "changed" {
		t.Errorf("clone shares sampler path with original")
	}
}
