package material

import (
	"encoding/xml"
	"fmt"
	"path"
	"strings"
)

// MalformedRecordError reports a definition file that could not be parsed.
// The import pipeline records it against the file and keeps going.
type MalformedRecordError struct {
	Path   string
	Reason string
	Err    error
}

func (e *MalformedRecordError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed definition %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed definition %s: %s", e.Path, e.Reason)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

type definitionXML struct {
	XMLName     xml.Name     `xml:"MATBIN"`
	Filename    string       `xml:"filename"`
	Compression string       `xml:"compression"`
	ShaderPath  string       `xml:"ShaderPath"`
	SourcePath  string       `xml:"SourcePath"`
	Key         string       `xml:"Key"`
	Params      []paramXML   `xml:"Params>Param"`
	Samplers    []samplerXML `xml:"Samplers>Sampler"`
}

type paramXML struct {
	Name  string   `xml:"Name"`
	Value valueXML `xml:"Value"`
	Key   string   `xml:"Key"`
	Type  string   `xml:"Type"`
}

type valueXML struct {
	Text  string `xml:",chardata"`
	Inner string `xml:",innerxml"`
}

type samplerXML struct {
	Type  string  `xml:"Type"`
	Path  *string `xml:"Path"`
	Key   string  `xml:"Key"`
	Unk14 pairXML `xml:"Unk14"`
}

type pairXML struct {
	X int `xml:"X"`
	Y int `xml:"Y"`
}

// Parse converts one definition file into a Record. It is pure: relPath is
// the archive-relative path of the file and only feeds the identifier. The
// returned record has EditState unmodified and a zero ImportedAt; the import
// pipeline stamps both at commit time.
func Parse(data []byte, archive, relPath string) (*Record, error) {
	var doc definitionXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, &MalformedRecordError{Path: relPath, Reason: "invalid xml", Err: err}
	}
	if strings.TrimSpace(doc.ShaderPath) == "" {
		return nil, &MalformedRecordError{Path: relPath, Reason: "missing shader path"}
	}

	record := &Record{
		ID:          RecordID(relPath),
		Name:        recordName(doc.Filename, relPath),
		Archive:     archive,
		ShaderPath:  doc.ShaderPath,
		SourcePath:  doc.SourcePath,
		Compression: doc.Compression,
		Key:         doc.Key,
		EditState:   EditStateUnmodified,
	}

	record.Params = make([]Param, 0, len(doc.Params))
	for _, param := range doc.Params {
		if strings.TrimSpace(param.Name) == "" {
			return nil, &MalformedRecordError{Path: relPath, Reason: "parameter with empty name"}
		}
		value, err := parseParamValue(param)
		if err != nil {
			return nil, &MalformedRecordError{Path: relPath, Reason: fmt.Sprintf("parameter %s", param.Name), Err: err}
		}
		record.Params = append(record.Params, Param{Name: param.Name, Key: param.Key, Value: value})
	}

	record.Samplers = make([]Sampler, 0, len(doc.Samplers))
	for _, sampler := range doc.Samplers {
		if strings.TrimSpace(sampler.Type) == "" {
			return nil, &MalformedRecordError{Path: relPath, Reason: "sampler with empty slot name"}
		}
		record.Samplers = append(record.Samplers, Sampler{
			Slot:   sampler.Type,
			Path:   sampler.Path,
			Key:    sampler.Key,
			ExtraX: sampler.Unk14.X,
			ExtraY: sampler.Unk14.Y,
		})
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}
	return record, nil
}

func parseParamValue(param paramXML) (Value, error) {
	switch param.Type {
	case "Bool", "Int", "Int2", "Float", "Float2", "Float3", "Float4", "Float5":
		return ParseValue(param.Type, param.Value.Text)
	default:
		// Unknown declared type: keep the element body verbatim.
		return OpaqueValue{Declared: param.Type, Raw: strings.TrimSpace(param.Value.Inner)}, nil
	}
}

// recordName derives the display name from the declared binary filename,
// falling back to the definition file's own name.
func recordName(filename, relPath string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = path.Base(RecordID(relPath))
	}
	return strings.TrimSuffix(base, path.Ext(base))
}
