package material

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

const (
	xmlHeader    = `<?xml version="1.0" encoding="utf-8"?>` + "\n"
	xsiNamespace = "http://www.w3.org/2001/XMLSchema-instance"
	xsdNamespace = "http://www.w3.org/2001/XMLSchema"
)

// Encode serializes a record back into the definition file format. Encoding
// a parsed record and re-parsing it yields an identical record, opaque
// parameter values included.
func Encode(r *Record) []byte {
	var b bytes.Buffer
	b.WriteString(xmlHeader)
	fmt.Fprintf(&b, "<MATBIN xmlns:xsi=%q xmlns:xsd=%q>\n", xsiNamespace, xsdNamespace)
	writeElement(&b, 1, "filename", r.Name+".matbin")
	writeElement(&b, 1, "compression", r.Compression)
	writeElement(&b, 1, "ShaderPath", r.ShaderPath)
	writeElement(&b, 1, "SourcePath", r.SourcePath)
	writeElement(&b, 1, "Key", r.Key)

	b.WriteString("  <Params>\n")
	for _, param := range r.Params {
		b.WriteString("    <Param>\n")
		writeElement(&b, 3, "Name", param.Name)
		writeValueElement(&b, param.Value)
		writeElement(&b, 3, "Key", param.Key)
		writeElement(&b, 3, "Type", param.Value.TypeName())
		b.WriteString("    </Param>\n")
	}
	b.WriteString("  </Params>\n")

	b.WriteString("  <Samplers>\n")
	for _, sampler := range r.Samplers {
		b.WriteString("    <Sampler>\n")
		writeElement(&b, 3, "Type", sampler.Slot)
		if sampler.Path != nil {
			writeElement(&b, 3, "Path", *sampler.Path)
		}
		writeElement(&b, 3, "Key", sampler.Key)
		b.WriteString("      <Unk14>\n")
		writeElement(&b, 4, "X", fmt.Sprintf("%d", sampler.ExtraX))
		writeElement(&b, 4, "Y", fmt.Sprintf("%d", sampler.ExtraY))
		b.WriteString("      </Unk14>\n")
		b.WriteString("    </Sampler>\n")
	}
	b.WriteString("  </Samplers>\n")

	b.WriteString("</MATBIN>\n")
	return b.Bytes()
}

func writeValueElement(b *bytes.Buffer, value Value) {
	b.WriteString(strings.Repeat("  ", 3))
	if opaque, ok := value.(OpaqueValue); ok {
		// Opaque bodies are raw XML preserved from parse; no re-escaping.
		fmt.Fprintf(b, "<Value>%s</Value>\n", opaque.Raw)
		return
	}
	fmt.Fprintf(b, "<Value xsi:type=%q>", xsiType(value))
	escapeInto(b, value.String())
	b.WriteString("</Value>\n")
}

func xsiType(value Value) string {
	switch value.(type) {
	case BoolValue:
		return "xsd:boolean"
	case IntValue:
		return "xsd:int"
	case FloatValue:
		return "xsd:float"
	default:
		return "xsd:string"
	}
}

func writeElement(b *bytes.Buffer, depth int, name, text string) {
	b.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(b, "<%s>", name)
	escapeInto(b, text)
	fmt.Fprintf(b, "</%s>\n", name)
}

func escapeInto(b *bytes.Buffer, text string) {
	// EscapeText only fails on a failing writer; bytes.Buffer never does.
	_ = xml.EscapeText(b, []byte(text))
}
