package material

import (
	"fmt"
	"strconv"
	"strings"
)

// Param is one named shader parameter on a material.
type Param struct {
	Name string
	// Key is an opaque field carried for lossless export.
	Key   string
	Value Value
}

func (p Param) clone() Param {
	cp := p
	cp.Value = p.Value.clone()
	return cp
}

// Value is the closed set of parameter value variants. Unknown declared
// types are preserved byte-for-byte as OpaqueValue so export stays lossless.
type Value interface {
	// TypeName is the declared type tag the value serializes under.
	TypeName() string
	// String renders the value the way the definition format does.
	String() string

	clone() Value
	isValue()
}

// FloatValue is a scalar floating-point parameter.
type FloatValue float64

func (v FloatValue) TypeName() string { return "Float" }
func (v FloatValue) String() string   { return formatFloat(float64(v)) }
func (v FloatValue) clone() Value     { return v }
func (FloatValue) isValue()           {}

// IntValue is a scalar integer parameter.
type IntValue int64

func (v IntValue) TypeName() string { return "Int" }
func (v IntValue) String() string   { return strconv.FormatInt(int64(v), 10) }
func (v IntValue) clone() Value     { return v }
func (IntValue) isValue()           {}

// BoolValue is a boolean parameter.
type BoolValue bool

func (v BoolValue) TypeName() string { return "Bool" }
func (v BoolValue) String() string   { return strconv.FormatBool(bool(v)) }
func (v BoolValue) clone() Value     { return v }
func (BoolValue) isValue()           {}

// VectorValue is a fixed-width vector of floats (2 to 5 components).
type VectorValue []float64

func (v VectorValue) TypeName() string { return fmt.Sprintf("Float%d", len(v)) }

func (v VectorValue) String() string {
	parts := make([]string, len(v))
	for i, component := range v {
		parts[i] = formatFloat(component)
	}
	return strings.Join(parts, ", ")
}

func (v VectorValue) clone() Value {
	cp := make(VectorValue, len(v))
	copy(cp, v)
	return cp
}

func (VectorValue) isValue() {}

// IntVectorValue is a fixed-width vector of integers.
type IntVectorValue []int64

func (v IntVectorValue) TypeName() string { return fmt.Sprintf("Int%d", len(v)) }

func (v IntVectorValue) String() string {
	parts := make([]string, len(v))
	for i, component := range v {
		parts[i] = strconv.FormatInt(component, 10)
	}
	return strings.Join(parts, ", ")
}

func (v IntVectorValue) clone() Value {
	cp := make(IntVectorValue, len(v))
	copy(cp, v)
	return cp
}

func (IntVectorValue) isValue() {}

// OpaqueValue preserves a value of an unrecognized declared type. Raw holds
// the inner XML of the value element verbatim.
type OpaqueValue struct {
	Declared string
	Raw      string
}

func (v OpaqueValue) TypeName() string { return v.Declared }
func (v OpaqueValue) String() string   { return v.Raw }
func (v OpaqueValue) clone() Value     { return v }
func (OpaqueValue) isValue()           {}

// Numeric returns the scalar numeric interpretation of a value, when one
// exists. Bools map to 0/1 so tolerance comparison can treat them uniformly.
func Numeric(v Value) (float64, bool) {
	switch value := v.(type) {
	case FloatValue:
		return float64(value), true
	case IntValue:
		return float64(value), true
	case BoolValue:
		if value {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Vector returns the vector interpretation of a value, when one exists.
// Integer vectors convert component-wise so comparisons treat Int2 and
// Float2 uniformly.
func Vector(v Value) ([]float64, bool) {
	switch value := v.(type) {
	case VectorValue:
		return value, true
	case IntVectorValue:
		converted := make([]float64, len(value))
		for i, component := range value {
			converted[i] = float64(component)
		}
		return converted, true
	default:
		return nil, false
	}
}

// ParseValue converts serialized text into the variant the declared type
// names. Unknown types come back as OpaqueValue.
func ParseValue(declared, text string) (Value, error) {
	text = strings.TrimSpace(text)
	switch declared {
	case "Bool":
		parsed, err := strconv.ParseBool(text)
		if err != nil {
			return nil, fmt.Errorf("parse bool %q: %w", text, err)
		}
		return BoolValue(parsed), nil
	case "Int":
		parsed, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse int %q: %w", text, err)
		}
		return IntValue(parsed), nil
	case "Float":
		parsed, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("parse float %q: %w", text, err)
		}
		return FloatValue(parsed), nil
	case "Int2":
		parts := strings.Split(text, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("parse Int2: expected 2 components, got %d", len(parts))
		}
		vector := make(IntVectorValue, 2)
		for i, part := range parts {
			parsed, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parse Int2 component %d: %w", i, err)
			}
			vector[i] = parsed
		}
		return vector, nil
	case "Float2", "Float3", "Float4", "Float5":
		width := int(declared[len(declared)-1] - '0')
		parts := strings.Split(text, ",")
		if len(parts) != width {
			return nil, fmt.Errorf("parse %s: expected %d components, got %d", declared, width, len(parts))
		}
		vector := make(VectorValue, width)
		for i, part := range parts {
			parsed, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				return nil, fmt.Errorf("parse %s component %d: %w", declared, i, err)
			}
			vector[i] = parsed
		}
		return vector, nil
	default:
		return OpaqueValue{Declared: declared, Raw: text}, nil
	}
}

// formatFloat renders floats the shortest way that round-trips, matching the
// definition format's plain decimal style.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
