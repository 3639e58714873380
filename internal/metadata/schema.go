// Package metadata discovers entity schemas from an OData $metadata document.
package metadata

import (
	"bytes"
	"encoding/json"

	"github.com/elliotchance/orderedmap/v2"
)

// Schema is a structural JSON-schema fragment describing one property,
// nested object, or array. Property order is preserved so that emitted
// schemas match the declaration order of the metadata document.
type Schema struct {
	Type                 string
	Format               string
	Items                *Schema
	Properties           *orderedmap.OrderedMap[string, *Schema]
	AdditionalProperties *bool
}

// NewObjectSchema creates an empty object schema.
// additionalProperties controls whether undeclared fields are permitted.
func NewObjectSchema(additionalProperties bool) *Schema {
	return &Schema{
		Type:                 "object",
		Properties:           orderedmap.NewOrderedMap[string, *Schema](),
		AdditionalProperties: &additionalProperties,
	}
}

// NewArraySchema creates an array schema wrapping the given item schema.
func NewArraySchema(items *Schema) *Schema {
	return &Schema{Type: "array", Items: items}
}

// Property returns the schema of a named property and whether it exists.
// Returns (nil, false) for non-object schemas.
func (s *Schema) Property(name string) (*Schema, bool) {
	if s.Properties == nil {
		return nil, false
	}
	return s.Properties.Get(name)
}

// PropertyNames returns the property names in declaration order.
func (s *Schema) PropertyNames() []string {
	if s.Properties == nil {
		return nil
	}
	return s.Properties.Keys()
}

// MarshalJSON renders the schema as standard JSON Schema, preserving
// property order.
func (s *Schema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	first := true
	writeField := func(name string, value interface{}) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false

		key, err := json.Marshal(name)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')

		val, err := json.Marshal(value)
		if err != nil {
			return err
		}
		buf.Write(val)
		return nil
	}

	if s.Type != "" {
		if err := writeField("type", s.Type); err != nil {
			return nil, err
		}
	}
	if s.Format != "" {
		if err := writeField("format", s.Format); err != nil {
			return nil, err
		}
	}
	if s.Items != nil {
		if err := writeField("items", s.Items); err != nil {
			return nil, err
		}
	}
	if s.Properties != nil {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.WriteString(`"properties":{`)
		propFirst := true
		for el := s.Properties.Front(); el != nil; el = el.Next() {
			if !propFirst {
				buf.WriteByte(',')
			}
			propFirst = false

			key, err := json.Marshal(el.Key)
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')

			val, err := json.Marshal(el.Value)
			if err != nil {
				return nil, err
			}
			buf.Write(val)
		}
		buf.WriteByte('}')
	}
	if s.AdditionalProperties != nil {
		if err := writeField("additionalProperties", *s.AdditionalProperties); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
