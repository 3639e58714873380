package metadata

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/elliotchance/orderedmap/v2"
)

// ComplexType is a named structural type definition. Immutable once parsed;
// indexed by its fully-qualified "namespace.name" identifier.
type ComplexType struct {
	Name       string
	Properties *orderedmap.OrderedMap[string, string] // property name -> type reference
	Open       bool                                   // open types accept undeclared properties
}

// EntityType is a structural type that additionally carries the ordered key
// property names identifying record identity.
type EntityType struct {
	Name       string
	Properties *orderedmap.OrderedMap[string, string]
	Keys       []string
}

// entitySet pairs an entity type's fully-qualified name with the externally
// addressable collection name (the HTTP path segment).
type entitySet struct {
	entityType string
	name       string
}

// document holds the three indexes built in one pass over the metadata XML.
type document struct {
	complexTypes map[string]ComplexType
	entityTypes  map[string]EntityType
	entitySets   []entitySet // document order
}

// element is a minimal XML tree node. Only local names, attributes and
// child elements are retained; namespace URIs are irrelevant to the
// metadata format beyond the Namespace attribute on Schema elements.
type element struct {
	local    string
	attrs    []xml.Attr
	children []*element
}

// attr returns the value of a named attribute and whether it is present.
func (e *element) attr(name string) (string, bool) {
	for _, a := range e.attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// childrenNamed returns direct children with the given local name.
func (e *element) childrenNamed(name string) []*element {
	var out []*element
	for _, c := range e.children {
		if c.local == name {
			out = append(out, c)
		}
	}
	return out
}

// walk visits every element in the subtree in document order.
func (e *element) walk(fn func(*element) error) error {
	if err := fn(e); err != nil {
		return err
	}
	for _, c := range e.children {
		if err := c.walk(fn); err != nil {
			return err
		}
	}
	return nil
}

// parseTree decodes the XML document into an element tree.
//
// The document is untrusted remote input. encoding/xml never dereferences
// external entities or DTDs, and with strict mode and no custom entity map
// an undeclared entity reference is a parse error rather than an expansion.
func parseTree(r io.Reader) (*element, error) {
	decoder := xml.NewDecoder(r)
	decoder.Strict = true

	var stack []*element
	var root *element

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed metadata document: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			elem := &element{
				local: t.Name.Local,
				attrs: t.Attr,
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, elem)
			} else if root != nil {
				return nil, fmt.Errorf("malformed metadata document: multiple root elements")
			} else {
				root = elem
			}
			stack = append(stack, elem)

		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("malformed metadata document: no root element")
	}
	return root, nil
}

// parseDocument builds the complex-type, entity-type and entity-set indexes
// from the metadata XML in a single pass. Any missing required attribute is
// fatal: downstream key-based pagination depends on complete type info.
func parseDocument(r io.Reader) (*document, error) {
	root, err := parseTree(r)
	if err != nil {
		return nil, err
	}

	doc := &document{
		complexTypes: make(map[string]ComplexType),
		entityTypes:  make(map[string]EntityType),
	}

	err = root.walk(func(e *element) error {
		switch e.local {
		case "Schema":
			return doc.indexSchema(e)
		case "EntityContainer":
			return doc.indexContainer(e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return doc, nil
}

func (d *document) indexSchema(schema *element) error {
	namespace, ok := schema.attr("Namespace")
	if !ok {
		return fmt.Errorf("schema element is missing the Namespace attribute")
	}

	for _, ct := range schema.childrenNamed("ComplexType") {
		name, ok := ct.attr("Name")
		if !ok {
			return fmt.Errorf("complex type in namespace %q is missing the Name attribute", namespace)
		}

		props, err := extractProperties(ct, name)
		if err != nil {
			return err
		}

		openType, _ := ct.attr("OpenType")
		d.complexTypes[namespace+"."+name] = ComplexType{
			Name:       name,
			Properties: props,
			Open:       openType == "true",
		}
	}

	for _, et := range schema.childrenNamed("EntityType") {
		name, ok := et.attr("Name")
		if !ok {
			return fmt.Errorf("entity type in namespace %q is missing the Name attribute", namespace)
		}

		props, err := extractProperties(et, name)
		if err != nil {
			return err
		}

		keys, err := extractKeys(et, name, props)
		if err != nil {
			return err
		}

		d.entityTypes[namespace+"."+name] = EntityType{
			Name:       name,
			Properties: props,
			Keys:       keys,
		}
	}

	return nil
}

func (d *document) indexContainer(container *element) error {
	for _, es := range container.childrenNamed("EntitySet") {
		name, ok := es.attr("Name")
		if !ok {
			return fmt.Errorf("entity set is missing the Name attribute")
		}
		entityType, ok := es.attr("EntityType")
		if !ok {
			return fmt.Errorf("entity set %q is missing the EntityType attribute", name)
		}
		d.entitySets = append(d.entitySets, entitySet{
			entityType: entityType,
			name:       name,
		})
	}
	return nil
}

// extractProperties collects Property children into an ordered name -> type
// reference map, preserving declaration order.
func extractProperties(typeElem *element, typeName string) (*orderedmap.OrderedMap[string, string], error) {
	props := orderedmap.NewOrderedMap[string, string]()

	for _, p := range typeElem.childrenNamed("Property") {
		name, ok := p.attr("Name")
		if !ok {
			return nil, fmt.Errorf("property of type %q is missing the Name attribute", typeName)
		}
		propType, ok := p.attr("Type")
		if !ok {
			return nil, fmt.Errorf("property %q of type %q is missing the Type attribute", name, typeName)
		}
		props.Set(name, propType)
	}

	return props, nil
}

// extractKeys collects the ordered key property names from Key/PropertyRef
// children. A PropertyRef naming a property the type does not declare is
// fatal.
func extractKeys(typeElem *element, typeName string, props *orderedmap.OrderedMap[string, string]) ([]string, error) {
	var keys []string

	for _, key := range typeElem.childrenNamed("Key") {
		for _, ref := range key.childrenNamed("PropertyRef") {
			name, ok := ref.attr("Name")
			if !ok {
				return nil, fmt.Errorf("property ref of entity type %q is missing the Name attribute", typeName)
			}
			if _, ok := props.Get(name); !ok {
				return nil, fmt.Errorf("entity type %q declares key %q but no such property exists", typeName, name)
			}
			keys = append(keys, name)
		}
	}

	return keys, nil
}
