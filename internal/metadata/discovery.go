package metadata

import (
	"fmt"
	"strings"

	"github.com/elliotchance/orderedmap/v2"
)

// ReplicationKeyName is the property used for incremental extraction when
// an entity declares it.
const ReplicationKeyName = "UpdatedDate"

// maxExpandDepth bounds recursive complex-type expansion. The upstream
// schema is not expected to declare self-referential complex types, but a
// cycle must fail discovery instead of recursing forever.
const maxExpandDepth = 32

// DiscoveredEntity describes one extractable collection: its public name,
// structural schema, identity keys and optional replication key.
type DiscoveredEntity struct {
	Name           string   // collection name (HTTP path segment / stream name)
	EntityName     string   // underlying EntityType name
	Schema         *Schema  // object schema over the entity's properties
	PrimaryKeys    []string // key property names, declaration order preserved
	ReplicationKey string   // ReplicationKeyName when declared, else empty
}

// EmbeddedEntity describes a collection-typed property of a parent entity
// whose records only ever appear inline inside parent responses.
type EmbeddedEntity struct {
	ParentEntityName string  // owning EntityType name
	ParentName       string  // owning collection name
	CollectionName   string  // nested collection's property name on the parent
	Schema           *Schema // item schema of the nested collection
}

// Discover parses a $metadata XML document and emits one DiscoveredEntity
// per entity type exposed through an entity set, in entity-set document
// order. Parsing is pure, so Discover is safe to call repeatedly.
//
// Any structural problem with the document is fatal: an incomplete key
// list or property set would silently corrupt downstream pagination.
func Discover(xmlDocument string) ([]DiscoveredEntity, error) {
	doc, err := parseDocument(strings.NewReader(xmlDocument))
	if err != nil {
		return nil, err
	}

	entities := make([]DiscoveredEntity, 0, len(doc.entitySets))

	for _, es := range doc.entitySets {
		et, ok := doc.entityTypes[es.entityType]
		if !ok {
			return nil, fmt.Errorf("entity set %q references unknown entity type %q", es.name, es.entityType)
		}

		schema, err := mapObject(et.Properties, doc.complexTypes, nil, false, 0)
		if err != nil {
			return nil, fmt.Errorf("entity type %q: %w", es.entityType, err)
		}
		// Top-level entity schemas carry no additionalProperties marker.
		schema.AdditionalProperties = nil

		replicationKey := ""
		if _, ok := schema.Property(ReplicationKeyName); ok {
			replicationKey = ReplicationKeyName
		}

		entities = append(entities, DiscoveredEntity{
			Name:           es.name,
			EntityName:     et.Name,
			Schema:         schema,
			PrimaryKeys:    append([]string(nil), et.Keys...),
			ReplicationKey: replicationKey,
		})
	}

	return entities, nil
}

// EmbeddedEntities derives descriptors for the parent's collection-typed
// object properties. These never paginate on their own; the replication
// engine unpacks them from parent records.
func EmbeddedEntities(parent DiscoveredEntity) []EmbeddedEntity {
	var out []EmbeddedEntity

	for _, name := range parent.Schema.PropertyNames() {
		prop, _ := parent.Schema.Property(name)
		if prop.Type != "array" || prop.Items == nil || prop.Items.Type != "object" {
			continue
		}
		out = append(out, EmbeddedEntity{
			ParentEntityName: parent.EntityName,
			ParentName:       parent.Name,
			CollectionName:   name,
			Schema:           prop.Items,
		})
	}

	return out
}

// mapType resolves a metadata type reference into a schema fragment,
// recursively expanding Collection(...) wrappers and known complex types.
// expanding tracks in-progress complex type names to detect cycles.
func mapType(typeRef string, complexTypes map[string]ComplexType, expanding map[string]bool, depth int) (*Schema, error) {
	if depth > maxExpandDepth {
		return nil, fmt.Errorf("type %q exceeds the maximum expansion depth of %d", typeRef, maxExpandDepth)
	}

	if inner, ok := strings.CutPrefix(typeRef, "Collection("); ok {
		inner = strings.TrimSuffix(inner, ")")
		items, err := mapType(inner, complexTypes, expanding, depth+1)
		if err != nil {
			return nil, err
		}
		return NewArraySchema(items), nil
	}

	if ct, ok := complexTypes[typeRef]; ok {
		if expanding[typeRef] {
			return nil, fmt.Errorf("complex type %q is self-referential", typeRef)
		}
		if expanding == nil {
			expanding = make(map[string]bool)
		}
		expanding[typeRef] = true
		defer delete(expanding, typeRef)

		return mapObject(ct.Properties, complexTypes, expanding, ct.Open, depth+1)
	}

	return primitiveSchema(typeRef), nil
}

// mapObject builds an object schema over an ordered property set.
func mapObject(props *orderedmap.OrderedMap[string, string], complexTypes map[string]ComplexType, expanding map[string]bool, open bool, depth int) (*Schema, error) {
	schema := NewObjectSchema(open)

	for el := props.Front(); el != nil; el = el.Next() {
		propSchema, err := mapType(el.Value, complexTypes, expanding, depth)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", el.Key, err)
		}
		schema.Properties.Set(el.Key, propSchema)
	}

	return schema, nil
}
