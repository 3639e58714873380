package replicate

import (
	"github.com/dbsmedya/aptemsync/internal/metadata"
)

// EmbeddedEngine extracts an embedded collection's records out of parent
// records already fetched. It issues no HTTP requests and keeps no cursor:
// embedded collections are assumed to arrive in full inside the parent
// response.
type EmbeddedEngine struct {
	desc       metadata.EmbeddedEntity
	parentKeys []string
}

// NewEmbeddedEngine creates an unpacker for one embedded collection.
// parentKeys are the owning entity's primary key property names.
func NewEmbeddedEngine(desc metadata.EmbeddedEntity, parentKeys []string) *EmbeddedEngine {
	return &EmbeddedEngine{
		desc:       desc,
		parentKeys: append([]string(nil), parentKeys...),
	}
}

// CollectionName returns the nested collection's property name on the parent.
func (e *EmbeddedEngine) CollectionName() string {
	return e.desc.CollectionName
}

// Unpack returns the embedded collection's records from one parent record.
// Each child is a fresh map carrying the parent's primary-key values under
// "{parentEntityName}{keyName}" names so consumers can trace a child back
// to its parent without a second request. The prefixed names cannot collide
// with the child's own fields, and the child's fields always win if an
// overlap somehow occurs.
func (e *EmbeddedEngine) Unpack(parent map[string]interface{}) []map[string]interface{} {
	inherited := make(map[string]interface{}, len(e.parentKeys))
	for _, pk := range e.parentKeys {
		if v, ok := parent[pk]; ok {
			inherited[e.desc.ParentEntityName+pk] = v
		}
	}

	raw, ok := parent[e.desc.CollectionName].([]interface{})
	if !ok {
		return nil
	}

	records := make([]map[string]interface{}, 0, len(raw))
	for _, item := range raw {
		child, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		merged := make(map[string]interface{}, len(inherited)+len(child))
		for k, v := range inherited {
			merged[k] = v
		}
		for k, v := range child {
			merged[k] = v
		}
		records = append(records, merged)
	}

	return records
}
