package metadata

// edmPrimitive describes how one EDM primitive maps to a JSON schema type.
type edmPrimitive struct {
	jsonType string
	format   string
}

// edmTypeMap maps EDM primitive type names to JSON schema types.
// Binary and Guid values are represented as strings on the wire.
var edmTypeMap = map[string]edmPrimitive{
	"Edm.String":         {jsonType: "string"},
	"Edm.Boolean":        {jsonType: "boolean"},
	"Edm.Int16":          {jsonType: "integer"},
	"Edm.Int32":          {jsonType: "integer"},
	"Edm.Int64":          {jsonType: "integer"},
	"Edm.Byte":           {jsonType: "integer"},
	"Edm.SByte":          {jsonType: "integer"},
	"Edm.Decimal":        {jsonType: "number"},
	"Edm.Double":         {jsonType: "number"},
	"Edm.Single":         {jsonType: "number"},
	"Edm.DateTime":       {jsonType: "string", format: "date-time"},
	"Edm.DateTimeOffset": {jsonType: "string", format: "date-time"},
	"Edm.Date":           {jsonType: "string", format: "date"},
	"Edm.TimeOfDay":      {jsonType: "string", format: "time"},
	"Edm.Guid":           {jsonType: "string", format: "uuid"},
	"Edm.Binary":         {jsonType: "string"},
}

// primitiveSchema returns a fresh schema for an EDM primitive type name.
// Unknown type names fall back to string so that an unfamiliar upstream
// type never fails discovery.
func primitiveSchema(edmType string) *Schema {
	if prim, ok := edmTypeMap[edmType]; ok {
		return &Schema{Type: prim.jsonType, Format: prim.format}
	}
	return &Schema{Type: "string"}
}
