package types

// Standard table names for Store.GetTable.
const (
	ModelsTable             = "models"
	ObjectsTable            = "objects"
	AttributesTable         = "attributes"
	ModelObjectsTable       = "model_objects"
	ModelAttributesTable    = "model_attributes"
	RelationshipsTable      = "relationships"
	ModelRelationshipsTable = "model_relationships"
)

// StandardTableNames lists all standard table names in dependency order.
var StandardTableNames = []string{
	ModelsTable,
	ObjectsTable,
	AttributesTable,
	ModelObjectsTable,
	ModelAttributesTable,
	RelationshipsTable,
	ModelRelationshipsTable,
}
