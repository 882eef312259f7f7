package mongo

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document is one gateway record: a field-name to value mapping.
type Document bson.M

// ID returns the document identifier for log correlation. ObjectIDs render
// as hex; anything else falls back to its string form.
func (d Document) ID() string {
	raw, ok := d["_id"]
	if !ok {
		return ""
	}

	if id, ok := raw.(primitive.ObjectID); ok {
		return id.Hex()
	}

	return fmt.Sprint(raw)
}

// Field returns the named field value and whether it was present.
func (d Document) Field(name string) (any, bool) {
	v, ok := d[name]

	return v, ok
}
