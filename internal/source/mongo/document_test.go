package mongo

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TestDocumentID verifies id extraction for ObjectIDs and fallbacks.
func TestDocumentID(t *testing.T) {
	t.Parallel()

	id := primitive.NewObjectID()
	doc := Document{"_id": id, "Test2OPCUA:CommonAlarm": int32(1)}
	require.Equal(t, id.Hex(), doc.ID())

	// String ids pass through, missing ids yield empty.
	require.Equal(t, "custom-id", Document{"_id": "custom-id"}.ID())
	require.Empty(t, Document{}.ID())
}

// TestDocumentField verifies presence-aware field lookup.
func TestDocumentField(t *testing.T) {
	t.Parallel()

	doc := Document{"Test2OPCUA:CommonAlarm": int32(0)}

	v, ok := doc.Field("Test2OPCUA:CommonAlarm")
	require.True(t, ok)
	require.Equal(t, int32(0), v)

	_, ok = doc.Field("timestamp")
	require.False(t, ok)
}
