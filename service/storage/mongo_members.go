package storage

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"ChatWave/tools/errs"
)

const collConversations = "conversations"

// MongoMembership answers participant checks against the conversations
// collection, which the REST/ORM layer owns. This is a read-only view.
type MongoMembership struct {
	coll *mongo.Collection
}

func NewMongoMembership(db *mongo.Database) *MongoMembership {
	return &MongoMembership{coll: db.Collection(collConversations)}
}

func (m *MongoMembership) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	n, err := m.coll.CountDocuments(ctx, bson.M{
		"_id":       conversationID,
		"memberIds": userID,
	})
	if err != nil {
		return false, errs.WrapMsg(err, "count conversation members",
			"conversation", conversationID)
	}
	return n > 0, nil
}
