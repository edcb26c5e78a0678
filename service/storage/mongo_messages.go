package storage

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"ChatWave/service/chat"
	"ChatWave/tools/errs"
	"ChatWave/tools/ids"
)

const collMessages = "messages"

// MongoMessages implements the MessageStore contract on the messages
// collection. Per-message access rules (sender-only mutation, no mutation of
// deleted messages) are enforced here; the pipeline's per-conversation lock
// keeps the read-check-update sequence race-free within one process.
type MongoMessages struct {
	coll *mongo.Collection
}

func NewMongoMessages(db *mongo.Database) *MongoMessages {
	return &MongoMessages{coll: db.Collection(collMessages)}
}

func (s *MongoMessages) Create(ctx context.Context, conversationID string, sender chat.Identity, content string, typ chat.MessageType) (*chat.Message, error) {
	now := time.Now().UnixMilli()
	m := &chat.Message{
		ID:             ids.GenerateString(),
		ConversationID: conversationID,
		Sender:         sender,
		Content:        content,
		Type:           typ,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := s.coll.InsertOne(ctx, m); err != nil {
		return nil, errs.WrapMsg(err, "insert message", "conversation", conversationID)
	}
	return m, nil
}

func (s *MongoMessages) Get(ctx context.Context, messageID string) (*chat.Message, error) {
	var m chat.Message
	err := s.coll.FindOne(ctx, bson.M{"_id": messageID}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrNotFound.WrapMsg("message", "id", messageID)
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find message", "id", messageID)
	}
	return &m, nil
}

func (s *MongoMessages) MarkEdited(ctx context.Context, messageID, actorID, content string) (*chat.Message, error) {
	m, err := s.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if m.Deleted {
		return nil, errs.ErrInvalidState.WrapMsg("message is deleted", "id", messageID)
	}
	if m.Sender.ID != actorID {
		return nil, errs.ErrForbidden.WrapMsg("only the sender may edit", "id", messageID)
	}

	now := time.Now().UnixMilli()
	update := bson.M{"$set": bson.M{"content": content, "edited": true, "updated_at": now}}
	if _, err := s.coll.UpdateOne(ctx, bson.M{"_id": messageID}, update); err != nil {
		return nil, errs.WrapMsg(err, "update message", "id", messageID)
	}
	m.Content = content
	m.Edited = true
	m.UpdatedAt = now
	return m, nil
}

func (s *MongoMessages) MarkDeleted(ctx context.Context, messageID, actorID string) (*chat.Message, error) {
	m, err := s.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if m.Deleted {
		return nil, errs.ErrInvalidState.WrapMsg("message already deleted", "id", messageID)
	}
	if m.Sender.ID != actorID {
		return nil, errs.ErrForbidden.WrapMsg("only the sender may delete", "id", messageID)
	}

	now := time.Now().UnixMilli()
	update := bson.M{"$set": bson.M{"content": chat.Tombstone, "deleted": true, "updated_at": now}}
	if _, err := s.coll.UpdateOne(ctx, bson.M{"_id": messageID}, update); err != nil {
		return nil, errs.WrapMsg(err, "update message", "id", messageID)
	}
	m.Content = chat.Tombstone
	m.Deleted = true
	m.UpdatedAt = now
	return m, nil
}
