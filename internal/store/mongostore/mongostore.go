// Package mongostore implements the stores on MongoDB collections.
package mongostore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"social-backend/internal/db"
	"social-backend/internal/models"
	"social-backend/internal/store"
)

type conversationDoc struct {
	ID                   string              `bson:"_id"`
	Participants         []string            `bson:"participants"`
	PairKey              string              `bson:"pair_key"`
	LastMessage          *models.LastMessage `bson:"last_message,omitempty"`
	Gated                bool                `bson:"gated"`
	AwaitingFirstContact bool                `bson:"awaiting_first_contact"`
	PendingFirstMessage  bool                `bson:"pending_first_message"`
	CreatedAt            time.Time           `bson:"created_at"`
	UpdatedAt            time.Time           `bson:"updated_at"`
}

func (d *conversationDoc) model() *models.Conversation {
	return &models.Conversation{
		ID:                   d.ID,
		Participants:         d.Participants,
		LastMessage:          d.LastMessage,
		Gated:                d.Gated,
		AwaitingFirstContact: d.AwaitingFirstContact,
		PendingFirstMessage:  d.PendingFirstMessage,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}
}

func lookupErr(err error, op string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return errors.Wrap(err, op)
}

type ConversationStore struct {
	coll *mongo.Collection
}

func NewConversationStore(database *mongo.Database) *ConversationStore {
	return &ConversationStore{coll: database.Collection(db.ConversationsCollection)}
}

var _ store.ConversationStore = (*ConversationStore)(nil)

func (s *ConversationStore) findOne(ctx context.Context, filter bson.M, op string) (*models.Conversation, error) {
	var doc conversationDoc
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, lookupErr(err, op)
	}
	return doc.model(), nil
}

func (s *ConversationStore) FindByParticipants(ctx context.Context, a, b string) (*models.Conversation, error) {
	return s.findOne(ctx, bson.M{"pair_key": models.PairKey(a, b)}, "find conversation by participants")
}

func (s *ConversationStore) FindByID(ctx context.Context, id string) (*models.Conversation, error) {
	return s.findOne(ctx, bson.M{"_id": id}, "find conversation")
}

func (s *ConversationStore) ListByParticipant(ctx context.Context, userID string) ([]models.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cur, err := s.coll.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "list conversations")
	}
	defer cur.Close(ctx)

	convs := make([]models.Conversation, 0)
	for cur.Next(ctx) {
		var doc conversationDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decode conversation")
		}
		convs = append(convs, *doc.model())
	}
	return convs, errors.Wrap(cur.Err(), "list conversations")
}

func (s *ConversationStore) Insert(ctx context.Context, conv *models.Conversation) error {
	doc := conversationDoc{
		ID:                   conv.ID,
		Participants:         conv.Participants,
		PairKey:              conv.PairKey(),
		LastMessage:          conv.LastMessage,
		Gated:                conv.Gated,
		AwaitingFirstContact: conv.AwaitingFirstContact,
		PendingFirstMessage:  conv.PendingFirstMessage,
		CreatedAt:            conv.CreatedAt,
		UpdatedAt:            conv.UpdatedAt,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrConflict
		}
		return errors.Wrap(err, "insert conversation")
	}
	return nil
}

func (s *ConversationStore) Update(ctx context.Context, id string, upd store.ConversationUpdate) (*models.Conversation, error) {
	set := bson.M{"updated_at": time.Now()}
	update := bson.M{}
	if upd.SetLastMessage {
		if upd.LastMessage == nil {
			update["$unset"] = bson.M{"last_message": ""}
		} else {
			set["last_message"] = upd.LastMessage
		}
	}
	if upd.Gated != nil {
		set["gated"] = *upd.Gated
	}
	if upd.AwaitingFirstContact != nil {
		set["awaiting_first_contact"] = *upd.AwaitingFirstContact
	}
	if upd.PendingFirstMessage != nil {
		set["pending_first_message"] = *upd.PendingFirstMessage
	}
	update["$set"] = set

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc conversationDoc
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&doc); err != nil {
		return nil, lookupErr(err, "update conversation")
	}
	return doc.model(), nil
}

func (s *ConversationStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(err, "delete conversation")
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

type MessageStore struct {
	coll *mongo.Collection
}

func NewMessageStore(database *mongo.Database) *MessageStore {
	return &MessageStore{coll: database.Collection(db.MessagesCollection)}
}

var _ store.MessageStore = (*MessageStore)(nil)

func (s *MessageStore) Insert(ctx context.Context, msg *models.Message) error {
	if _, err := s.coll.InsertOne(ctx, msg); err != nil {
		return errors.Wrap(err, "insert message")
	}
	return nil
}

func (s *MessageStore) FindByID(ctx context.Context, id string) (*models.Message, error) {
	var msg models.Message
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&msg); err != nil {
		return nil, lookupErr(err, "find message")
	}
	return &msg, nil
}

func (s *MessageStore) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.coll.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "list messages")
	}
	defer cur.Close(ctx)

	messages := make([]models.Message, 0)
	if err := cur.All(ctx, &messages); err != nil {
		return nil, errors.Wrap(err, "decode messages")
	}
	return messages, nil
}

func (s *MessageStore) Latest(ctx context.Context, conversationID string) (*models.Message, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	var msg models.Message
	if err := s.coll.FindOne(ctx, bson.M{"conversation_id": conversationID}, opts).Decode(&msg); err != nil {
		return nil, lookupErr(err, "latest message")
	}
	return &msg, nil
}

func (s *MessageStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(err, "delete message")
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *MessageStore) DeleteByConversation(ctx context.Context, conversationID string) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"conversation_id": conversationID})
	if err != nil {
		return 0, errors.Wrap(err, "delete conversation messages")
	}
	return res.DeletedCount, nil
}

// New returns the mongo stores. Close disconnects the underlying client.
func New(database *mongo.Database) store.Stores {
	return store.Stores{
		Conversations: NewConversationStore(database),
		Messages:      NewMessageStore(database),
		Close: func(ctx context.Context) error {
			return database.Client().Disconnect(ctx)
		},
	}
}
