package payload

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"txmanager/internal/model"
	"txmanager/internal/protocol/codec"
)

type (
	MongoStore struct {
		collection *mongo.Collection
	}

	payloadDocument struct {
		Hash       []byte   `bson:"_id"`
		Sender     []byte   `bson:"sender"`
		Recipients [][]byte `bson:"recipients"`
		Payload    []byte   `bson:"payload"`
	}
)

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		collection: db.Collection("payloads"),
	}
}

// EnsureIndexes creates the recipient index used by AllForRecipient.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "recipients", Value: 1}},
	})
	return err
}

func (s *MongoStore) Put(ctx context.Context, hash model.MessageHash, p *model.EncodedPayloadWithRecipients) error {
	doc := payloadDocument{
		Hash:       hash.Bytes(),
		Sender:     p.SenderKey.Bytes(),
		Recipients: make([][]byte, 0, len(p.RecipientKeys)),
		Payload:    codec.EncodePayload(p),
	}
	for _, k := range p.RecipientKeys {
		doc.Recipients = append(doc.Recipients, k.Bytes())
	}

	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": doc.Hash}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) Get(ctx context.Context, hash model.MessageHash) (*model.EncodedPayloadWithRecipients, error) {
	var doc payloadDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": hash.Bytes()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return codec.DecodePayload(doc.Payload)
}

func (s *MongoStore) Delete(ctx context.Context, hash model.MessageHash) (bool, error) {
	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": hash.Bytes()})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (s *MongoStore) AllForRecipient(ctx context.Context, key model.Key) ([]*model.EncodedPayloadWithRecipients, error) {
	cur, err := s.collection.Find(ctx, bson.M{"recipients": key.Bytes()})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*model.EncodedPayloadWithRecipients
	for cur.Next(ctx) {
		var doc payloadDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		p, err := codec.DecodePayload(doc.Payload)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, cur.Err()
}
