package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const stateCollection = "auth_state"

// Tier is the durable persistence tier: entries survive until an explicit
// logout purges them — the analog of localStorage in the browser client
// this replaces.
type Tier struct {
	coll *mongo.Collection
}

// NewTier creates the durable tier on db.
func NewTier(db *mongo.Database) *Tier {
	return &Tier{coll: db.Collection(stateCollection)}
}

type stateDoc struct {
	Key   string `bson:"_id"`
	Value string `bson:"value"`
}

// Get returns the value for key and whether it was present.
func (t *Tier) Get(ctx context.Context, key string) (string, bool, error) {
	var doc stateDoc
	err := t.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("mongo find %s: %w", key, err)
	}
	return doc.Value, true, nil
}

// Set stores value under key, replacing any previous value.
func (t *Tier) Set(ctx context.Context, key, value string) error {
	_, err := t.coll.ReplaceOne(ctx,
		bson.M{"_id": key},
		stateDoc{Key: key, Value: value},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongo upsert %s: %w", key, err)
	}
	return nil
}

// Delete removes the given keys. Missing keys are not an error.
func (t *Tier) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := t.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": keys}}); err != nil {
		return fmt.Errorf("mongo delete: %w", err)
	}
	return nil
}
