package mongo

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/undeadblocks/marketstate/base/ctx"
	"github.com/undeadblocks/marketstate/base/database/mongoclient"
	"github.com/undeadblocks/marketstate/domain"
	"github.com/undeadblocks/marketstate/service/keyvalue"
)

const collectionName = "kv"

type document struct {
	Key     string `bson:"_id"`
	Version int64  `bson:"version"`
	Value   []byte `bson:"value"`
}

type impl struct {
	col *mongo.Collection
}

// New stores each key as one document, versions enforced by filtered writes
func New(client *mongoclient.Client) keyvalue.Store {
	return &impl{col: client.Database().Collection(collectionName)}
}

func (im *impl) Get(c ctx.Ctx, key string) (*keyvalue.Entry, error) {
	doc := document{}
	if err := im.col.FindOne(c, bson.M{"_id": key}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, keyvalue.ErrNotFound
		}
		c.WithField("err", err).Error("mongo FindOne failed")
		return nil, err
	}
	return &keyvalue.Entry{Value: doc.Value, Version: doc.Version}, nil
}

func (im *impl) Put(c ctx.Ctx, key string, value []byte, prev int64) (int64, error) {
	next := prev + 1
	doc := document{Key: key, Version: next, Value: value}

	if prev == 0 {
		if _, err := im.col.InsertOne(c, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return 0, domain.ErrConflict
			}
			c.WithField("err", err).Error("mongo InsertOne failed")
			return 0, err
		}
		return next, nil
	}

	res, err := im.col.ReplaceOne(c, bson.M{"_id": key, "version": prev}, doc)
	if err != nil {
		c.WithField("err", err).Error("mongo ReplaceOne failed")
		return 0, err
	}
	if res.MatchedCount == 0 {
		return 0, domain.ErrConflict
	}
	return next, nil
}

func (im *impl) Del(c ctx.Ctx, key string) error {
	if _, err := im.col.DeleteOne(c, bson.M{"_id": key}); err != nil {
		c.WithField("err", err).Error("mongo DeleteOne failed")
		return err
	}
	return nil
}
