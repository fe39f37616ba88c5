package sink

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"brandseed/cargo"
)

type bulkWriter interface {
	BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error)
}

// Mongo upserts every brand of a batch by id in one unordered bulk write.
type Mongo struct {
	coll bulkWriter
}

// NewMongo connects to uri and returns a sink for database.collection plus
// the client's disconnect func.
func NewMongo(ctx context.Context, uri, database, collection string) (*Mongo, func(context.Context) error, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, errors.Wrap(err, "mongo connect")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, errors.Wrap(err, "mongo ping")
	}
	return &Mongo{coll: client.Database(database).Collection(collection)}, client.Disconnect, nil
}

func (m *Mongo) Submit(ctx context.Context, b cargo.Batch) error {
	models := make([]mongo.WriteModel, 0, len(b.Records))
	for _, r := range b.Records {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "_id", Value: r.ID}}).
			SetReplacement(r).
			SetUpsert(true))
	}

	res, err := m.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return errors.Wrap(err, "mongo bulk write")
	}
	if n := res.MatchedCount + res.UpsertedCount; n != int64(len(models)) {
		return errors.Errorf("mongo bulk write acknowledged %d of %d brands", n, len(models))
	}
	return nil
}
