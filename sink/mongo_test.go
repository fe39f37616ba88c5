package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"brandseed/generator"
)

type fakeCollection struct {
	models  []mongo.WriteModel
	ordered *bool
	result  *mongo.BulkWriteResult
	err     error
}

func (f *fakeCollection) BulkWrite(_ context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error) {
	f.models = models
	for _, o := range opts {
		if o.Ordered != nil {
			f.ordered = o.Ordered
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &mongo.BulkWriteResult{UpsertedCount: int64(len(models))}, nil
}

func TestMongo_UpsertsByID(t *testing.T) {
	coll := &fakeCollection{}
	m := &Mongo{coll: coll}

	require.NoError(t, m.Submit(context.Background(), batchOf(1, 5, 6, 7)))

	require.Len(t, coll.models, 3)
	require.NotNil(t, coll.ordered)
	assert.False(t, *coll.ordered)

	replace, ok := coll.models[1].(*mongo.ReplaceOneModel)
	require.True(t, ok)
	assert.Equal(t, bson.D{{Key: "_id", Value: int64(6)}}, replace.Filter)
	require.NotNil(t, replace.Upsert)
	assert.True(t, *replace.Upsert)
	assert.Equal(t, int64(6), replace.Replacement.(generator.Brand).ID)
}

func TestMongo_ResubmissionMatchesExisting(t *testing.T) {
	coll := &fakeCollection{result: &mongo.BulkWriteResult{MatchedCount: 2, ModifiedCount: 0}}
	m := &Mongo{coll: coll}
	assert.NoError(t, m.Submit(context.Background(), batchOf(1, 1, 2)))
}

func TestMongo_Errors(t *testing.T) {
	boom := errors.New("connection reset")
	m := &Mongo{coll: &fakeCollection{err: boom}}
	err := m.Submit(context.Background(), batchOf(1, 1))
	assert.ErrorIs(t, err, boom)

	m = &Mongo{coll: &fakeCollection{result: &mongo.BulkWriteResult{UpsertedCount: 1}}}
	err = m.Submit(context.Background(), batchOf(1, 1, 2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acknowledged 1 of 2")
}
