package db

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/richd0tcom/senser/internal/domain"
)

// DocumentStore holds descriptive sensor metadata in MongoDB, keyed by the
// relational id.
type DocumentStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewMongoConnection(uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to MongoDB")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_ = client.Ping(ctx, readpref.Primary())

	return client, nil
}

func NewDocumentStore(client *mongo.Client, database, collection string) (*DocumentStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	col := client.Database(database).Collection(collection)

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "latitude", Value: 1},
				{Key: "longitude", Value: 1},
			},
		},
	}
	if _, err := col.Indexes().CreateMany(ctx, indexModels); err != nil {
		return nil, errors.Wrap(err, "creating sensor indexes")
	}

	return &DocumentStore{client: client, collection: col}, nil
}

func (d *DocumentStore) Upsert(ctx context.Context, sensor domain.Sensor) error {
	opts := options.UpdateOne().SetUpsert(true)
	_, err := d.collection.UpdateOne(ctx,
		bson.M{"id": sensor.ID},
		bson.M{"$set": sensor},
		opts,
	)
	return errors.Wrap(err, "upserting sensor document")
}

func (d *DocumentStore) ByID(ctx context.Context, id int64) (*domain.Sensor, error) {
	var sensor domain.Sensor
	err := d.collection.FindOne(ctx, bson.M{"id": id}).Decode(&sensor)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrSensorNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "finding sensor document")
	}
	return &sensor, nil
}

func (d *DocumentStore) InBoundingBox(ctx context.Context, box domain.BoundingBox) ([]domain.Sensor, error) {
	filter := bson.M{
		"latitude":  bson.M{"$gte": box.MinLatitude, "$lte": box.MaxLatitude},
		"longitude": bson.M{"$gte": box.MinLongitude, "$lte": box.MaxLongitude},
	}

	cursor, err := d.collection.Find(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying sensors in bounding box")
	}
	defer cursor.Close(ctx)

	var sensors []domain.Sensor
	if err := cursor.All(ctx, &sensors); err != nil {
		return nil, errors.Wrap(err, "decoding bounding box results")
	}
	return sensors, nil
}

func (d *DocumentStore) Delete(ctx context.Context, id int64) error {
	_, err := d.collection.DeleteOne(ctx, bson.M{"id": id})
	return errors.Wrap(err, "deleting sensor document")
}

func (d *DocumentStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return d.client.Disconnect(ctx)
}
