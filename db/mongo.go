package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"microplastic-id/models"
)

const analysesCollection = "analyses"

type MongoClient struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewMongoClient(ctx context.Context, uri, database string) (*MongoClient, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("error connecting to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("error pinging MongoDB: %w", err)
	}

	collection := client.Database(database).Collection(analysesCollection)
	index := mongo.IndexModel{Keys: bson.D{{Key: "timestamp", Value: -1}}}
	if _, err := collection.Indexes().CreateOne(ctx, index); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("error creating timestamp index: %w", err)
	}

	return &MongoClient{client: client, collection: collection}, nil
}

func (db *MongoClient) Close() error {
	if db.client != nil {
		return db.client.Disconnect(context.Background())
	}
	return nil
}

func (db *MongoClient) StoreAnalysis(ctx context.Context, record *models.AnalysisRecord) error {
	prepareRecord(record)
	if _, err := db.collection.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("error storing analysis: %w", err)
	}
	return nil
}

func (db *MongoClient) ListAnalyses(ctx context.Context, limit int) ([]models.AnalysisRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(normaliseLimit(limit)))

	cursor, err := db.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying analyses: %w", err)
	}
	defer cursor.Close(ctx)

	records := []models.AnalysisRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("error decoding analyses: %w", err)
	}
	return records, nil
}
