package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Lunexa-AI/right-line-sub002/internal/config"
)

// RunStore persists ingestion run records so failed source keys can be
// identified and re-run selectively
type RunStore interface {
	Health() error
	RunDatabase
}

type mongoDB struct {
	client *mongo.Client
	db     *mongo.Database

	runsCol *mongo.Collection
}

// New connects to MongoDB and prepares the runs collection
func New(cfg *config.Config) (RunStore, error) {
	clientOptions := options.Client().ApplyURI(cfg.MongoDB.URI)
	if cfg.MongoDB.Username != "" {
		clientOptions.SetAuth(options.Credential{
			Username: cfg.MongoDB.Username,
			Password: cfg.MongoDB.Password,
		})
	}

	client, err := mongo.Connect(context.TODO(), clientOptions)
	if err != nil {
		return nil, err
	}

	db := client.Database(cfg.MongoDB.DB)

	runsCol := db.Collection("ingestion_runs")
	runIndexModels := []mongo.IndexModel{
		{
			// Newest-first listing
			Keys:    bson.D{{Key: "started_at", Value: -1}},
			Options: options.Index(),
		},
		{
			// Lookups of runs that touched a given source key
			Keys:    bson.D{{Key: "documents.source_key", Value: 1}},
			Options: options.Index(),
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := runsCol.Indexes().CreateMany(ctx, runIndexModels); err != nil {
		return nil, err
	}

	return &mongoDB{
		client:  client,
		db:      db,
		runsCol: runsCol,
	}, nil
}

// Health pings the database
func (m *mongoDB) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Ping(ctx, nil)
}
