package database

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Lunexa-AI/right-line-sub002/internal/model"
)

// RunDatabase defines run-record database operations
type RunDatabase interface {
	// Create a run record once a run finishes
	CreateRun(ctx context.Context, run *model.RunRecord) error

	// Get a run by its id
	GetRunByID(ctx context.Context, id string) (*model.RunRecord, error)

	// List runs newest first
	ListRuns(ctx context.Context, limit, offset int) ([]*model.RunRecord, error)

	// List failed document outcomes across the most recent run
	ListFailedSources(ctx context.Context, runID string) ([]model.DocumentOutcome, error)
}

// CreateRun inserts a finished run record
func (m *mongoDB) CreateRun(ctx context.Context, run *model.RunRecord) error {
	if run.ID.IsZero() {
		run.ID = primitive.NewObjectID()
	}

	if run.Documents == nil {
		run.Documents = []model.DocumentOutcome{}
	}

	_, err := m.runsCol.InsertOne(ctx, run)
	if err != nil {
		log.Error().Err(err).Str("runID", run.ID.Hex()).Msg("Failed to create run record")
		return err
	}

	log.Info().
		Str("runID", run.ID.Hex()).
		Int("completed", run.Completed).
		Int("failed", run.Failed).
		Msg("Run record created")
	return nil
}

// GetRunByID fetches one run record
func (m *mongoDB) GetRunByID(ctx context.Context, id string) (*model.RunRecord, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var run model.RunRecord
	if err := m.runsCol.FindOne(ctx, bson.M{"_id": objectID}).Decode(&run); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns run records newest first
func (m *mongoDB) ListRuns(ctx context.Context, limit, offset int) ([]*model.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := m.runsCol.Find(ctx, bson.M{}, opts)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list runs")
		return nil, err
	}
	defer cursor.Close(ctx)

	var runs []*model.RunRecord
	if err := cursor.All(ctx, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// ListFailedSources returns the failed document outcomes of one run
func (m *mongoDB) ListFailedSources(ctx context.Context, runID string) ([]model.DocumentOutcome, error) {
	run, err := m.GetRunByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	failed := make([]model.DocumentOutcome, 0)
	for _, doc := range run.Documents {
		if doc.Status == string(model.StatusFailed) {
			failed = append(failed, doc)
		}
	}
	return failed, nil
}
