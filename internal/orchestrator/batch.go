package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Lunexa-AI/right-line-sub002/internal/config"
	"github.com/Lunexa-AI/right-line-sub002/internal/database"
	"github.com/Lunexa-AI/right-line-sub002/internal/model"
	"github.com/Lunexa-AI/right-line-sub002/internal/storage"
	"github.com/Lunexa-AI/right-line-sub002/pkg/structurer"
)

// EventSink receives ingestion notifications for downstream pipeline stages
type EventSink interface {
	DocumentIngested(doc *model.ParentDocument)
	RunCompleted(stats *model.RunStats)
}

// Options carries the optional collaborators of an Engine. Nil fields are
// skipped, which keeps the engine runnable (and testable) without the full
// deployment around it.
type Options struct {
	Runs         database.RunStore
	Events       EventSink
	Metadata     MetadataExtractor
	OutputPrefix string
}

// Engine drives batches of documents through submission, polling and
// aggregation against the remote structuring service
type Engine struct {
	svc          structurer.Service
	store        storage.ObjectStore
	runs         database.RunStore
	events       EventSink
	meta         MetadataExtractor
	cfg          config.IngestConfig
	outputPrefix string
}

// NewEngine wires an engine from its collaborators
func NewEngine(svc structurer.Service, store storage.ObjectStore, cfg config.IngestConfig, opts Options) *Engine {
	cfg.ApplyDefaults()

	meta := opts.Metadata
	if meta == nil {
		meta = NewHeuristicExtractor()
	}

	return &Engine{
		svc:          svc,
		store:        store,
		runs:         opts.Runs,
		events:       opts.Events,
		meta:         meta,
		cfg:          cfg,
		outputPrefix: opts.OutputPrefix,
	}
}

// Run processes every source key through the pipeline. Batches run strictly
// one after another; concurrency lives inside each batch's stages. The
// returned stats are the caller's accumulator for the whole run.
func (e *Engine) Run(ctx context.Context, sourceKeys []string) (*model.RunStats, error) {
	stats := &model.RunStats{
		StartedAt: time.Now(),
		Documents: make([]model.DocumentOutcome, 0, len(sourceKeys)),
	}

	batches := SplitIntoBatches(sourceKeys, e.cfg.BatchSize)
	stats.Batches = len(batches)

	log.Info().
		Int("documents", len(sourceKeys)).
		Int("batches", len(batches)).
		Int("batch_size", e.cfg.BatchSize).
		Msg("Starting ingestion run")

	var documents []*model.ParentDocument

	for i, batch := range batches {
		log.Info().
			Int("batch", i+1).
			Int("of", len(batches)).
			Int("size", len(batch)).
			Msg("Processing batch")

		jobs := make([]*model.DocumentJob, 0, len(batch))
		for _, key := range batch {
			jobs = append(jobs, model.NewDocumentJob(key, 0))
		}

		submitted := e.submitBatch(ctx, jobs)
		stats.Submitted += len(submitted)

		e.pollBatch(ctx, submitted)

		completed := make([]*model.DocumentJob, 0, len(submitted))
		for _, job := range submitted {
			if job.Status == model.StatusCompleted {
				completed = append(completed, job)
			}
		}

		docs, persistErrs := e.aggregateBatch(ctx, completed)
		documents = append(documents, docs...)

		for _, job := range jobs {
			outcome := model.DocumentOutcome{
				SourceKey:  job.SourceKey,
				Status:     string(job.Status),
				Error:      job.Error,
				DurationMS: job.Duration().Milliseconds(),
			}
			switch {
			case job.Status == model.StatusFailed:
				stats.Failed++
			case persistErrs[job.SourceKey] != nil:
				outcome.Status = string(model.StatusFailed)
				outcome.Error = persistErrs[job.SourceKey].Error()
				stats.Failed++
			default:
				outcome.DocID = model.DocIDForSource(job.SourceKey)
				stats.Completed++
			}
			stats.Documents = append(stats.Documents, outcome)
		}

		log.Info().
			Int("batch", i+1).
			Int("completed", len(docs)).
			Int("failed", len(batch)-len(docs)).
			Msg("Batch finished")
	}

	stats.Manifest = BuildManifest(documents, time.Now())
	if err := e.persistManifest(ctx, stats); err != nil {
		log.Error().Err(err).Msg("Failed to persist run manifest")
	}

	if e.events != nil {
		e.events.RunCompleted(stats)
	}

	stats.FinishedAt = time.Now()

	if e.runs != nil {
		if err := e.runs.CreateRun(ctx, stats.ToRecord()); err != nil {
			log.Error().Err(err).Msg("Failed to persist run record")
		}
	}

	log.Info().
		Int("submitted", stats.Submitted).
		Int("completed", stats.Completed).
		Int("failed", stats.Failed).
		Dur("duration", stats.FinishedAt.Sub(stats.StartedAt)).
		Msg("Ingestion run finished")

	return stats, nil
}

// BuildManifest summarizes the persisted documents of one run
func BuildManifest(documents []*model.ParentDocument, at time.Time) *model.Manifest {
	manifest := &model.Manifest{
		DocumentCount:       len(documents),
		DocTypes:            make(map[string]int),
		ProcessingTimestamp: at.UTC().Format(time.RFC3339),
		ProcessingMethod:    model.ProcessingMethod,
	}

	for _, doc := range documents {
		manifest.TotalTreeNodes += doc.NodeCount
		manifest.TotalTextChars += len(doc.FullText)
		manifest.DocTypes[doc.Meta.DocType]++
	}

	return manifest
}

func (e *Engine) persistManifest(ctx context.Context, stats *model.RunStats) error {
	payload, err := json.Marshal(stats.Manifest)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	key := fmt.Sprintf("%smanifest-%s.json", e.outputPrefix, stats.StartedAt.UTC().Format("20060102T150405Z"))
	return e.store.PutObject(ctx, key, payload, "application/json")
}

// SplitIntoBatches divides a slice of items into batches of the specified
// size; the last batch may be smaller
func SplitIntoBatches[T any](items []T, batchSize int) [][]T {
	if batchSize <= 0 {
		return nil
	}
	if len(items) == 0 {
		return [][]T{}
	}

	numBatches := (len(items) + batchSize - 1) / batchSize
	batches := make([][]T, 0, numBatches)

	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[i:end])
	}

	return batches
}
