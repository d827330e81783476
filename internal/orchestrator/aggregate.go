package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Lunexa-AI/right-line-sub002/internal/model"
)

// aggregateBatch converts every completed job into a persisted parent
// document. It runs exactly once per completed job and never sees failed
// jobs. The returned map carries persistence errors keyed by source key.
func (e *Engine) aggregateBatch(ctx context.Context, completed []*model.DocumentJob) ([]*model.ParentDocument, map[string]error) {
	documents := make([]*model.ParentDocument, 0, len(completed))
	persistErrs := make(map[string]error)

	for _, job := range completed {
		doc, err := e.aggregateOne(ctx, job)
		if err != nil {
			log.Error().Err(err).Str("source", job.SourceKey).Msg("Failed to persist parent document")
			persistErrs[job.SourceKey] = err
			continue
		}
		documents = append(documents, doc)
	}

	return documents, persistErrs
}

func (e *Engine) aggregateOne(ctx context.Context, job *model.DocumentJob) (*model.ParentDocument, error) {
	doc := BuildParentDocument(job, e.meta)

	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal parent document: %w", err)
	}

	key := fmt.Sprintf("%s%s.json", e.outputPrefix, doc.DocID)
	if err := e.store.PutObject(ctx, key, payload, "application/json"); err != nil {
		return nil, err
	}

	if e.events != nil {
		e.events.DocumentIngested(doc)
	}

	log.Debug().
		Str("doc_id", doc.DocID).
		Str("doc_type", doc.Meta.DocType).
		Int("nodes", doc.NodeCount).
		Msg("Parent document persisted")

	return doc, nil
}

// BuildParentDocument derives the aggregate record for one completed job.
// Pure given the job and extractor, apart from the creation timestamp.
func BuildParentDocument(job *model.DocumentJob, meta MetadataExtractor) *model.ParentDocument {
	result := job.Result

	return &model.ParentDocument{
		DocID:       model.DocIDForSource(job.SourceKey),
		Meta:        meta.Extract(result.Tree, result.FullText),
		ContentTree: result.Tree,
		FullText:    result.FullText,
		NodeCount:   CountNodes(result.Tree),
		Provenance: model.Provenance{
			SourceKey:        job.SourceKey,
			ExternalJobID:    job.ExternalJobID,
			ProcessingMS:     job.Duration().Milliseconds(),
			ExtractionMethod: result.ExtractionMethod,
		},
		CreatedAt: time.Now(),
	}
}
