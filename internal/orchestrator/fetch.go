package orchestrator

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Lunexa-AI/right-line-sub002/internal/model"
)

// fetchResult retrieves the three artifacts of a completed job and merges
// them into the job's structured result
func (e *Engine) fetchResult(ctx context.Context, jobID string) (*model.StructuredResult, error) {
	tree, err := e.svc.FetchTree(ctx, jobID)
	if err != nil {
		return nil, NewPollError(err)
	}

	nodes, err := e.svc.FetchOCRNodes(ctx, jobID)
	if err != nil {
		return nil, NewPollError(err)
	}

	fullText, method, err := e.fetchFullText(ctx, jobID)
	if err != nil {
		return nil, err
	}

	merged, err := MergeTree(tree, nodes)
	if err != nil {
		return nil, err
	}

	return &model.StructuredResult{
		Tree:             merged,
		FullText:         fullText,
		ExtractionMethod: method,
	}, nil
}

// fetchFullText prefers the single raw read; when that errors or comes back
// empty it falls back to the paginated read and reassembles the text. The
// reassembly is deterministic, so repeated runs against the same completed
// job yield byte-identical text.
func (e *Engine) fetchFullText(ctx context.Context, jobID string) (string, string, error) {
	text, err := e.svc.FetchRawText(ctx, jobID)
	if err == nil && strings.TrimSpace(text) != "" {
		return text, model.ExtractionRaw, nil
	}
	if err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Msg("Raw text fetch failed, falling back to paged read")
	} else {
		log.Warn().Str("job_id", jobID).Msg("Raw text empty, falling back to paged read")
	}

	pages, err := e.svc.FetchPages(ctx, jobID)
	if err != nil {
		return "", "", NewPollError(err)
	}

	return AssemblePagedText(pages), model.ExtractionPaged, nil
}
