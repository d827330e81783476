package orchestrator

import (
	"strings"

	"github.com/Lunexa-AI/right-line-sub002/internal/model"
)

// MetadataExtractor derives the classification fields of a parent document
// from its merged result. The serious implementation lives in the metadata
// service; the heuristic one below keeps the pipeline self-contained.
type MetadataExtractor interface {
	Extract(tree []model.ContentNode, fullText string) model.DocumentMeta
}

type heuristicExtractor struct{}

// NewHeuristicExtractor returns a keyword-based extractor for legal texts
func NewHeuristicExtractor() MetadataExtractor {
	return heuristicExtractor{}
}

func (heuristicExtractor) Extract(tree []model.ContentNode, fullText string) model.DocumentMeta {
	meta := model.DocumentMeta{
		DocType:      "other",
		Language:     "en",
		Jurisdiction: "ZW",
	}

	if len(tree) > 0 {
		if tree[0].Title != "" {
			meta.Title = tree[0].Title
		} else if tree[0].Text != "" {
			meta.Title = firstLine(tree[0].Text)
		}
	}
	if meta.Title == "" {
		meta.Title = firstLine(fullText)
	}

	probe := strings.ToLower(meta.Title)
	if probe == "" {
		probe = strings.ToLower(firstLine(fullText))
	}

	switch {
	case strings.Contains(probe, "constitution"):
		meta.DocType = "constitution"
	case strings.Contains(probe, "statutory instrument"):
		meta.DocType = "statutory_instrument"
	case strings.Contains(probe, "act"):
		meta.DocType = "act"
	case strings.Contains(probe, " v ") || strings.Contains(probe, "judgment"):
		meta.DocType = "judgment"
	}

	return meta
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return strings.TrimSpace(s)
}
