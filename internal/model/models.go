package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// Extraction methods recorded in provenance
	ExtractionRaw   = "raw"
	ExtractionPaged = "paged"

	// ProcessingMethod identifies this pipeline in manifests
	ProcessingMethod = "remote_structuring"
)

// ContentNode is one node of the merged structural tree. Text carries the
// OCR span matched to the node; Children preserve the service's ordering.
type ContentNode struct {
	NodeID    string        `json:"node_id" bson:"node_id"`
	Type      string        `json:"type" bson:"type"`
	Title     string        `json:"title,omitempty" bson:"title,omitempty"`
	Text      string        `json:"text,omitempty" bson:"text,omitempty"`
	PageIndex int           `json:"page_index" bson:"page_index"`
	Children  []ContentNode `json:"children,omitempty" bson:"children,omitempty"`
}

// StructuredResult is the merged output for one completed job
type StructuredResult struct {
	Tree             []ContentNode `json:"tree"`
	FullText         string        `json:"full_text"`
	ExtractionMethod string        `json:"extraction_method"`
}

// Provenance records where a parent document came from and how
type Provenance struct {
	SourceKey        string `json:"source_key" bson:"source_key"`
	ExternalJobID    string `json:"external_job_id" bson:"external_job_id"`
	ProcessingMS     int64  `json:"processing_ms" bson:"processing_ms"`
	ExtractionMethod string `json:"extraction_method" bson:"extraction_method"`
}

// DocumentMeta holds classification fields derived from the merged result
type DocumentMeta struct {
	DocType      string `json:"doc_type" bson:"doc_type"`
	Title        string `json:"title" bson:"title"`
	Language     string `json:"language" bson:"language"`
	Jurisdiction string `json:"jurisdiction" bson:"jurisdiction"`
}

// ParentDocument is the aggregate persisted downstream once a job's
// structuring result has been merged and classified
type ParentDocument struct {
	DocID       string        `json:"doc_id" bson:"doc_id"`
	Meta        DocumentMeta  `json:"meta" bson:"meta"`
	ContentTree []ContentNode `json:"content_tree" bson:"content_tree"`
	FullText    string        `json:"full_text" bson:"full_text"`
	NodeCount   int           `json:"node_count" bson:"node_count"`
	Provenance  Provenance    `json:"provenance" bson:"provenance"`
	CreatedAt   time.Time     `json:"created_at" bson:"created_at"`
}

// DocIDForSource derives the deterministic document id for a source key.
// Re-running the pipeline over the same input set yields the same ids, which
// is the idempotency anchor for the whole pipeline.
func DocIDForSource(sourceKey string) string {
	sum := sha256.Sum256([]byte(sourceKey))
	return "doc_" + hex.EncodeToString(sum[:8])
}

// Manifest summarizes one full ingestion run
type Manifest struct {
	DocumentCount       int            `json:"document_count"`
	TotalTreeNodes      int            `json:"total_tree_nodes"`
	TotalTextChars      int            `json:"total_text_chars"`
	DocTypes            map[string]int `json:"doc_types"`
	ProcessingTimestamp string         `json:"processing_timestamp"`
	ProcessingMethod    string         `json:"processing_method"`
}

// DocumentOutcome is the per-document entry in a run record
type DocumentOutcome struct {
	SourceKey  string `json:"source_key" bson:"source_key"`
	DocID      string `json:"doc_id,omitempty" bson:"doc_id,omitempty"`
	Status     string `json:"status" bson:"status"`
	Error      string `json:"error,omitempty" bson:"error,omitempty"`
	DurationMS int64  `json:"duration_ms" bson:"duration_ms"`
}

// RunStats is the in-process accumulator for one run. It is passed into and
// returned from the batch controller rather than held as process state, so
// the engine can run multiple times within one process.
type RunStats struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Submitted  int
	Completed  int
	Failed     int
	Batches    int
	Documents  []DocumentOutcome
	Manifest   *Manifest
}

// RunRecord is the persisted form of a run, stored for targeted re-runs
type RunRecord struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	StartedAt  time.Time          `json:"started_at" bson:"started_at"`
	FinishedAt time.Time          `json:"finished_at" bson:"finished_at"`
	Submitted  int                `json:"submitted" bson:"submitted"`
	Completed  int                `json:"completed" bson:"completed"`
	Failed     int                `json:"failed" bson:"failed"`
	Batches    int                `json:"batches" bson:"batches"`
	Documents  []DocumentOutcome  `json:"documents" bson:"documents"`
	Manifest   *Manifest          `json:"manifest,omitempty" bson:"manifest,omitempty"`
}

// Summary renders the per-run report: counts plus failure reasons, so a
// targeted re-run over just the failed source keys can be prepared
func (s *RunStats) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run finished in %s\n", s.FinishedAt.Sub(s.StartedAt).Round(time.Second))
	fmt.Fprintf(&b, "  batches:   %d\n", s.Batches)
	fmt.Fprintf(&b, "  submitted: %d\n", s.Submitted)
	fmt.Fprintf(&b, "  completed: %d\n", s.Completed)
	fmt.Fprintf(&b, "  failed:    %d\n", s.Failed)

	for _, doc := range s.Documents {
		if doc.Status == string(StatusFailed) {
			fmt.Fprintf(&b, "  FAILED %s: %s\n", doc.SourceKey, doc.Error)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// ToRecord converts run stats into their persisted form
func (s *RunStats) ToRecord() *RunRecord {
	return &RunRecord{
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		Submitted:  s.Submitted,
		Completed:  s.Completed,
		Failed:     s.Failed,
		Batches:    s.Batches,
		Documents:  s.Documents,
		Manifest:   s.Manifest,
	}
}
