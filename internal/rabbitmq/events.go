package rabbitmq

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Lunexa-AI/right-line-sub002/internal/model"
)

// Routing keys for ingestion events consumed by the downstream
// chunking/embedding pipeline
const (
	RouteDocumentIngested = "document.ingested"
	RouteRunCompleted     = "run.completed"
)

// EventPublisher emits ingestion events onto the configured exchange.
// Publishing is best-effort: failures are logged and never fail the run.
type EventPublisher struct {
	client   Client
	exchange string
}

// NewEventPublisher declares the topic exchange and returns a publisher
func NewEventPublisher(client Client, exchange string) (*EventPublisher, error) {
	if err := client.DeclareExchange(exchange, "topic"); err != nil {
		return nil, err
	}
	return &EventPublisher{client: client, exchange: exchange}, nil
}

type documentIngestedEvent struct {
	DocID         string    `json:"doc_id"`
	SourceKey     string    `json:"source_key"`
	DocType       string    `json:"doc_type"`
	NodeCount     int       `json:"node_count"`
	TextChars     int       `json:"text_chars"`
	ExternalJobID string    `json:"external_job_id"`
	IngestedAt    time.Time `json:"ingested_at"`
}

type runCompletedEvent struct {
	Manifest    *model.Manifest `json:"manifest"`
	Submitted   int             `json:"submitted"`
	Completed   int             `json:"completed"`
	Failed      int             `json:"failed"`
	CompletedAt time.Time       `json:"completed_at"`
}

// DocumentIngested announces one persisted parent document
func (p *EventPublisher) DocumentIngested(doc *model.ParentDocument) {
	event := documentIngestedEvent{
		DocID:         doc.DocID,
		SourceKey:     doc.Provenance.SourceKey,
		DocType:       doc.Meta.DocType,
		NodeCount:     doc.NodeCount,
		TextChars:     len(doc.FullText),
		ExternalJobID: doc.Provenance.ExternalJobID,
		IngestedAt:    time.Now(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("docID", doc.DocID).Msg("Failed to marshal ingested event")
		return
	}

	if err := p.client.Publish(p.exchange, RouteDocumentIngested, body, nil); err != nil {
		log.Warn().Err(err).Str("docID", doc.DocID).Msg("Failed to publish ingested event")
	}
}

// RunCompleted announces the final manifest of a run
func (p *EventPublisher) RunCompleted(stats *model.RunStats) {
	event := runCompletedEvent{
		Manifest:    stats.Manifest,
		Submitted:   stats.Submitted,
		Completed:   stats.Completed,
		Failed:      stats.Failed,
		CompletedAt: time.Now(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal run completed event")
		return
	}

	if err := p.client.Publish(p.exchange, RouteRunCompleted, body, nil); err != nil {
		log.Warn().Err(err).Msg("Failed to publish run completed event")
	}
}
