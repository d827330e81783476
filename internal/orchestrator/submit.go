package orchestrator

import (
	"context"
	"path"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Lunexa-AI/right-line-sub002/internal/model"
)

// submitBatch uploads every pending job through a bounded worker pool and
// returns the jobs that are now uploaded. Each submission is a single try;
// failures stay on the job and the sibling jobs are unaffected.
func (e *Engine) submitBatch(ctx context.Context, jobs []*model.DocumentJob) []*model.DocumentJob {
	workers := e.cfg.MaxConcurrentUploads

	workChan := make(chan *model.DocumentJob, len(jobs))

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for job := range workChan {
				e.submitOne(ctx, job)
			}
		}()
	}

	for _, job := range jobs {
		workChan <- job
	}
	close(workChan)
	wg.Wait()

	submitted := make([]*model.DocumentJob, 0, len(jobs))
	for _, job := range jobs {
		if job.Status == model.StatusUploaded {
			submitted = append(submitted, job)
		}
	}

	log.Info().
		Int("submitted", len(submitted)).
		Int("failed", len(jobs)-len(submitted)).
		Msg("Submission stage finished")

	return submitted
}

func (e *Engine) submitOne(ctx context.Context, job *model.DocumentJob) {
	data, err := e.store.GetObject(ctx, job.SourceKey)
	if err != nil {
		log.Error().Err(err).Str("source", job.SourceKey).Msg("Failed to read source document")
		job.Fail(NewSubmissionError(err))
		return
	}
	job.SourceSizeBytes = int64(len(data))

	externalID, err := e.svc.Submit(ctx, path.Base(job.SourceKey), data)
	if err != nil {
		log.Error().Err(err).Str("source", job.SourceKey).Msg("Submission failed")
		job.Fail(NewSubmissionError(err))
		return
	}

	job.MarkUploaded(externalID)

	log.Debug().
		Str("source", job.SourceKey).
		Str("job_id", externalID).
		Int64("size", job.SourceSizeBytes).
		Msg("Document uploaded")
}
