package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Lunexa-AI/right-line-sub002/internal/model"
	"github.com/Lunexa-AI/right-line-sub002/pkg/structurer"
)

// pollBatch waits for every uploaded job to reach a terminal state, bounded
// by its own worker pool: polls are cheaper and more numerous than uploads,
// so the ceiling is independent of the upload ceiling.
func (e *Engine) pollBatch(ctx context.Context, jobs []*model.DocumentJob) {
	if len(jobs) == 0 {
		return
	}

	workers := e.cfg.MaxConcurrentPolls

	workChan := make(chan *model.DocumentJob, len(jobs))

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for job := range workChan {
				e.pollOne(ctx, job)
			}
		}()
	}

	for _, job := range jobs {
		workChan <- job
	}
	close(workChan)
	wg.Wait()

	completed := 0
	for _, job := range jobs {
		if job.Status == model.StatusCompleted {
			completed++
		}
	}

	log.Info().
		Int("completed", completed).
		Int("failed", len(jobs)-completed).
		Msg("Polling stage finished")
}

// pollOne loops on the remote status until the job completes, the service
// reports failure, or the iteration ceiling is hit. Any locally failing
// iteration terminally fails the job rather than retrying, which keeps the
// loop's failure surface small and observable.
func (e *Engine) pollOne(ctx context.Context, job *model.DocumentJob) {
	interval := time.Duration(e.cfg.PollIntervalMS) * time.Millisecond

	for attempt := 0; attempt < e.cfg.MaxPolls; attempt++ {
		state, err := e.svc.GetStatus(ctx, job.ExternalJobID)
		if err != nil {
			log.Error().Err(err).Str("job_id", job.ExternalJobID).Msg("Status check failed")
			job.Fail(NewPollError(err))
			return
		}

		switch state.Status {
		case structurer.StateCompleted:
			result, err := e.fetchResult(ctx, job.ExternalJobID)
			if err != nil {
				log.Error().Err(err).Str("job_id", job.ExternalJobID).Msg("Result fetch failed")
				job.Fail(err)
				return
			}
			job.Complete(result)
			log.Debug().
				Str("source", job.SourceKey).
				Str("job_id", job.ExternalJobID).
				Int("polls", attempt+1).
				Dur("duration", job.Duration()).
				Msg("Job completed")
			return

		case structurer.StateFailed:
			log.Warn().
				Str("job_id", job.ExternalJobID).
				Str("detail", state.Detail).
				Msg("Remote service reported job failure")
			job.Fail(NewRemoteFailure(state.Detail))
			return

		default:
			// uploaded or processing: wait and poll again
			job.MarkProcessing()
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				job.Fail(NewPollError(ctx.Err()))
				return
			}
		}
	}

	log.Warn().
		Str("job_id", job.ExternalJobID).
		Int("max_polls", e.cfg.MaxPolls).
		Msg("Job timed out")
	job.Fail(NewPollTimeout(e.cfg.MaxPolls))
}
