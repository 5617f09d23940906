package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"carpics/fetcher/internal/client"
	"carpics/fetcher/internal/domain"
	"carpics/fetcher/internal/domain/task"
	"carpics/fetcher/internal/plan"
	"carpics/fetcher/internal/queue"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

var ErrQueueDisabled = errors.New("fetch queue is not configured")

type Service struct {
	builder     *plan.Builder
	fetcher     client.Fetcher
	queue       queue.Queue
	minIdleTime time.Duration
	readBackoff time.Duration // pause after a failed stream read
}

// NewService wires the planner and fetcher. q may be nil when no queue is configured.
func NewService(builder *plan.Builder, fetcher client.Fetcher, q queue.Queue, minIdleTime int) *Service {
	return &Service{
		builder:     builder,
		fetcher:     fetcher,
		queue:       q,
		minIdleTime: time.Duration(minIdleTime) * time.Second,
		readBackoff: time.Second,
	}
}

// Plan builds every request without fetching anything.
func (s *Service) Plan(reqs []domain.DownloadRequest) []plan.Result {
	return s.builder.BuildAll(reqs)
}

// Summary counts the outcome of a FetchAll run.
type Summary struct {
	Requests int
	Failed   int
	Images   int
}

// FetchAll builds and fetches each request in turn. A request that fails to
// plan or fetch is reported and the next request still runs.
func (s *Service) FetchAll(ctx context.Context, reqs []domain.DownloadRequest) (Summary, error) {
	var summary Summary
	var errs []error

	for _, res := range s.Plan(reqs) {
		summary.Requests++
		if res.Err != nil {
			log.Errorf("❌ Skipping %s: %v", res.Request.FilenamePrefix, res.Err)
			summary.Failed++
			errs = append(errs, res.Err)
			continue
		}

		log.Infof("🔄 Fetching %d images for %s", len(res.Entries), res.Request.FilenamePrefix)
		report, err := s.fetcher.Fetch(ctx, res.Entries)
		if report != nil {
			summary.Images += report.Succeeded()
		}
		if err != nil {
			summary.Failed++
			errs = append(errs, fmt.Errorf("%s: %w", res.Request.FilenamePrefix, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		log.Infof("✅ Completed %s", res.Request.FilenamePrefix)
	}

	return summary, errors.Join(errs...)
}

// Enqueue builds every request and pushes its entries onto the fetch stream.
func (s *Service) Enqueue(ctx context.Context, reqs []domain.DownloadRequest) (int, error) {
	if s.queue == nil {
		return 0, ErrQueueDisabled
	}

	var errs []error
	count := 0
	for _, res := range s.Plan(reqs) {
		if res.Err != nil {
			log.Errorf("❌ Skipping %s: %v", res.Request.FilenamePrefix, res.Err)
			errs = append(errs, res.Err)
			continue
		}
		for _, entry := range res.Entries {
			if _, err := s.queue.AddTask(ctx, &task.FetchTask{Request: res.Request.FilenamePrefix, Entry: entry}); err != nil {
				return count, fmt.Errorf("failed to enqueue %s: %w", entry.Filename, err)
			}
			count++
		}
		log.Infof("📨 Enqueued %d images for %s", len(res.Entries), res.Request.FilenamePrefix)
	}

	return count, errors.Join(errs...)
}

// RunWorkers consumes the fetch stream until ctx is cancelled.
func (s *Service) RunWorkers(ctx context.Context, numWorkers int) error {
	if s.queue == nil {
		return ErrQueueDisabled
	}

	var wg sync.WaitGroup
	stream := s.queue.StreamName((&task.FetchTask{}).TaskType())

	if s.minIdleTime > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.autoClaim(ctx, stream)
		}()
	}

	for i := 0; i < max(1, numWorkers); i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			consumer := fmt.Sprintf("fetch-worker-%d", workerID)
			log.Infof("🚀 Starting worker %d as consumer %s", workerID, consumer)
			for {
				select {
				case <-ctx.Done():
					log.Infof("🛑 Worker %d stopping", workerID)
					return
				default:
				}

				msg, err := s.queue.GetTask(ctx, consumer, stream)
				if err != nil {
					if ctx.Err() == nil {
						log.Errorf("❌ Failed to get task from %s: %v", stream, err)
					}
					select {
					case <-ctx.Done():
					case <-time.After(s.readBackoff):
					}
					continue
				}
				if msg == nil {
					continue
				}
				if err := s.processMessage(ctx, stream, msg); err != nil {
					log.Errorf("❌ Failed to process message %s: %v", msg.ID, err)
				}
			}
		}(i + 1)
	}

	wg.Wait()
	return nil
}

// autoClaim picks up entries abandoned by workers that died before acking.
func (s *Service) autoClaim(ctx context.Context, stream string) {
	ticker := time.NewTicker(s.minIdleTime)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			claimed, err := s.queue.AutoClaim(ctx, "fetch-autoclaimer", stream, s.minIdleTime)
			if err != nil {
				log.Errorf("❌ Failed to auto-claim messages for %s: %v", stream, err)
				continue
			}
			if len(claimed) > 0 {
				log.Infof("🔄 Auto-claimed %d messages from %s", len(claimed), stream)
			}
			for _, msg := range claimed {
				if err := s.processMessage(ctx, stream, &msg); err != nil {
					log.Errorf("❌ Failed to process auto-claimed message %s: %v", msg.ID, err)
				}
			}
		}
	}
}

// processMessage fetches one queued entry. Fetch failures are logged and the
// message is acked anyway; entries are not retried.
func (s *Service) processMessage(ctx context.Context, stream string, msg *redis.XMessage) error {
	fetchTask, err := queue.DecodeFetchTask(msg)
	if err != nil {
		if ackErr := s.queue.AckTask(ctx, stream, msg.ID); ackErr != nil {
			log.Warnf("⚠️ Failed to ack undecodable message %s: %v", msg.ID, ackErr)
		}
		return err
	}

	res := s.fetcher.FetchOne(ctx, fetchTask.Entry)
	if res.Err != nil && ctx.Err() != nil {
		// leave it pending so another worker can claim it
		return res.Err
	}

	if err := s.queue.AckTask(ctx, stream, msg.ID); err != nil {
		return fmt.Errorf("failed to ack message %s: %w", msg.ID, err)
	}
	return res.Err
}
