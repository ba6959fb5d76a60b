package runner

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sentinelhq/domainwatch/internal/model"
)

// evalFunc evaluates one domain. ok is false when the unit of work was
// skipped (cancellation, limiter shutdown) and no result was produced.
type evalFunc func(ctx context.Context, domain string) (result model.DomainHealthResult, ok bool)

// pool is a bounded worker pool for per-domain evaluations. Results
// flow to a single consumer over the results channel so summary
// aggregation stays single-writer.
type pool struct {
	workers int
	jobs    chan string
	results chan model.DomainHealthResult
	wg      sync.WaitGroup
}

func newPool(workers, queueSize int) *pool {
	return &pool{
		workers: workers,
		jobs:    make(chan string, queueSize),
		results: make(chan model.DomainHealthResult, queueSize),
	}
}

// start launches the workers. The results channel is closed once all
// workers have drained the job queue.
func (p *pool) start(ctx context.Context, eval evalFunc) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i, eval)
	}
	go func() {
		p.wg.Wait()
		close(p.results)
	}()
}

// dispatch feeds domains to the workers and closes the job queue.
// Feeding stops early when the context is cancelled; domains never
// handed to a worker simply produce no result.
func (p *pool) dispatch(ctx context.Context, domains []string) {
	go func() {
		defer close(p.jobs)
		for _, domain := range domains {
			select {
			case p.jobs <- domain:
			case <-ctx.Done():
				slog.Info("Stopped dispatching domains, run cancelled")
				return
			}
		}
	}()
}

// collect returns the results channel
func (p *pool) collect() <-chan model.DomainHealthResult {
	return p.results
}

func (p *pool) worker(ctx context.Context, id int, eval evalFunc) {
	defer p.wg.Done()

	for domain := range p.jobs {
		result, ok := eval(ctx, domain)
		if !ok {
			slog.Debug("Domain evaluation skipped",
				"worker_id", id,
				"domain", domain,
			)
			continue
		}
		p.results <- result
	}
}
