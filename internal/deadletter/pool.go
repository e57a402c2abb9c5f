package deadletter

import (
	"context"
	"sync"
)

// retryResult is what a worker reports for one entry.
type retryResult struct {
	entry   Entry
	outcome string
	err     error
}

// retryPool fans pending entries out to a fixed number of workers. Results
// land on a channel sized for the whole batch, so workers never block on it.
type retryPool struct {
	entries chan Entry
	results chan retryResult
	retry   func(ctx context.Context, e Entry) (string, error)
	wg      sync.WaitGroup
}

func newRetryPool(ctx context.Context, workers, batch int, retry func(context.Context, Entry) (string, error)) *retryPool {
	if workers < 1 {
		workers = 1
	}
	workers = min(workers, max(batch, 1))
	p := &retryPool{
		entries: make(chan Entry, batch),
		results: make(chan retryResult, batch),
		retry:   retry,
	}
	for range workers {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.work(ctx)
		}()
	}
	return p
}

func (p *retryPool) work(ctx context.Context) {
	for {
		select {
		case e, ok := <-p.entries:
			if !ok {
				return
			}
			outcome, err := p.retry(ctx, e)
			p.results <- retryResult{entry: e, outcome: outcome, err: err}
		case <-ctx.Done():
			return
		}
	}
}

// submit queues e. It returns false once ctx is done.
func (p *retryPool) submit(ctx context.Context, e Entry) bool {
	select {
	case p.entries <- e:
		return true
	case <-ctx.Done():
		return false
	}
}

// drain stops intake, waits for the workers and returns every result
// reported. Entries still queued when ctx ended are not in the result.
func (p *retryPool) drain() []retryResult {
	close(p.entries)
	p.wg.Wait()
	close(p.results)
	out := make([]retryResult, 0, len(p.results))
	for r := range p.results {
		out = append(out, r)
	}
	return out
}
