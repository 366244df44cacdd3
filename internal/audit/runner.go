package audit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/dkrizhanovskyi/ssh-config-auditor/internal/transport"
)

// Outcome pairs one descriptor's report with its terminal error, if any.
// Exactly one of Report and Err is set.
type Outcome struct {
	Host   string
	Report *Report
	Err    error
}

// Runner audits multiple independent hosts concurrently. Each audit owns
// its session and report; nothing is shared across targets beyond the
// read-only rule set.
type Runner struct {
	Auditor     *Auditor
	Concurrency int // maximum in-flight audits
	RateLimit   int // new audits per second (0 disables limiting)
}

// RunAll audits every descriptor and returns outcomes in input order.
func (r *Runner) RunAll(ctx context.Context, targets []transport.Descriptor) []Outcome {
	concurrency := r.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	var limiter *rate.Limiter
	if r.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.RateLimit), r.RateLimit)
	}

	sem := make(chan struct{}, concurrency)
	outcomes := make([]Outcome, len(targets))
	var wg sync.WaitGroup

	for i, d := range targets {
		wg.Add(1)
		go func(i int, d transport.Descriptor) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					outcomes[i] = Outcome{Host: d.Host, Err: err}
					return
				}
			}

			report, err := r.Auditor.Run(ctx, d)
			outcomes[i] = Outcome{Host: d.Host, Report: report, Err: err}
		}(i, d)
	}

	wg.Wait()
	return outcomes
}
