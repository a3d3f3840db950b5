// Package scheduler drives bulk verification: it fans candidates out over a
// bounded worker pool, applies the xtream-then-stalker fallback order for
// MAC candidates, and persists successes to a per-run report.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/iptvterm/terminator/internal/check"
	"github.com/iptvterm/terminator/internal/report"
)

// XtreamProber is the slice of the xtream prober the scheduler needs.
type XtreamProber interface {
	VerifyAccount(ctx context.Context, c check.AccountCandidate) check.VerificationResult
	VerifyMAC(ctx context.Context, c check.MacCandidate) check.VerificationResult
}

// StalkerSolver is the slice of the stalker solver the scheduler needs.
type StalkerSolver interface {
	Solve(ctx context.Context, c check.MacCandidate) check.VerificationResult
}

// Options tune one bulk run.
type Options struct {
	Workers    int
	RatePerSec float64 // 0 = unpaced
	OutputDir  string
	History    *report.History // optional archive
}

// Summary describes a finished run.
type Summary struct {
	RunID      string
	StartedAt  time.Time
	Checked    int
	Active     int
	ReportPath string
}

// Scheduler runs candidates through the probers with independent failure
// domains: one candidate's failure never aborts the batch.
type Scheduler struct {
	xtream  XtreamProber
	stalker StalkerSolver
	opts    Options
}

// New builds a scheduler. Zero worker count falls back to 8.
func New(x XtreamProber, s StalkerSolver, opts Options) *Scheduler {
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	return &Scheduler{xtream: x, stalker: s, opts: opts}
}

// Run verifies every candidate exactly once and returns the summary plus
// the Active results in first-submitted order (deterministic selection
// lists regardless of worker interleaving). Empty input is a zero-result
// run, not an error. Cancelling ctx stops new attempts promptly; the
// report still covers completed candidates.
func (s *Scheduler) Run(ctx context.Context, candidates []check.Candidate) (Summary, []check.VerificationResult, error) {
	start := time.Now()
	w, err := report.NewWriter(s.opts.OutputDir)
	if err != nil {
		return Summary{}, nil, err
	}
	defer w.Close()

	sum := Summary{RunID: w.RunID(), StartedAt: start, ReportPath: w.Path()}
	if len(candidates) == 0 {
		return sum, nil, nil
	}

	var limiter *rate.Limiter
	if s.opts.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.opts.RatePerSec), 1)
	}

	type job struct {
		idx int
		c   check.Candidate
	}
	jobs := make(chan job)
	results := make([]*check.VerificationResult, len(candidates))
	var mu sync.Mutex
	var checked int

	var wg sync.WaitGroup
	for i := 0; i < s.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil {
						return
					}
				}
				r := s.verifyOne(ctx, j.c)
				mu.Lock()
				results[j.idx] = &r
				checked++
				if r.IsActive() {
					if err := w.Append(r); err != nil {
						log.Printf("[scheduler] report append: %v", err)
					}
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for i, c := range candidates {
		select {
		case jobs <- job{idx: i, c: c}:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	// Successes in input order: the selection list must be deterministic
	// even though workers finish out of order.
	var successes []check.VerificationResult
	for _, r := range results {
		if r != nil && r.IsActive() {
			successes = append(successes, *r)
		}
	}
	sum.Checked = checked
	sum.Active = len(successes)

	if s.opts.History != nil {
		if err := s.opts.History.RecordRun(sum.RunID, start, checked, successes); err != nil {
			log.Printf("[scheduler] history: %v", err)
		}
	}
	log.Printf("[scheduler] run %s: %d checked, %d active, report %s",
		sum.RunID, sum.Checked, sum.Active, sum.ReportPath)
	return sum, successes, nil
}

// verifyOne applies the protocol order. Account candidates only speak
// Xtream. MAC candidates try the Xtream device_mac variant first and fall
// through to the Stalker handshake only when that is not Active: some
// portals expose just one of the two protocols, and the fixed order avoids
// false negatives without redundant work on Xtream-capable servers.
func (s *Scheduler) verifyOne(ctx context.Context, c check.Candidate) check.VerificationResult {
	var r check.VerificationResult
	switch cand := c.(type) {
	case check.AccountCandidate:
		r = s.xtream.VerifyAccount(ctx, cand)
	case check.MacCandidate:
		r = s.xtream.VerifyMAC(ctx, cand)
		if !r.IsActive() {
			r = s.stalker.Solve(ctx, cand)
		}
	}
	count(r)
	if !r.IsActive() {
		log.Printf("[scheduler] %s (%s): %s %s", c.Key(), r.Protocol, r.Outcome, r.Reason)
	}
	return r
}

func count(r check.VerificationResult) {
	candidatesChecked.WithLabelValues(string(r.Protocol), string(r.Outcome)).Inc()
	if r.Outcome == check.OutcomeFailed {
		failuresByReason.WithLabelValues(string(r.Reason)).Inc()
	}
}
