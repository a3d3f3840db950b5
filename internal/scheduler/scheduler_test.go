package scheduler

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/iptvterm/terminator/internal/check"
)

// fakeXtream scripts per-key results and records call order.
type fakeXtream struct {
	mu      sync.Mutex
	results map[string]check.VerificationResult
	calls   []string
}

func (f *fakeXtream) lookup(key string, c check.Candidate, proto check.Protocol) check.VerificationResult {
	f.mu.Lock()
	f.calls = append(f.calls, key)
	r, ok := f.results[key]
	f.mu.Unlock()
	if !ok {
		r = check.VerificationResult{Protocol: proto, Outcome: check.OutcomeFailed, Reason: check.ReasonNetworkError}
	}
	return r
}

func (f *fakeXtream) VerifyAccount(ctx context.Context, c check.AccountCandidate) check.VerificationResult {
	return f.lookup("account:"+c.Key(), c, check.ProtocolXtream)
}

func (f *fakeXtream) VerifyMAC(ctx context.Context, c check.MacCandidate) check.VerificationResult {
	return f.lookup("mac:"+c.Key(), c, check.ProtocolXtream)
}

type fakeStalker struct {
	mu      sync.Mutex
	results map[string]check.VerificationResult
	calls   []string
}

func (f *fakeStalker) Solve(ctx context.Context, c check.MacCandidate) check.VerificationResult {
	f.mu.Lock()
	f.calls = append(f.calls, c.Key())
	r, ok := f.results[c.Key()]
	f.mu.Unlock()
	if !ok {
		r = check.VerificationResult{Protocol: check.ProtocolStalker, Outcome: check.OutcomeFailed, Reason: check.ReasonHandshakeFailed}
	}
	return r
}

func active(host, user, pass string) check.VerificationResult {
	return check.VerificationResult{
		Host: host, Username: user, Password: pass,
		Protocol: check.ProtocolXtream, Outcome: check.OutcomeActive,
		Expiry: check.ExpiryUnlimited, DaysLeft: check.DaysUnlimited,
	}
}

func TestRun_failureIsolatedAndOrderDeterministic(t *testing.T) {
	cands := []check.Candidate{
		check.AccountCandidate{Host: "http://a.tv", Username: "u1", Password: "p1"},
		check.AccountCandidate{Host: "http://b.tv", Username: "u2", Password: "p2"},
		check.AccountCandidate{Host: "http://c.tv", Username: "u3", Password: "p3"},
	}
	fx := &fakeXtream{results: map[string]check.VerificationResult{
		"account:http://a.tv|u1": active("http://a.tv", "u1", "p1"),
		// b.tv is absent: scripted connection failure
		"account:http://c.tv|u3": active("http://c.tv", "u3", "p3"),
	}}
	s := New(fx, &fakeStalker{}, Options{Workers: 4, OutputDir: t.TempDir()})

	sum, successes, err := s.Run(context.Background(), cands)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Checked != 3 || sum.Active != 2 {
		t.Errorf("checked=%d active=%d", sum.Checked, sum.Active)
	}
	if len(successes) != 2 || successes[0].Username != "u1" || successes[1].Username != "u3" {
		t.Errorf("successes out of submission order: %+v", successes)
	}

	data, err := os.ReadFile(sum.ReportPath)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(data), "URL: "); n != 2 {
		t.Errorf("report has %d records, want 2:\n%s", n, data)
	}
	if strings.Contains(string(data), "u2") {
		t.Errorf("failed candidate leaked into report:\n%s", data)
	}
}

func TestRun_macFallsThroughToStalker(t *testing.T) {
	cand := check.MacCandidate{Host: "http://x.tv", MAC: "00:1A:79:AA:BB:CC"}
	fx := &fakeXtream{results: map[string]check.VerificationResult{}} // xtream misses
	fs := &fakeStalker{results: map[string]check.VerificationResult{
		cand.Key(): {
			Host: cand.Host, MAC: cand.MAC,
			Protocol: check.ProtocolStalker, Outcome: check.OutcomeActive,
			Expiry: "2026-12-31", DaysLeft: 120, Token: "tok",
		},
	}}
	s := New(fx, fs, Options{Workers: 1, OutputDir: t.TempDir()})

	_, successes, err := s.Run(context.Background(), []check.Candidate{cand})
	if err != nil {
		t.Fatal(err)
	}
	if len(successes) != 1 || successes[0].Protocol != check.ProtocolStalker {
		t.Fatalf("successes=%+v", successes)
	}
	if len(fx.calls) != 1 || fx.calls[0] != "mac:"+cand.Key() {
		t.Errorf("xtream calls=%v, want device_mac attempt first", fx.calls)
	}
	if len(fs.calls) != 1 {
		t.Errorf("stalker calls=%v", fs.calls)
	}
}

func TestRun_xtreamHitSkipsStalker(t *testing.T) {
	cand := check.MacCandidate{Host: "http://x.tv", MAC: "00:1A:79:AA:BB:CC"}
	fx := &fakeXtream{results: map[string]check.VerificationResult{
		"mac:" + cand.Key(): {
			Host: cand.Host, MAC: cand.MAC,
			Protocol: check.ProtocolXtream, Outcome: check.OutcomeActive,
			Expiry: check.ExpiryUnlimited, DaysLeft: check.DaysUnlimited,
		},
	}}
	fs := &fakeStalker{}
	s := New(fx, fs, Options{Workers: 1, OutputDir: t.TempDir()})

	_, successes, err := s.Run(context.Background(), []check.Candidate{cand})
	if err != nil {
		t.Fatal(err)
	}
	if len(successes) != 1 || successes[0].Protocol != check.ProtocolXtream {
		t.Fatalf("successes=%+v", successes)
	}
	if len(fs.calls) != 0 {
		t.Errorf("stalker called %v despite xtream success", fs.calls)
	}
}

func TestRun_emptyInput(t *testing.T) {
	s := New(&fakeXtream{}, &fakeStalker{}, Options{Workers: 2, OutputDir: t.TempDir()})
	sum, successes, err := s.Run(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Checked != 0 || sum.Active != 0 || len(successes) != 0 {
		t.Errorf("sum=%+v successes=%+v", sum, successes)
	}
	if sum.ReportPath == "" {
		t.Error("empty run should still have a report path")
	}
}

func TestRun_cancelledContextStopsFeeding(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cands := []check.Candidate{
		check.AccountCandidate{Host: "http://a.tv", Username: "u", Password: "p"},
		check.AccountCandidate{Host: "http://b.tv", Username: "u", Password: "p"},
	}
	fx := &fakeXtream{results: map[string]check.VerificationResult{}}
	// pacing makes the workers observe cancellation before any attempt
	s := New(fx, &fakeStalker{}, Options{Workers: 1, RatePerSec: 100, OutputDir: t.TempDir()})

	sum, _, err := s.Run(ctx, cands)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Checked != 0 {
		t.Errorf("checked=%d, want 0 with a pre-cancelled context", sum.Checked)
	}
}

func TestNew_defaultWorkers(t *testing.T) {
	s := New(&fakeXtream{}, &fakeStalker{}, Options{})
	if s.opts.Workers != 8 {
		t.Errorf("Workers=%d, want 8", s.opts.Workers)
	}
}
