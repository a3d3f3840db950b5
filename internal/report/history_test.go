package report

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/iptvterm/terminator/internal/check"
)

func TestHistory_recordAndCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	h, err := OpenHistory(path)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	hits := []check.VerificationResult{
		{Host: "http://a.tv", Username: "u1", Password: "p1", Protocol: check.ProtocolXtream, Outcome: check.OutcomeActive, Expiry: "2026-12-31", DaysLeft: 100},
		{Host: "http://b.tv", MAC: "00:1A:79:AA:BB:CC", Protocol: check.ProtocolStalker, Outcome: check.OutcomeActive, Expiry: check.ExpiryUnlimited, DaysLeft: check.DaysUnlimited},
	}
	if err := h.RecordRun("run-1", time.Now(), 5, hits); err != nil {
		t.Fatal(err)
	}
	n, err := h.HitCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("HitCount=%d, want 2", n)
	}

	// second run appends, never truncates
	if err := h.RecordRun("run-2", time.Now(), 1, hits[:1]); err != nil {
		t.Fatal(err)
	}
	if n, _ := h.HitCount(); n != 3 {
		t.Errorf("HitCount=%d, want 3 after second run", n)
	}
}

func TestHistory_duplicateRunIDRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	h, err := OpenHistory(path)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	if err := h.RecordRun("run-1", time.Now(), 0, nil); err != nil {
		t.Fatal(err)
	}
	if err := h.RecordRun("run-1", time.Now(), 0, nil); err == nil {
		t.Error("want primary key violation for duplicate run id")
	}
}
