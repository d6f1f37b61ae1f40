package session

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
)

func TestSession_WritesJSONL(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, "summarize the repo")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	s.Emit("plan_parsed", map[string]interface{}{"steps": 2})
	s.Finish(nil)

	if s.Status != StatusComplete {
		t.Errorf("expected complete status, got %s", s.Status)
	}

	events, err := Read(filepath.Join(dir, s.ID+".jsonl"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	// session_start, plan_parsed, session_end
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Type != "session_start" {
		t.Errorf("expected session_start first, got %s", events[0].Type)
	}
	if events[1].Type != "plan_parsed" || events[1].Fields["steps"] != float64(2) {
		t.Errorf("unexpected event: %+v", events[1])
	}
	if events[2].Fields["status"] != StatusComplete {
		t.Errorf("expected complete session_end, got %+v", events[2])
	}
}

func TestSession_FailureRecordsError(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, "doomed")
	if err != nil {
		t.Fatal(err)
	}
	s.Finish(errors.New("planning failed"))

	if s.Status != StatusFailed || s.Error != "planning failed" {
		t.Errorf("unexpected terminal state: %s / %s", s.Status, s.Error)
	}

	events, err := Read(filepath.Join(dir, s.ID+".jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	last := events[len(events)-1]
	if last.Type != "session_end" || last.Fields["error"] != "planning failed" {
		t.Errorf("unexpected final event: %+v", last)
	}
}

func TestSession_MemoryOnly(t *testing.T) {
	s, err := New("", "ephemeral")
	if err != nil {
		t.Fatal(err)
	}
	s.Emit("plan_parsed", nil)
	s.Finish(nil)
	if s.CurrentSeqID() == 0 {
		t.Error("expected events to be sequenced even without a log file")
	}
}

// Concurrent tasks emit in parallel; sequence numbers must stay unique
// and dense.
func TestSession_ConcurrentEmit(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, "concurrent")
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Emit("tool_result", map[string]interface{}{"n": 1})
		}()
	}
	wg.Wait()
	s.Finish(nil)

	events, err := Read(filepath.Join(dir, s.ID+".jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[uint64]bool)
	for _, e := range events {
		if seen[e.SeqID] {
			t.Fatalf("duplicate sequence id %d", e.SeqID)
		}
		seen[e.SeqID] = true
	}
	// session_start + 20 emits + session_end
	if len(events) != 22 {
		t.Errorf("expected 22 events, got %d", len(events))
	}
}
