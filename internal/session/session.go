// Package session records a planning session's chronological event
// stream and persists it as append-only JSONL for later inspection.
package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Status constants for sessions.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Event is a single entry in the session log.
type Event struct {
	SeqID     uint64                 `json:"seq"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Session is one planning run's forensic record.
type Session struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	seq  uint64
	mu   sync.Mutex
	file *os.File
	w    *bufio.Writer
}

// New creates a session and opens its JSONL log under dir. An empty dir
// keeps the session in memory only.
func New(dir, prompt string) (*Session, error) {
	s := &Session{
		ID:        uuid.New().String(),
		Prompt:    prompt,
		Status:    StatusRunning,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if dir == "" {
		return s, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating session dir: %w", err)
	}
	path := filepath.Join(dir, s.ID+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening session log: %w", err)
	}
	s.file = f
	s.w = bufio.NewWriter(f)

	s.Emit("session_start", map[string]interface{}{"prompt": prompt})
	return s, nil
}

// Emit appends one event, assigning it the next sequence number.
// Safe for concurrent use.
func (s *Session) Emit(event string, fields map[string]interface{}) {
	e := Event{
		SeqID:     atomic.AddUint64(&s.seq, 1),
		Type:      event,
		Timestamp: time.Now(),
		Fields:    fields,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.UpdatedAt = e.Timestamp
	if s.w == nil {
		return
	}
	line, err := json.Marshal(e)
	if err != nil {
		return
	}
	s.w.Write(line)
	s.w.WriteByte('\n')
	s.w.Flush()
}

// CurrentSeqID returns the last assigned sequence number.
func (s *Session) CurrentSeqID() uint64 {
	return atomic.LoadUint64(&s.seq)
}

// Finish records the terminal status and closes the log.
func (s *Session) Finish(err error) {
	if err != nil {
		s.mu.Lock()
		s.Status = StatusFailed
		s.Error = err.Error()
		s.mu.Unlock()
		s.Emit("session_end", map[string]interface{}{"status": StatusFailed, "error": err.Error()})
	} else {
		s.mu.Lock()
		s.Status = StatusComplete
		s.mu.Unlock()
		s.Emit("session_end", map[string]interface{}{"status": StatusComplete})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		s.w.Flush()
		s.file.Close()
		s.file = nil
		s.w = nil
	}
}

// Read loads every event from a session log file.
func Read(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("corrupt session log: %w", err)
		}
		events = append(events, e)
	}
	return events, scanner.Err()
}
