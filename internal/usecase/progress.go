package usecase

import (
	"sync"
	"sync/atomic"
	"time"
)

// Progress tracks the stage a batch run is in. A nil *Progress is valid and
// records nothing.
type Progress struct {
	mu       sync.RWMutex
	runID    string
	stage    string
	total    int64
	started  time.Time
	finished time.Time
	err      string

	done atomic.Int64
}

// ProgressSnapshot is the JSON view served on /status.
type ProgressSnapshot struct {
	RunID   string  `json:"run_id,omitempty"`
	Stage   string  `json:"stage"`
	Done    int64   `json:"done"`
	Total   int64   `json:"total"`
	Running bool    `json:"running"`
	Elapsed float64 `json:"elapsed_seconds"`
	Error   string  `json:"error,omitempty"`
}

func NewProgress() *Progress { return &Progress{} }

// SetRunID labels the snapshots of the current run.
func (p *Progress) SetRunID(id string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.runID = id
	p.mu.Unlock()
}

// Begin starts a stage expecting total units of work.
func (p *Progress) Begin(stage string, total int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.stage = stage
	p.total = int64(total)
	p.started = time.Now()
	p.finished = time.Time{}
	p.err = ""
	p.done.Store(0)
	p.mu.Unlock()
}

// Advance marks one unit done.
func (p *Progress) Advance() {
	if p == nil {
		return
	}
	p.done.Add(1)
}

// End closes the current stage.
func (p *Progress) End(err error) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.finished = time.Now()
	if err != nil {
		p.err = err.Error()
	}
	p.mu.Unlock()
}

func (p *Progress) Snapshot() ProgressSnapshot {
	if p == nil {
		return ProgressSnapshot{}
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := ProgressSnapshot{
		RunID: p.runID,
		Stage: p.stage,
		Done:  p.done.Load(),
		Total: p.total,
		Error: p.err,
	}
	switch {
	case p.started.IsZero():
	case p.finished.IsZero():
		s.Running = true
		s.Elapsed = time.Since(p.started).Seconds()
	default:
		s.Elapsed = p.finished.Sub(p.started).Seconds()
	}
	return s
}
