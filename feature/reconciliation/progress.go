package reconciliation

import (
	"sort"
	"sync"
	"time"

	"payment-reconciler/core/reconcile"
)

// Progress is the live phase of an in-flight run.
type Progress struct {
	RunID      string              `json:"run_id"`
	TerminalID string              `json:"terminal_id"`
	Period     string              `json:"period"`
	Phase      reconcile.RunStatus `json:"phase"`
	StartedAt  time.Time           `json:"started_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// Registry tracks in-flight runs. It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]Progress
	now  func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{runs: make(map[string]Progress), now: now}
}

func (r *Registry) start(run reconcile.ReconciliationRun) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = Progress{
		RunID:      run.ID,
		TerminalID: run.TerminalID,
		Period:     run.Period,
		Phase:      run.Status,
		StartedAt:  run.StartedAt,
		UpdatedAt:  r.now(),
	}
}

func (r *Registry) set(runID string, phase reconcile.RunStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.runs[runID]
	if !ok {
		return
	}
	p.Phase = phase
	p.UpdatedAt = r.now()
	r.runs[runID] = p
}

func (r *Registry) finish(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, runID)
}

// Active returns the in-flight runs, oldest first.
func (r *Registry) Active() []Progress {
	r.mu.RLock()
	out := make([]Progress, 0, len(r.runs))
	for _, p := range r.runs {
		out = append(out, p)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].RunID < out[j].RunID
	})
	return out
}
