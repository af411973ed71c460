package progress

import (
	"context"
	"sync"
	"time"
)

// Delta represents an incremental counter change.
type Delta struct {
	Turns      int
	Requests   int
	Approved   int
	Denied     int
	Executions int
	Failed     int
	Rounds     int
}

// Progress keeps aggregated counters for one session. It is safe for
// concurrent use.
type Progress struct {
	SessionID string    `json:"sessionId"`
	StartedAt time.Time `json:"startedAt"`

	Turns      int `json:"turns"`
	Requests   int `json:"requests"`
	Approved   int `json:"approved"`
	Denied     int `json:"denied"`
	Executions int `json:"executions"`
	Failed     int `json:"failed"`
	Rounds     int `json:"rounds"`

	mu       sync.Mutex
	onChange func(Progress)
}

// New creates a tracker for sessionID.
func New(sessionID string, onChange func(Progress)) *Progress {
	return &Progress{SessionID: sessionID, StartedAt: time.Now(), onChange: onChange}
}

// Update applies d. A registered onChange callback receives a copy of the
// updated counters outside the critical section.
func (p *Progress) Update(d Delta) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.Turns += d.Turns
	p.Requests += d.Requests
	p.Approved += d.Approved
	p.Denied += d.Denied
	p.Executions += d.Executions
	p.Failed += d.Failed
	p.Rounds += d.Rounds
	snapshot := p.copyLocked()
	cb := p.onChange
	p.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// Snapshot returns a copy of the counters.
func (p *Progress) Snapshot() Progress {
	if p == nil {
		return Progress{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.copyLocked()
}

func (p *Progress) copyLocked() Progress {
	return Progress{
		SessionID:  p.SessionID,
		StartedAt:  p.StartedAt,
		Turns:      p.Turns,
		Requests:   p.Requests,
		Approved:   p.Approved,
		Denied:     p.Denied,
		Executions: p.Executions,
		Failed:     p.Failed,
		Rounds:     p.Rounds,
	}
}

// OnChange registers a callback invoked after every Update. Passing nil
// disables it.
func (p *Progress) OnChange(cb func(Progress)) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.onChange = cb
	p.mu.Unlock()
}

type trackerKeyT struct{}

var trackerKey trackerKeyT

// WithTracker embeds tracker in ctx.
func WithTracker(ctx context.Context, tracker *Progress) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, trackerKey, tracker)
}

// FromContext extracts the tracker from ctx.
func FromContext(ctx context.Context) (*Progress, bool) {
	if ctx == nil {
		return nil, false
	}
	tr, ok := ctx.Value(trackerKey).(*Progress)
	return tr, ok
}

// UpdateCtx applies d to the tracker carried by ctx, if any.
func UpdateCtx(ctx context.Context, d Delta) {
	if tr, ok := FromContext(ctx); ok {
		tr.Update(d)
	}
}
