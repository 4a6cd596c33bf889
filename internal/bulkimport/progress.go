package bulkimport

import (
	"encoding/json"
	"sync"
	"time"
)

// Progress is a snapshot of a run. Only counters are stored; percentage,
// speed and ETA are computed from them.
type Progress struct {
	Phase        State
	Total        int // Records handed to the batch processor
	Processed    int // Successful + Failed
	Successful   int
	Failed       int
	CurrentBatch int // 1-based, 0 before the first batch resolves
	TotalBatches int
	Elapsed      time.Duration // Time since processing started
}

// Percentage returns Processed/Total × 100, clamped to [0, 100].
func (p Progress) Percentage() float64 {
	if p.Total <= 0 {
		return 0
	}
	pct := float64(p.Processed) / float64(p.Total) * 100
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

// Speed returns processed records per second, or 0 before any time elapsed.
func (p Progress) Speed() float64 {
	secs := p.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(p.Processed) / secs
}

// Remaining estimates the time left at the current speed. It is 0 when the
// speed is unknown or nothing remains.
func (p Progress) Remaining() time.Duration {
	speed := p.Speed()
	left := p.Total - p.Processed
	if speed <= 0 || left <= 0 {
		return 0
	}
	return time.Duration(float64(left) / speed * float64(time.Second))
}

type progressJSON struct {
	Phase                  State   `json:"phase"`
	Total                  int     `json:"total"`
	Processed              int     `json:"processed"`
	Successful             int     `json:"successful"`
	Failed                 int     `json:"failed"`
	Percentage             float64 `json:"percentage"`
	CurrentBatch           int     `json:"currentBatch"`
	TotalBatches           int     `json:"totalBatches"`
	ElapsedSeconds         float64 `json:"elapsedSeconds"`
	ProcessingSpeed        float64 `json:"processingSpeed"`
	EstimatedTimeRemaining float64 `json:"estimatedTimeRemaining"`
}

// MarshalJSON includes the derived fields next to the counters.
func (p Progress) MarshalJSON() ([]byte, error) {
	return json.Marshal(progressJSON{
		Phase:                  p.Phase,
		Total:                  p.Total,
		Processed:              p.Processed,
		Successful:             p.Successful,
		Failed:                 p.Failed,
		Percentage:             p.Percentage(),
		CurrentBatch:           p.CurrentBatch,
		TotalBatches:           p.TotalBatches,
		ElapsedSeconds:         p.Elapsed.Seconds(),
		ProcessingSpeed:        p.Speed(),
		EstimatedTimeRemaining: p.Remaining().Seconds(),
	})
}

// Reporter holds the current progress of a run and fans snapshots out to
// subscribers. Slow subscribers miss intermediate snapshots but always see
// the latest one.
type Reporter struct {
	mu        sync.Mutex
	current   Progress
	live      bool
	listeners map[int]chan Progress
	nextID    int
}

// NewReporter returns an idle reporter.
func NewReporter() *Reporter {
	return &Reporter{listeners: make(map[int]chan Progress)}
}

// Snapshot returns the current progress.
func (r *Reporter) Snapshot() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Subscribe returns a channel that receives the current snapshot followed by
// every update until the run ends, when the channel is closed. Outside a run
// the channel carries the last snapshot and is closed at once. The returned
// function unsubscribes early.
func (r *Reporter) Subscribe() (<-chan Progress, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan Progress, 16)
	ch <- r.current
	if !r.live {
		close(ch)
		return ch, func() {}
	}

	id := r.nextID
	r.nextID++
	r.listeners[id] = ch

	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if l, ok := r.listeners[id]; ok {
			delete(r.listeners, id)
			close(l)
		}
	}
}

// Reset starts a new run from p.
func (r *Reporter) Reset(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = p
	r.live = true
	r.notify()
}

// Update applies fn to the current progress and publishes the result.
func (r *Reporter) Update(fn func(*Progress)) Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.current)
	r.notify()
	return r.current
}

// Finish publishes the terminal snapshot and closes every subscriber.
func (r *Reporter) Finish(phase State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current.Phase = phase
	r.notify()
	for id, ch := range r.listeners {
		close(ch)
		delete(r.listeners, id)
	}
	r.live = false
}

// Clear drops the stored snapshot. Subscribers are left untouched.
func (r *Reporter) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = Progress{}
}

// notify must be called with r.mu held.
func (r *Reporter) notify() {
	for _, ch := range r.listeners {
		select {
		case ch <- r.current:
			continue
		default:
		}
		// Full: drop the oldest snapshot so the newest one gets through.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- r.current:
		default:
		}
	}
}
