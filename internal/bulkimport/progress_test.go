package bulkimport

import (
	"encoding/json"
	"testing"
	"time"
)

func TestProgressDerived(t *testing.T) {
	tests := []struct {
		name      string
		p         Progress
		percent   float64
		speed     float64
		remaining time.Duration
	}{
		{"empty", Progress{}, 0, 0, 0},
		{"no time elapsed", Progress{Total: 100, Processed: 50, Successful: 50}, 50, 0, 0},
		{"half way", Progress{Total: 100, Processed: 50, Successful: 40, Failed: 10, Elapsed: 10 * time.Second}, 50, 5, 10 * time.Second},
		{"done", Progress{Total: 10, Processed: 10, Successful: 10, Elapsed: 2 * time.Second}, 100, 5, 0},
		{"overshoot clamps", Progress{Total: 10, Processed: 12, Elapsed: time.Second}, 100, 12, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Percentage(); got != tt.percent {
				t.Errorf("Percentage() = %v, want %v", got, tt.percent)
			}
			if got := tt.p.Speed(); got != tt.speed {
				t.Errorf("Speed() = %v, want %v", got, tt.speed)
			}
			if got := tt.p.Remaining(); got != tt.remaining {
				t.Errorf("Remaining() = %v, want %v", got, tt.remaining)
			}
		})
	}
}

func TestProgressMarshalJSON(t *testing.T) {
	p := Progress{Phase: StateProcessing, Total: 100, Processed: 25, Successful: 25, CurrentBatch: 1, TotalBatches: 4, Elapsed: 5 * time.Second}

	b, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}

	want := map[string]any{
		"phase":                  "processing",
		"percentage":             25.0,
		"processingSpeed":        5.0,
		"estimatedTimeRemaining": 15.0,
		"currentBatch":           1.0,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
}

func TestReporter_SubscribeOutsideRun(t *testing.T) {
	r := NewReporter()
	ch, unsubscribe := r.Subscribe()
	defer unsubscribe()

	if _, ok := <-ch; !ok {
		t.Fatal("expected the current snapshot before close")
	}
	if _, ok := <-ch; ok {
		t.Error("channel should be closed when no run is live")
	}
}

func TestReporter_FanOut(t *testing.T) {
	r := NewReporter()
	r.Reset(Progress{Phase: StateValidating})

	a, _ := r.Subscribe()
	b, unsubscribe := r.Subscribe()

	r.Update(func(p *Progress) { p.Total = 10 })
	unsubscribe()
	r.Update(func(p *Progress) { p.Processed, p.Successful = 10, 10 })
	r.Finish(StateCompleted)

	var last Progress
	n := 0
	for p := range a {
		last = p
		n++
	}
	if n != 4 {
		t.Errorf("subscriber a received %d snapshots, want 4", n)
	}
	if last.Phase != StateCompleted || last.Processed != 10 {
		t.Errorf("last snapshot = %+v", last)
	}

	n = 0
	for range b {
		n++
	}
	if n != 2 {
		t.Errorf("unsubscribed b received %d snapshots, want 2", n)
	}
}

func TestReporter_SlowSubscriberSeesLatest(t *testing.T) {
	r := NewReporter()
	r.Reset(Progress{})
	ch, _ := r.Subscribe()

	for i := 1; i <= 100; i++ {
		r.Update(func(p *Progress) { p.Processed = i })
	}
	r.Finish(StateCompleted)

	var last Progress
	for p := range ch {
		last = p
	}
	if last.Processed != 100 || last.Phase != StateCompleted {
		t.Errorf("last snapshot = %+v, want processed 100 completed", last)
	}
}
