package scheduler

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"git.home.luguber.info/inful/sitebuild/internal/errors"
)

// tracker records stage start/finish order safely across goroutines.
type tracker struct {
	mu     sync.Mutex
	events []string
}

func (tr *tracker) record(event string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.events = append(tr.events, event)
}

func (tr *tracker) index(event string) int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for i, e := range tr.events {
		if e == event {
			return i
		}
	}
	return -1
}

func noop(context.Context) error { return nil }

func TestRunHonorsDependencies(t *testing.T) {
	tr := &tracker{}
	action := func(name string) func(context.Context) error {
		return func(context.Context) error {
			tr.record("start:" + name)
			time.Sleep(5 * time.Millisecond)
			tr.record("end:" + name)
			return nil
		}
	}

	err := Run(t.Context(), []Stage{
		{Name: "B", Action: action("B"), DependsOn: []string{"A"}},
		{Name: "C", Action: action("C"), DependsOn: []string{"A"}, ParallelWith: []string{"B"}},
		{Name: "A", Action: action("A")},
	}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if tr.index("end:A") > tr.index("start:B") || tr.index("end:A") > tr.index("start:C") {
		t.Errorf("dependents started before A settled: %v", tr.events)
	}
}

func TestEligibleStagesRunConcurrently(t *testing.T) {
	var running, peak atomic.Int32
	barrier := make(chan struct{})
	action := func(context.Context) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-barrier
		running.Add(-1)
		return nil
	}

	go func() {
		// Give both stages time to launch, then release them together.
		time.Sleep(50 * time.Millisecond)
		close(barrier)
	}()

	err := Run(t.Context(), []Stage{
		{Name: "samples", Action: action},
		{Name: "frontend", Action: action, ParallelWith: []string{"samples"}},
	}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if peak.Load() != 2 {
		t.Errorf("peak concurrency = %d, want 2", peak.Load())
	}
}

func TestFailurePropagationLetsSiblingsFinish(t *testing.T) {
	var cFinished atomic.Bool
	bErr := stderrors.New("sample generator exited 2")

	err := Run(t.Context(), []Stage{
		{Name: "A", Action: noop},
		{Name: "B", DependsOn: []string{"A"}, Action: func(context.Context) error {
			return bErr
		}},
		{Name: "C", DependsOn: []string{"A"}, Action: func(context.Context) error {
			time.Sleep(30 * time.Millisecond)
			cFinished.Store(true)
			return nil
		}},
		{Name: "D", DependsOn: []string{"B"}, Action: func(context.Context) error {
			t.Error("D must not start after B failed")
			return nil
		}},
	}, nil)

	if err == nil {
		t.Fatal("expected failure")
	}
	sf, ok := errors.AsStageFailure(err)
	if !ok {
		t.Fatalf("error is %T, want StageFailure", err)
	}
	if sf.Stage != "B" {
		t.Errorf("failure attributed to %s, want B", sf.Stage)
	}
	if !stderrors.Is(err, bErr) {
		t.Error("underlying cause lost")
	}
	if !cFinished.Load() {
		t.Error("in-flight sibling C must be allowed to finish before failure surfaces")
	}
}

func TestFirstFailureWinsWhenSeveralFail(t *testing.T) {
	first := stderrors.New("first")
	second := stderrors.New("second")

	err := Run(t.Context(), []Stage{
		{Name: "fast", Action: func(context.Context) error {
			return first
		}},
		{Name: "slow", Action: func(context.Context) error {
			time.Sleep(40 * time.Millisecond)
			return second
		}},
	}, nil)

	sf, ok := errors.AsStageFailure(err)
	if !ok {
		t.Fatalf("error is %T, want StageFailure", err)
	}
	if sf.Stage != "fast" {
		t.Errorf("attributed to %s, want fast (first settled failure)", sf.Stage)
	}
}

func TestValidateRejectsBadGraphs(t *testing.T) {
	cases := []struct {
		name   string
		stages []Stage
	}{
		{"unknown dep", []Stage{{Name: "a", Action: noop, DependsOn: []string{"ghost"}}}},
		{"duplicate", []Stage{{Name: "a", Action: noop}, {Name: "a", Action: noop}}},
		{"nil action", []Stage{{Name: "a"}}},
		{"cycle", []Stage{
			{Name: "a", Action: noop, DependsOn: []string{"b"}},
			{Name: "b", Action: noop, DependsOn: []string{"a"}},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Run(context.Background(), tc.stages, nil)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.IsConfiguration(err) {
				t.Errorf("category = %s, want config", errors.GetCategory(err))
			}
		})
	}
}

func TestCanceledContextStopsNewStages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	err := Run(ctx, []Stage{
		{Name: "A", Action: func(context.Context) error {
			cancel()
			return nil
		}},
		{Name: "B", DependsOn: []string{"A"}, Action: func(context.Context) error {
			t.Error("B must not start after cancellation")
			return nil
		}},
	}, nil)

	if err == nil {
		t.Fatal("expected failure from canceled context")
	}
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("cause = %v, want context.Canceled", err)
	}
}
