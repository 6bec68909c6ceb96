// Package scheduler executes a fixed graph of named build stages, honoring
// dependency order, running independent stages concurrently, and propagating
// the first failure by refusing to start not-yet-started stages.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/sitebuild/internal/errors"
	"git.home.luguber.info/inful/sitebuild/internal/logfields"
	"git.home.luguber.info/inful/sitebuild/internal/metrics"
)

// Stage is a named unit of build work with explicit dependencies.
type Stage struct {
	Name   string
	Action func(ctx context.Context) error

	// DependsOn lists stages that must complete successfully first.
	DependsOn []string

	// ParallelWith documents stages this one is expected to overlap with.
	// It is intent annotation only; execution order derives from DependsOn.
	ParallelWith []string
}

type completion struct {
	name string
	err  error
	dur  time.Duration
}

// Run executes the stage graph. All stages whose dependencies are satisfied
// launch concurrently. A failing stage never cancels in-flight siblings; it
// only prevents future stages from starting. Run returns nil when every
// stage completed, or the first StageFailure once every launched stage has
// settled. Callers must not depend on ordering among stages made eligible at
// the same instant.
func Run(ctx context.Context, stages []Stage, rec metrics.Recorder) error {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	if err := validate(stages); err != nil {
		return err
	}

	pending := make(map[string]Stage, len(stages))
	for _, st := range stages {
		pending[st.Name] = st
	}
	done := make(map[string]bool, len(stages))
	results := make(chan completion)

	var firstFailure *errors.StageFailure
	inflight := 0

	launchEligible := func() {
		if firstFailure != nil {
			return
		}
		for name, st := range pending {
			if !depsSatisfied(st, done) {
				continue
			}
			if ctx.Err() != nil {
				firstFailure = errors.NewStageFailure(name, ctx.Err())
				return
			}
			delete(pending, name)
			inflight++
			slog.Info("Stage started", logfields.Stage(name))
			go func(st Stage) {
				t0 := time.Now()
				err := st.Action(ctx)
				results <- completion{name: st.Name, err: err, dur: time.Since(t0)}
			}(st)
		}
	}

	launchEligible()
	for inflight > 0 {
		c := <-results
		inflight--
		rec.ObserveStageDuration(c.name, c.dur)

		if c.err != nil {
			rec.IncStageResult(c.name, metrics.ResultFailed)
			slog.Error("Stage failed", logfields.Stage(c.name),
				logfields.DurationMS(float64(c.dur.Milliseconds())), logfields.Error(c.err))
			if firstFailure == nil {
				firstFailure = errors.NewStageFailure(c.name, c.err)
			}
		} else {
			rec.IncStageResult(c.name, metrics.ResultSuccess)
			slog.Info("Stage completed", logfields.Stage(c.name),
				logfields.DurationMS(float64(c.dur.Milliseconds())))
			done[c.name] = true
			launchEligible()
		}
	}

	if firstFailure != nil {
		for name := range pending {
			rec.IncStageResult(name, metrics.ResultSkipped)
			slog.Warn("Stage skipped after earlier failure", logfields.Stage(name))
		}
		return firstFailure
	}
	return nil
}

func depsSatisfied(st Stage, done map[string]bool) bool {
	for _, dep := range st.DependsOn {
		if !done[dep] {
			return false
		}
	}
	return true
}

// validate rejects graphs the runner cannot execute: duplicate names,
// unknown dependencies and cycles.
func validate(stages []Stage) error {
	names := make(map[string]bool, len(stages))
	for _, st := range stages {
		if st.Name == "" {
			return errors.Configuration("stage with empty name")
		}
		if st.Action == nil {
			return errors.Configuration("stage %s has no action", st.Name)
		}
		if names[st.Name] {
			return errors.Configuration("duplicate stage name: %s", st.Name)
		}
		names[st.Name] = true
	}

	indeg := make(map[string]int, len(stages))
	dependents := make(map[string][]string)
	for _, st := range stages {
		indeg[st.Name] += 0
		for _, dep := range st.DependsOn {
			if !names[dep] {
				return errors.Configuration("stage %s depends on unknown stage %s", st.Name, dep)
			}
			indeg[st.Name]++
			dependents[dep] = append(dependents[dep], st.Name)
		}
	}

	// Kahn's algorithm: every node must drain or the graph has a cycle.
	var queue []string
	for name, d := range indeg {
		if d == 0 {
			queue = append(queue, name)
		}
	}
	drained := 0
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		drained++
		for _, dep := range dependents[name] {
			indeg[dep]--
			if indeg[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	if drained != len(stages) {
		return errors.Configuration("stage graph contains a dependency cycle")
	}
	return nil
}
