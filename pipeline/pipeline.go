// Package pipeline wires normalization steps together and runs hooks.
package pipeline

import (
	"context"
	"time"

	"github.com/Skryldev/media-ingest/core"
	apperrors "github.com/Skryldev/media-ingest/errors"
)

// Pipeline executes a sequence of Steps with hook support.  Steps are never
// retried: a failing step fails the run.
type Pipeline struct {
	steps []core.Step
	hooks []core.Hook
}

// New returns an empty Pipeline.
func New() *Pipeline { return &Pipeline{} }

// Use appends a step to the pipeline.  Returns the same Pipeline for chaining.
func (p *Pipeline) Use(s ...core.Step) *Pipeline {
	p.steps = append(p.steps, s...)
	return p
}

// AddHook registers an observer.
func (p *Pipeline) AddHook(h core.Hook) *Pipeline {
	p.hooks = append(p.hooks, h)
	return p
}

// Steps returns the step names in run order.
func (p *Pipeline) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return names
}

// Run executes the pipeline on s.  It returns the final Surface and a map
// of per-step timing observations.
func (p *Pipeline) Run(ctx context.Context, s *core.Surface) (*core.Surface, map[string]time.Duration, error) {
	timings := make(map[string]time.Duration, len(p.steps))
	current := s

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return nil, timings, apperrors.Wrap(apperrors.CategoryPipeline, step.Name(), err)
		}

		result, elapsed, err := p.runStep(ctx, step, current)
		timings[step.Name()] = elapsed
		if err != nil {
			return nil, timings, err
		}
		current = result
	}
	return current, timings, nil
}

// runStep executes a single step, calling hooks around it.
func (p *Pipeline) runStep(ctx context.Context, step core.Step, s *core.Surface) (*core.Surface, time.Duration, error) {
	p.callHooksBefore(ctx, step.Name(), s)

	start := time.Now()
	result, err := step.Execute(ctx, s)
	elapsed := time.Since(start)
	if err != nil {
		err = apperrors.Wrap(apperrors.CategoryPipeline, step.Name(), err)
	}

	p.callHooksAfter(ctx, step.Name(), result, elapsed, err)
	return result, elapsed, err
}

func (p *Pipeline) callHooksBefore(ctx context.Context, name string, s *core.Surface) {
	for _, h := range p.hooks {
		h.BeforeStep(ctx, name, s)
	}
}

func (p *Pipeline) callHooksAfter(ctx context.Context, name string, s *core.Surface, d time.Duration, err error) {
	for _, h := range p.hooks {
		h.AfterStep(ctx, name, s, d, err)
	}
}

// Clone returns a shallow copy of the pipeline so templates can be reused
// safely across goroutines.
func (p *Pipeline) Clone() *Pipeline {
	cp := &Pipeline{
		steps: make([]core.Step, len(p.steps)),
		hooks: make([]core.Hook, len(p.hooks)),
	}
	copy(cp.steps, p.steps)
	copy(cp.hooks, p.hooks)
	return cp
}
