// Package sagas runs ordered sequences of conditional writes with
// compensating actions. There is no retry logic anywhere: at-least-once
// semantics come from idempotent deletes and conditional puts, not loops.
package sagas

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Step is a single step in a saga. Compensate undoes Execute; it is invoked
// only when a later step fails, and only if Execute succeeded.
type Step struct {
	Name       string
	Execute    func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Saga orchestrates steps in a fixed order with reverse-order compensation.
type Saga struct {
	name   string
	steps  []Step
	logger *zap.Logger
}

// New creates a saga.
func New(name string, logger *zap.Logger) *Saga {
	return &Saga{
		name:   name,
		logger: logger,
	}
}

// AddStep appends a step. Steps run in the order they were added.
func (s *Saga) AddStep(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Execute runs every step in order. On the first failure it compensates all
// previously completed steps in reverse order, then returns the failing
// step's error. Compensation failures are logged and swallowed: surfacing a
// secondary failure would mask the primary cause, and the system tolerates
// the orphaned items a skipped compensation leaves behind.
func (s *Saga) Execute(ctx context.Context) error {
	for i, step := range s.steps {
		if err := step.Execute(ctx); err != nil {
			s.logger.Warn("saga step failed",
				zap.String("saga", s.name),
				zap.String("step", step.Name),
				zap.Error(err),
			)
			s.compensate(ctx, i)
			return fmt.Errorf("saga %s step %s: %w", s.name, step.Name, err)
		}
	}
	return nil
}

// compensate undoes steps [0, failed) in reverse order, best-effort.
func (s *Saga) compensate(ctx context.Context, failed int) {
	for i := failed - 1; i >= 0; i-- {
		step := s.steps[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			// Named, logged event so operators can detect orphaned items.
			s.logger.Warn("saga compensation step failed",
				zap.String("saga", s.name),
				zap.String("step", step.Name),
				zap.Error(err),
			)
		}
	}
}
