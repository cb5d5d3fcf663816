package partition

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// TransitionEngine executes a role transition's ordered install/uninstall
// steps. A single engine instance is shared across every transition an
// actor runs; it holds no per-transition state itself.
type TransitionEngine struct {
	logger zerolog.Logger
}

// NewTransitionEngine builds an engine that logs with logger.
func NewTransitionEngine(logger zerolog.Logger) *TransitionEngine {
	return &TransitionEngine{logger: logger}
}

// Execute tears down prevSteps in reverse order (best-effort, logging but
// not stopping on error) and then installs nextSteps in forward order,
// stopping at the first failure. It mutates pc directly as each step
// completes — the Actor guarantees at most one Execute call runs at a
// time for a given Context, so this is the Context's sole writer even
// though it runs off the actor's own goroutine to avoid blocking the
// mailbox while a slow step installs.
func (e *TransitionEngine) Execute(ctx context.Context, pc *Context, prevSteps, nextSteps []Step) error {
	for i := len(prevSteps) - 1; i >= 0; i-- {
		step := prevSteps[i]
		if err := step.Prepare(ctx, pc); err != nil {
			e.logger.Warn().Str("step", step.Name()).Err(err).Msg("teardown step failed, continuing")
		}
	}

	for _, step := range nextSteps {
		if err := step.Install(ctx, pc); err != nil {
			return fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	return nil
}
