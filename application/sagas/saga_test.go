package sagas

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExecuteRunsStepsInOrder(t *testing.T) {
	var order []string

	saga := New("test", zap.NewNop())
	for _, name := range []string{"one", "two", "three"} {
		name := name
		saga.AddStep(Step{
			Name: name,
			Execute: func(ctx context.Context) error {
				order = append(order, name)
				return nil
			},
		})
	}

	require.NoError(t, saga.Execute(context.Background()))
	assert.Equal(t, []string{"one", "two", "three"}, order)
}

func TestExecuteCompensatesInReverseOrder(t *testing.T) {
	var compensated []string
	boom := errors.New("boom")

	saga := New("test", zap.NewNop())
	for _, name := range []string{"one", "two"} {
		name := name
		saga.AddStep(Step{
			Name:    name,
			Execute: func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error {
				compensated = append(compensated, name)
				return nil
			},
		})
	}
	saga.AddStep(Step{
		Name:    "failing",
		Execute: func(ctx context.Context) error { return boom },
		Compensate: func(ctx context.Context) error {
			compensated = append(compensated, "failing")
			return nil
		},
	})

	err := saga.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	// Only completed steps are compensated, last first.
	assert.Equal(t, []string{"two", "one"}, compensated)
}

func TestCompensationFailureIsSwallowed(t *testing.T) {
	boom := errors.New("boom")
	var secondCompensated bool

	saga := New("test", zap.NewNop())
	saga.AddStep(Step{
		Name:    "one",
		Execute: func(ctx context.Context) error { return nil },
		Compensate: func(ctx context.Context) error {
			secondCompensated = true
			return nil
		},
	})
	saga.AddStep(Step{
		Name:    "two",
		Execute: func(ctx context.Context) error { return nil },
		Compensate: func(ctx context.Context) error {
			return errors.New("compensation broke")
		},
	})
	saga.AddStep(Step{
		Name:    "failing",
		Execute: func(ctx context.Context) error { return boom },
	})

	err := saga.Execute(context.Background())
	require.Error(t, err)
	// The primary failure is the one surfaced.
	assert.ErrorIs(t, err, boom)
	// A failed compensation does not stop earlier ones.
	assert.True(t, secondCompensated)
}

func TestStepWithoutCompensation(t *testing.T) {
	boom := errors.New("boom")

	saga := New("test", zap.NewNop())
	saga.AddStep(Step{
		Name:    "fire-and-forget",
		Execute: func(ctx context.Context) error { return nil },
	})
	saga.AddStep(Step{
		Name:    "failing",
		Execute: func(ctx context.Context) error { return boom },
	})

	assert.ErrorIs(t, saga.Execute(context.Background()), boom)
}

func TestErrorNamesSagaAndStep(t *testing.T) {
	saga := New("user-register", zap.NewNop())
	saga.AddStep(Step{
		Name:    "reserve-email",
		Execute: func(ctx context.Context) error { return errors.New("boom") },
	})

	err := saga.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user-register")
	assert.Contains(t, err.Error(), "reserve-email")
}
