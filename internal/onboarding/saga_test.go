package onboarding

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) step(name string, actionErr, compensateErr error) Step {
	return Step{
		Name: name,
		Action: func(ctx context.Context) error {
			r.add("do:" + name)
			return actionErr
		},
		Compensate: func(ctx context.Context) error {
			r.add("undo:" + name)
			return compensateErr
		},
	}
}

func TestSaga_Run(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	t.Run("runs all steps in order", func(t *testing.T) {
		rec := &recorder{}
		saga := &Saga{Steps: []Step{rec.step("a", nil, nil), rec.step("b", nil, nil)}}

		report, err := saga.Run(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"do:a", "do:b"}, rec.calls)
		require.Equal(t, []string{"a", "b"}, report.Completed)
		require.Empty(t, report.Compensated)
	})

	t.Run("compensates completed steps in reverse", func(t *testing.T) {
		rec := &recorder{}
		saga := &Saga{Steps: []Step{
			rec.step("a", nil, nil),
			rec.step("b", nil, nil),
			rec.step("c", boom, nil),
			rec.step("d", nil, nil),
		}}

		report, err := saga.Run(ctx)
		require.ErrorIs(t, err, boom)
		require.Equal(t, []string{"do:a", "do:b", "do:c", "undo:b", "undo:a"}, rec.calls)
		require.Equal(t, []string{"b", "a"}, report.Compensated)
	})

	t.Run("steps without compensation are skipped", func(t *testing.T) {
		rec := &recorder{}
		noUndo := rec.step("b", nil, nil)
		noUndo.Compensate = nil

		saga := &Saga{Steps: []Step{rec.step("a", nil, nil), noUndo, rec.step("c", boom, nil)}}

		_, err := saga.Run(ctx)
		require.ErrorIs(t, err, boom)
		require.Equal(t, []string{"do:a", "do:b", "do:c", "undo:a"}, rec.calls)
	})

	t.Run("compensation errors are reported and do not stop rollback", func(t *testing.T) {
		rec := &recorder{}
		undoErr := errors.New("undo failed")
		saga := &Saga{Steps: []Step{
			rec.step("a", nil, nil),
			rec.step("b", nil, undoErr),
			rec.step("c", boom, nil),
		}}

		report, err := saga.Run(ctx)
		require.ErrorIs(t, err, boom)
		require.NotErrorIs(t, err, undoErr)
		require.Equal(t, []string{"do:a", "do:b", "do:c", "undo:b", "undo:a"}, rec.calls)
		require.Equal(t, []string{"a"}, report.Compensated)
		require.ErrorIs(t, report.CompensationErrors["b"], undoErr)
	})

	t.Run("best effort failure continues", func(t *testing.T) {
		rec := &recorder{}
		optional := rec.step("b", boom, nil)
		optional.BestEffort = true

		saga := &Saga{Steps: []Step{rec.step("a", nil, nil), optional, rec.step("c", nil, nil)}}

		report, err := saga.Run(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"do:a", "do:b", "do:c"}, rec.calls)
		require.ErrorIs(t, report.Skipped["b"], boom)
	})

	t.Run("best effort steps are never compensated", func(t *testing.T) {
		rec := &recorder{}
		optional := rec.step("b", nil, nil)
		optional.BestEffort = true

		saga := &Saga{Steps: []Step{rec.step("a", nil, nil), optional, rec.step("c", boom, nil)}}

		_, err := saga.Run(ctx)
		require.ErrorIs(t, err, boom)
		require.Equal(t, []string{"do:a", "do:b", "do:c", "undo:a"}, rec.calls)
	})

	t.Run("each step gets its own deadline", func(t *testing.T) {
		var deadlines []time.Time
		capture := func(ctx context.Context) error {
			d, ok := ctx.Deadline()
			require.True(t, ok)
			deadlines = append(deadlines, d)
			return nil
		}

		saga := &Saga{
			Steps:       []Step{{Name: "a", Action: capture}, {Name: "b", Action: capture}},
			StepTimeout: time.Minute,
		}

		_, err := saga.Run(ctx)
		require.NoError(t, err)
		require.Len(t, deadlines, 2)
		require.WithinDuration(t, time.Now().Add(time.Minute), deadlines[1], 5*time.Second)
	})

	t.Run("compensation context is not cancelled with the request", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)

		var compensateErr error
		saga := &Saga{Steps: []Step{
			{
				Name:   "a",
				Action: func(ctx context.Context) error { return nil },
				Compensate: func(ctx context.Context) error {
					compensateErr = ctx.Err()
					return nil
				},
			},
			{
				Name: "b",
				Action: func(ctx context.Context) error {
					cancel()
					return ctx.Err()
				},
			},
		}}

		_, err := saga.Run(cctx)
		require.ErrorIs(t, err, context.Canceled)
		require.NoError(t, compensateErr)
	})
}

func TestError_Message(t *testing.T) {
	err := newError(KindIdentityProviderError, StepCreateIdentity, errors.New("upstream said: database exploded"))
	require.NotContains(t, err.Message(), "exploded")
	require.Contains(t, err.Error(), "exploded")

	invalid := invalidInput("name", "name must be at least %d characters", 2)
	require.Equal(t, "name must be at least 2 characters", invalid.Message())

	for kind := range messages {
		require.NotEmpty(t, (&Error{Kind: kind}).Message())
	}
}
