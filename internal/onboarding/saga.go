package onboarding

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/donations/internal/telemetry"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// DefaultStepTimeout bounds each step and each compensation.
const DefaultStepTimeout = 10 * time.Second

// Step is one unit of a saga. Compensate undoes a completed Action and may be
// nil. A BestEffort step never fails the saga and is never compensated.
type Step struct {
	Name       string
	Action     func(ctx context.Context) error
	Compensate func(ctx context.Context) error
	BestEffort bool
}

// Saga runs steps in order. When a critical step fails, compensations of the
// completed steps run in reverse order and the step's error is returned.
type Saga struct {
	Steps       []Step
	StepTimeout time.Duration
}

// Report describes what a run did.
type Report struct {
	Completed          []string
	Compensated        []string
	CompensationErrors map[string]error
	Skipped            map[string]error // best effort steps that failed
}

// Run executes the saga. Compensations run on a context detached from ctx so a
// cancelled request still rolls back.
func (s *Saga) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		CompensationErrors: map[string]error{},
		Skipped:            map[string]error{},
	}

	var completed []Step

	for _, step := range s.Steps {
		err := s.runStep(ctx, step)
		if err == nil {
			completed = append(completed, step)
			report.Completed = append(report.Completed, step.Name)
			continue
		}

		if step.BestEffort {
			zerolog.Ctx(ctx).Warn().Err(err).Str("step", step.Name).Msg("Best effort step failed, continuing")
			report.Skipped[step.Name] = err
			continue
		}

		zerolog.Ctx(ctx).Warn().Err(err).Str("step", step.Name).Msg("Saga step failed, compensating")
		s.compensate(context.WithoutCancel(ctx), completed, report)
		return report, err
	}

	return report, nil
}

func (s *Saga) runStep(ctx context.Context, step Step) error {
	ctx, span := telemetry.Tracer().Start(ctx, "onboarding."+step.Name)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	err := step.Action(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, step.Name+" failed")
	}
	return err
}

func (s *Saga) compensate(ctx context.Context, completed []Step, report *Report) {
	log := zerolog.Ctx(ctx)
	m := telemetry.GetMetrics()

	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Compensate == nil || step.BestEffort {
			continue
		}

		attrs := metric.WithAttributes(telemetry.AttrStep.String(step.Name))
		m.CompensationsTotal.Add(ctx, 1, attrs)

		err := s.runCompensation(ctx, step)
		if err != nil {
			// never retried; the record is left for manual cleanup
			log.Error().Err(err).Str("step", step.Name).Msg("Compensation failed")
			m.CompensationErrorsTotal.Add(ctx, 1, attrs)
			report.CompensationErrors[step.Name] = err
			continue
		}

		log.Info().Str("step", step.Name).Msg("Compensated saga step")
		report.Compensated = append(report.Compensated, step.Name)
	}
}

func (s *Saga) runCompensation(ctx context.Context, step Step) error {
	ctx, span := telemetry.Tracer().Start(ctx, "onboarding.compensate."+step.Name)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	err := step.Compensate(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "compensation failed")
	}
	return err
}

func (s *Saga) timeout() time.Duration {
	if s.StepTimeout <= 0 {
		return DefaultStepTimeout
	}
	return s.StepTimeout
}
