// Package runner drives the render pipeline, once or repeatedly in watch
// mode.
//
// In watch mode a failing pass does not end the run. Its error is printed
// once and the pass is retried after the interval; identical consecutive
// errors are printed only the first time.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/CTAG07/tmplr/pkg/errcodes"
	"github.com/CTAG07/tmplr/pkg/history"
)

// Passer runs one pass of the render pipeline.
type Passer interface {
	Pass(ctx context.Context) (Report, error)
}

// Recorder receives every pass. Failures to record are logged and ignored.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) error
}

// WatchState is carried from one cycle to the next.
type WatchState struct {
	// LastError is the message of the previous failed cycle, empty after
	// a success.
	LastError string
	// HasCompletedFirstCycle is set by the first successful cycle.
	HasCompletedFirstCycle bool
}

// Scheduler runs a Passer once or on a fixed interval.
type Scheduler struct {
	Passer Passer
	// Interval between passes; zero runs exactly one pass.
	Interval time.Duration
	// ErrOut receives watch-mode error lines. Defaults to os.Stderr.
	ErrOut io.Writer
	// OnFirstSuccess runs after the first successful pass, e.g. to open
	// the output in a viewer. Its error is logged, never fatal.
	OnFirstSuccess func() error
	// Recorder is optional.
	Recorder Recorder

	logger *slog.Logger
}

// NewScheduler creates a Scheduler for p.
func NewScheduler(logger *slog.Logger, p Passer, interval time.Duration) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{Passer: p, Interval: interval, ErrOut: os.Stderr, logger: logger}
}

// Run executes the schedule. With a zero interval the single pass's error is
// returned. In watch mode errors are reported and retried; Run returns nil
// once ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	state := &WatchState{}
	if s.Interval <= 0 {
		return s.cycle(ctx, state)
	}

	s.logger.Info("Watching template", "interval", s.Interval)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Watch stopped")
			return nil
		case <-timer.C:
		}

		if err := s.cycle(ctx, state); err != nil {
			if ctx.Err() != nil {
				continue
			}
			s.report(err, state)
		}
		timer.Reset(s.Interval)
	}
}

// cycle runs one pass and updates state.
func (s *Scheduler) cycle(ctx context.Context, state *WatchState) error {
	report, err := s.Passer.Pass(ctx)
	s.record(ctx, report, err)
	if err != nil {
		return err
	}

	if state.LastError != "" {
		s.logger.Info("Render recovered", "template", report.Template)
	}
	state.LastError = ""
	if !state.HasCompletedFirstCycle {
		state.HasCompletedFirstCycle = true
		if s.OnFirstSuccess != nil {
			if hookErr := s.OnFirstSuccess(); hookErr != nil {
				s.logger.Warn("First-success hook failed", "error", hookErr)
			}
		}
	}
	s.logger.Debug("Render pass complete", "template", report.Template, "engine", report.Engine, "duration", report.Duration)
	return nil
}

// report prints err unless it repeats the previous cycle's error.
func (s *Scheduler) report(err error, state *WatchState) {
	msg := err.Error()
	if msg == state.LastError {
		s.logger.Debug("Suppressing repeated error", "code", errcodes.Code(err))
		return
	}
	state.LastError = msg
	out := s.ErrOut
	if out == nil {
		out = os.Stderr
	}
	_, _ = fmt.Fprintf(out, "Error: %s\n", msg)
}

func (s *Scheduler) record(ctx context.Context, report Report, err error) {
	if s.Recorder == nil {
		return
	}
	entry := history.Entry{
		StartedAt: report.StartedAt,
		Template:  report.Template,
		Engine:    report.Engine,
		Duration:  report.Duration,
		Status:    history.StatusOK,
	}
	if err != nil {
		entry.Status = history.StatusFailed
		entry.ErrorCode = errcodes.Code(err)
		entry.Message = err.Error()
	}
	// Record even when ctx was cancelled mid-pass.
	if recErr := s.Recorder.Record(context.WithoutCancel(ctx), entry); recErr != nil {
		s.logger.Warn("Failed to record render pass", "error", recErr)
	}
}
