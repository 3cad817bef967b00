package recon

import (
	"context"
	"log/slog"
	"time"
)

// maxCatchUp bounds how far back a run reaches to close the gap left by
// missed nights.
const maxCatchUp = 7 * 24 * time.Hour

// Schedule places the nightly run. Window sizes the first run when the
// index holds no earlier one.
type Schedule struct {
	Hour     int
	Minute   int
	Window   time.Duration
	Location *time.Location
}

func (s Schedule) withDefaults() Schedule {
	if s.Window <= 0 {
		s.Window = 24 * time.Hour
	}
	if s.Location == nil {
		s.Location = time.UTC
	}
	return s
}

// slotAfter returns the first run time strictly after t.
func (s Schedule) slotAfter(t time.Time) time.Time {
	local := t.In(s.Location)
	slot := time.Date(local.Year(), local.Month(), local.Day(), s.Hour, s.Minute, 0, 0, s.Location)
	if !slot.After(local) {
		slot = slot.AddDate(0, 0, 1)
	}
	return slot
}

// slotAtOrBefore returns the latest run time not after t.
func (s Schedule) slotAtOrBefore(t time.Time) time.Time {
	return s.slotAfter(t).AddDate(0, 0, -1)
}

// Nightly reconciles at every scheduled slot until ctx ends. Each window
// starts where the last indexed run ended, so reports stay contiguous
// across restarts and a slot missed while the process was down is caught up
// on start.
func (r *Reconciler) Nightly(ctx context.Context, s Schedule) {
	s = s.withDefaults()
	r.catchUp(ctx, s)
	for {
		now := r.now()
		next := s.slotAfter(now)
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			r.reconcileSlot(ctx, s, next)
		}
	}
}

func (r *Reconciler) catchUp(ctx context.Context, s Schedule) {
	if r.index == nil {
		return
	}
	last, found, err := r.index.LastWindowEnd(ctx)
	if err != nil {
		r.logger.Error("recon catch-up skipped", slog.Any("error", err))
		return
	}
	prev := s.slotAtOrBefore(r.now())
	if !found || !last.Before(prev) {
		return
	}
	r.reconcileSlot(ctx, s, prev)
}

func (r *Reconciler) reconcileSlot(ctx context.Context, s Schedule, slot time.Time) {
	opts, due, err := r.windowFor(ctx, s, slot)
	if err != nil {
		r.logger.Error("recon window lookup failed", slog.Any("error", err))
		return
	}
	if !due {
		r.logger.Debug("recon slot already covered", slog.Time("slot", slot))
		return
	}
	result, err := r.Run(ctx, opts)
	if err != nil {
		r.logger.Error("recon nightly run failed",
			slog.Time("start", opts.Start),
			slog.Time("end", opts.End),
			slog.Any("error", err))
		return
	}
	r.logger.Info("recon nightly run finished",
		slog.String("run_id", result.RunID),
		slog.Time("start", result.Start),
		slog.Time("end", result.End),
		slog.Int("anomalies", len(result.Anomalies)))
}

// windowFor returns the window closing at slot. due is false when an
// indexed run already reaches slot.
func (r *Reconciler) windowFor(ctx context.Context, s Schedule, slot time.Time) (opts RunOptions, due bool, err error) {
	opts = RunOptions{Start: slot.Add(-s.Window), End: slot}
	if r.index == nil {
		return opts, true, nil
	}
	last, found, err := r.index.LastWindowEnd(ctx)
	if err != nil {
		return RunOptions{}, false, err
	}
	if !found {
		return opts, true, nil
	}
	if !last.Before(slot) {
		return RunOptions{}, false, nil
	}
	opts.Start = last
	if floor := slot.Add(-maxCatchUp); last.Before(floor) {
		r.logger.Warn("recon gap exceeds catch-up limit",
			slog.Time("last_end", last),
			slog.Time("start", floor))
		opts.Start = floor
	}
	return opts, true, nil
}
