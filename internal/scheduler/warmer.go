// Package scheduler keeps the constants cache warm so visitors rarely wait on the upstream.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"sogif-site/internal/alerting"
	"sogif-site/internal/kpi"
)

// Refresher is the part of the constants cache the warmer drives.
type Refresher interface {
	Refresh(ctx context.Context) (*kpi.Bundle, error)
	FetchedAt() (time.Time, bool)
}

// Options tune the warmer.
type Options struct {
	Interval     time.Duration
	AlignToStart bool
	StartupDelay time.Duration
	// WarmOnStart refreshes once before the first interval elapses.
	WarmOnStart bool
	// AlertAfter is the number of consecutive failed refreshes that triggers a notification.
	AlertAfter int
}

// Warmer refreshes the cache on a fixed interval.
type Warmer struct {
	cache    Refresher
	notifier alerting.Notifier
	opts     Options
	logger   zerolog.Logger

	failures int
}

// NewWarmer constructs a Warmer. A nil notifier disables failure notifications.
func NewWarmer(cache Refresher, notifier alerting.Notifier, opts Options, logger zerolog.Logger) *Warmer {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	if opts.AlertAfter <= 0 {
		opts.AlertAfter = 3
	}
	if notifier == nil {
		notifier = alerting.Nop{}
	}
	return &Warmer{
		cache:    cache,
		notifier: notifier,
		opts:     opts,
		logger:   logger.With().Str("component", "cache_warmer").Logger(),
	}
}

// Run blocks, refreshing at each interval until ctx is cancelled.
func (w *Warmer) Run(ctx context.Context) error {
	if w.opts.StartupDelay > 0 {
		timer := time.NewTimer(w.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if w.opts.WarmOnStart {
		w.tickLogged(ctx, time.Now().UTC())
	}

	next := w.nextTick(time.Now().UTC())
	for {
		delay := time.Until(next)
		if delay < 0 {
			next = w.nextTick(time.Now().UTC())
			delay = time.Until(next)
		}

		timer := time.NewTimer(delay)
		w.logger.Debug().Time("next_refresh", next).Msg("waiting for next refresh")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		w.tickLogged(ctx, next)
		next = next.Add(w.opts.Interval)
	}
}

func (w *Warmer) tickLogged(ctx context.Context, at time.Time) {
	if err := w.Tick(ctx, at); err != nil {
		w.logger.Error().Err(err).Time("at", at).Msg("cache refresh failed")
	}
}

// Tick performs one refresh. The cache answers a failed refresh with the
// previous bundle, so failure is detected by the fetch time not advancing.
func (w *Warmer) Tick(ctx context.Context, at time.Time) error {
	before, _ := w.cache.FetchedAt()

	_, err := w.cache.Refresh(ctx)
	if err == nil {
		after, ok := w.cache.FetchedAt()
		if !ok || !after.After(before) {
			err = fmt.Errorf("refresh kept the bundle fetched at %s", before.UTC().Format(time.RFC3339))
		}
	}

	if err != nil {
		w.failures++
		if w.failures == w.opts.AlertAfter {
			w.notify(ctx, at, err)
		}
		return err
	}

	if w.failures >= w.opts.AlertAfter {
		w.logger.Info().Int("failures", w.failures).Msg("constants refresh recovered")
	}
	w.failures = 0
	return nil
}

// Failures returns the current run of consecutive failed refreshes.
func (w *Warmer) Failures() int { return w.failures }

func (w *Warmer) notify(ctx context.Context, at time.Time, cause error) {
	note := alerting.Notification{
		Subject: "Constants refresh failing",
		At:      at,
		Fields: []alerting.Field{
			{Name: "Consecutive failures", Value: fmt.Sprint(w.failures)},
			{Name: "Last error", Value: cause.Error()},
		},
		Note: "The site keeps serving the last good bundle until the upstream recovers.",
	}
	if fetched, ok := w.cache.FetchedAt(); ok {
		note.Fields = append(note.Fields, alerting.Field{Name: "Serving bundle from", Value: fetched.UTC().Format(time.RFC3339)})
	}
	if err := w.notifier.Notify(ctx, note); err != nil {
		w.logger.Warn().Err(err).Msg("failed to send refresh alert")
	}
}

func (w *Warmer) nextTick(now time.Time) time.Time {
	if !w.opts.AlignToStart {
		return now.Add(w.opts.Interval)
	}
	next := now.Truncate(w.opts.Interval)
	if !next.After(now) {
		next = next.Add(w.opts.Interval)
	}
	return next
}
