package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/tickersent/internal/logger"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// clockTime is a daily HH:MM.
type clockTime struct {
	hour, minute int
}

// Scheduler runs a job at fixed daily times and/or at a fixed interval
// after the previous run. Runs never overlap: the next wait starts only
// after the job returns.
type Scheduler struct {
	times    []clockTime
	interval time.Duration
	loc      *time.Location
	job      Job
	log      logrus.FieldLogger

	now   func() time.Time
	after func(d time.Duration) <-chan time.Time
}

// NewScheduler parses times ("HH:MM") and returns a scheduler for job.
// At least one time or a positive interval is required.
func NewScheduler(times []string, interval time.Duration, loc *time.Location, job Job, log logrus.FieldLogger) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	s := &Scheduler{
		interval: interval,
		loc:      loc,
		job:      job,
		log:      logger.OrDiscard(log),
		now:      time.Now,
		after:    time.After,
	}
	for _, t := range times {
		p, err := time.Parse("15:04", t)
		if err != nil {
			return nil, fmt.Errorf("invalid schedule time %q: want HH:MM", t)
		}
		s.times = append(s.times, clockTime{hour: p.Hour(), minute: p.Minute()})
	}
	sort.Slice(s.times, func(i, j int) bool {
		if s.times[i].hour != s.times[j].hour {
			return s.times[i].hour < s.times[j].hour
		}
		return s.times[i].minute < s.times[j].minute
	})
	if len(s.times) == 0 && interval <= 0 {
		return nil, errors.New("schedule needs at least one time or a positive interval")
	}
	return s, nil
}

// Next returns the next fire time strictly after from.
func (s *Scheduler) Next(from time.Time) time.Time {
	var next time.Time
	if s.interval > 0 {
		next = from.Add(s.interval)
	}
	local := from.In(s.loc)
	for day := 0; day <= 1 && len(s.times) > 0; day++ {
		found := false
		for _, ct := range s.times {
			t := time.Date(local.Year(), local.Month(), local.Day()+day, ct.hour, ct.minute, 0, 0, s.loc)
			if t.After(from) {
				if next.IsZero() || t.Before(next) {
					next = t
				}
				found = true
				break
			}
		}
		if found {
			break
		}
	}
	return next
}

// Run loops until ctx is cancelled. Job errors are logged and the loop
// continues.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		now := s.now()
		next := s.Next(now)
		s.log.WithField("next_run", next.Format(time.RFC3339)).Info("waiting for next scheduled run")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.after(next.Sub(now)):
		}

		if err := s.job(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Errorf("scheduled run failed: %v", err)
		}
	}
}
