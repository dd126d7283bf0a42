package scheduler

import (
	"context"
	"log"
	"time"

	"reservio/models"
	"reservio/mq"
	"reservio/reservations"
)

// Job is a pure, idempotent sweep invoked with the tick time. Jobs must be
// safe to run concurrently with themselves; tests call them directly.
type Job func(ctx context.Context, now time.Time)

// Scheduler drives the periodic sweeps. It owns only the timers; the
// business logic lives in the jobs it is handed.
type Scheduler struct {
	NoShowInterval   time.Duration
	ReminderInterval time.Duration

	noShow   Job
	reminder Job
}

func New(noShow, reminder Job) *Scheduler {
	return &Scheduler{
		NoShowInterval:   2 * time.Minute,
		ReminderInterval: time.Minute,
		noShow:           noShow,
		reminder:         reminder,
	}
}

// Start blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	noShow := time.NewTicker(s.NoShowInterval)
	reminder := time.NewTicker(s.ReminderInterval)
	defer noShow.Stop()
	defer reminder.Stop()

	log.Printf("[scheduler] started (no-show every %v, reminders every %v)",
		s.NoShowInterval, s.ReminderInterval)

	for {
		select {
		case <-noShow.C:
			go s.noShow(ctx, time.Now())
		case <-reminder.C:
			go s.reminder(ctx, time.Now())
		case <-ctx.Done():
			log.Println("[scheduler] stopped")
			return
		}
	}
}

// NoShowJob enqueues a release message; the sweep itself happens in the
// worker consuming the queue.
func NoShowJob() Job {
	return func(ctx context.Context, now time.Time) {
		mq.Emit(ctx, mq.QueueNoShowRelease, models.ReleaseMessage{
			Now: now.UTC().Format(time.RFC3339),
		})
	}
}

// ReminderJob finds reservations starting about an hour out and enqueues one
// reminder each. Overlapping sweep windows mean a reservation can be
// enqueued twice; the email notifier tolerates duplicates.
func ReminderJob(engine *reservations.Engine) Job {
	return func(ctx context.Context, now time.Time) {
		due, err := engine.RemindersDue(ctx, now)
		if err != nil {
			log.Printf("[scheduler] reminder query: %v", err)
			return
		}
		for _, res := range due {
			mq.Emit(ctx, mq.QueueEmailReminder, models.ReminderMessage{
				ReservationID:  res.ID,
				RequesterEmail: res.RequesterEmail,
				StartsAt:       res.StartsAt.UTC().Format(time.RFC3339),
				EndsAt:         res.EndsAt.UTC().Format(time.RFC3339),
				Title:          res.Title,
			})
		}
		if len(due) > 0 {
			log.Printf("[scheduler] enqueued %d reminders", len(due))
		}
	}
}
