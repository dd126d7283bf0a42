package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerFiresJobs(t *testing.T) {
	var noShow, reminder atomic.Int64

	s := New(
		func(ctx context.Context, now time.Time) { noShow.Add(1) },
		func(ctx context.Context, now time.Time) { reminder.Add(1) },
	)
	s.NoShowInterval = 10 * time.Millisecond
	s.ReminderInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	time.Sleep(60 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on context cancel")
	}

	if noShow.Load() == 0 {
		t.Error("no-show job never fired")
	}
	if reminder.Load() == 0 {
		t.Error("reminder job never fired")
	}
}
