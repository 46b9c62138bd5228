package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewRejectsBadTimezone(t *testing.T) {
	if _, err := New("Nowhere/Invalid", Jobs{}, zerolog.Nop()); err == nil {
		t.Fatal("want error for invalid timezone")
	}
}

func TestStartAndStop(t *testing.T) {
	sched, err := New("UTC", Jobs{
		Rollover: func(ctx context.Context, now time.Time) {},
		Report:   func(ctx context.Context, now time.Time) {},
		Snapshot: func(ctx context.Context, now time.Time) {},
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// All three entries registered.
	if got := len(sched.cron.Entries()); got != 3 {
		t.Fatalf("want 3 cron entries, got %d", got)
	}

	// The rollover entry's next run is the upcoming local midnight.
	// Entries are sorted by next activation, so scan for it.
	foundMidnight := false
	for _, entry := range sched.cron.Entries() {
		if entry.Next.Hour() == 0 && entry.Next.Minute() == 0 {
			foundMidnight = true
		}
	}
	if !foundMidnight {
		t.Fatal("no entry scheduled for midnight")
	}

	sched.Stop()
}

func TestNilJobsAreSkipped(t *testing.T) {
	sched, err := New("UTC", Jobs{
		Snapshot: func(ctx context.Context, now time.Time) {},
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer sched.Stop()

	if got := len(sched.cron.Entries()); got != 1 {
		t.Fatalf("want 1 cron entry, got %d", got)
	}
}
