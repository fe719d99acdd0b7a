package service_test

import (
	"context"
	"reflect"
	"testing"
	"time"

	"mongocsvexport/internal/service"
)

// ─────────────────────────────────────────────────────────────
// runGuard tests
// ─────────────────────────────────────────────────────────────

func TestRunningGuard_TryLock(t *testing.T) {
	var g service.ExportedRunningGuard

	if !g.TryLock("job-1") {
		t.Fatal("expected first TryLock to succeed")
	}
	if g.TryLock("job-1") {
		t.Fatal("expected second TryLock for same job to fail")
	}
	if !g.TryLock("job-2") {
		t.Fatal("expected TryLock for different job to succeed")
	}
	g.Unlock("job-1")
	g.Unlock("job-2")

	if !g.TryLock("job-1") {
		t.Fatal("expected TryLock to succeed after unlock")
	}
	g.Unlock("job-1")
}

func TestRunningGuard_Running(t *testing.T) {
	var g service.ExportedRunningGuard

	g.TryLock("zeta")
	g.TryLock("alpha")
	if got := g.Running(); !reflect.DeepEqual(got, []string{"alpha", "zeta"}) {
		t.Fatalf("Running() = %v", got)
	}
	if _, ok := g.StartedAt("alpha"); !ok {
		t.Fatal("expected alpha to have a start time")
	}

	g.Unlock("alpha")
	if _, ok := g.StartedAt("alpha"); ok {
		t.Fatal("expected alpha to be released")
	}
	g.Unlock("zeta")
	if got := g.Running(); len(got) != 0 {
		t.Fatalf("expected no running jobs, got %v", got)
	}
}

func TestRunningGuard_WaitAll(t *testing.T) {
	var g service.ExportedRunningGuard

	if !g.TryLock("job-a") {
		t.Fatal("expected lock to succeed")
	}

	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		g.WaitAll(ctx)
		close(done)
	}()

	go func() {
		time.Sleep(20 * time.Millisecond)
		g.Unlock("job-a")
	}()

	select {
	case <-done:
		// success
	case <-time.After(1 * time.Second):
		t.Fatal("WaitAll timed out")
	}
}

func TestRunningGuard_WaitAllHonorsContext(t *testing.T) {
	var g service.ExportedRunningGuard
	g.TryLock("stuck")
	defer g.Unlock("stuck")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	g.WaitAll(ctx)
	if time.Since(start) > time.Second {
		t.Fatal("WaitAll ignored context cancellation")
	}
}
