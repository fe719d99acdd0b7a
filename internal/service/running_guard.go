package service

import (
	"context"
	"sort"
	"sync"
	"time"
)

// ExportedRunningGuard lets _test packages exercise the guard.
type ExportedRunningGuard = runGuard

// runGuard allows at most one run per job name at a time and remembers when
// each active run started.
type runGuard struct {
	mu      sync.Mutex
	running map[string]time.Time
	wg      sync.WaitGroup
}

// TryLock marks job as running. It returns false if a run is already active.
func (g *runGuard) TryLock(job string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running == nil {
		g.running = make(map[string]time.Time)
	}
	if _, ok := g.running[job]; ok {
		return false
	}
	g.running[job] = time.Now()
	g.wg.Add(1)
	return true
}

// Unlock ends the run. Must only follow a successful TryLock.
func (g *runGuard) Unlock(job string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, job)
	g.wg.Done()
}

// StartedAt reports when the active run of job began.
func (g *runGuard) StartedAt(job string) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.running[job]
	return t, ok
}

// Running lists the jobs with an active run, sorted by name.
func (g *runGuard) Running() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := make([]string, 0, len(g.running))
	for name := range g.running {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WaitAll blocks until every active run completes or ctx is done.
func (g *runGuard) WaitAll(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
