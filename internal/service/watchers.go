package service

import (
	"context"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"mongocsvexport/internal/config"
)

// triggers holds the cron and file watcher lifecycle.
type triggers struct {
	mu          sync.Mutex
	watchCancel context.CancelFunc
	watcher     *fsnotify.Watcher
	cronSched   *cron.Cron
}

// debounce collapses bursts of write events for one file.
const debounce = 500 * time.Millisecond

// RestartWatchers tears down the current watcher/cron and rebuilds them from
// the configured triggers. It returns the number of scheduled and watched jobs.
func (s *ExportService) RestartWatchers(ctx context.Context) (scheduled, watched int) {
	s.stopWatchers()

	s.triggers.mu.Lock()
	defer s.triggers.mu.Unlock()

	// ── Cron jobs ──
	c := cron.New()
	for _, j := range s.cfg.Jobs {
		if j.Trigger.Type != config.TriggerSchedule {
			continue
		}
		name := j.Name
		_, err := c.AddFunc(j.Trigger.Config, func() {
			log.Printf("[JOBS] cron: running job %s", name)
			if _, err := s.RunJob(ctx, name); err != nil {
				log.Printf("[JOBS] cron: job %s failed: %v", name, err)
			}
		})
		if err != nil {
			log.Printf("[JOBS] cron: invalid expression %q for job %s: %v", j.Trigger.Config, name, err)
			continue
		}
		scheduled++
	}
	if scheduled > 0 {
		c.Start()
		s.cronSched = c
		log.Printf("[JOBS] cron: scheduled %d job(s)", scheduled)
	}

	// ── File watchers ──
	pathToJob := make(map[string]string)
	for _, j := range s.cfg.Jobs {
		if j.Trigger.Type != config.TriggerFileWatch || j.Trigger.Config == "" {
			continue
		}
		absPath, err := filepath.Abs(j.Trigger.Config)
		if err != nil {
			log.Printf("[JOBS] watcher: bad path %q: %v", j.Trigger.Config, err)
			continue
		}
		pathToJob[absPath] = j.Name
	}
	if len(pathToJob) == 0 {
		return scheduled, 0
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("[JOBS] watcher: failed to create watcher: %v", err)
		return scheduled, 0
	}
	s.watcher = watcher

	// Directories are watched so editors that replace files are still seen.
	watchedDirs := make(map[string]bool)
	for absPath := range pathToJob {
		dir := filepath.Dir(absPath)
		if watchedDirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			log.Printf("[JOBS] watcher: failed to watch dir %q: %v", dir, err)
			continue
		}
		watchedDirs[dir] = true
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	s.watchCancel = cancel

	go s.watchLoop(ctx, watchCtx, watcher, pathToJob)

	log.Printf("[JOBS] watcher: watching %d file(s)", len(pathToJob))
	return scheduled, len(pathToJob)
}

func (s *ExportService) watchLoop(ctx, watchCtx context.Context, watcher *fsnotify.Watcher, pathToJob map[string]string) {
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-watchCtx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			absPath, _ := filepath.Abs(event.Name)
			name, ok := pathToJob[absPath]
			if !ok {
				continue
			}
			if t, exists := timers[name]; exists {
				t.Stop()
			}
			timers[name] = time.AfterFunc(debounce, func() {
				log.Printf("[JOBS] watcher: file changed %q, running job %s", absPath, name)
				if _, err := s.RunJob(ctx, name); err != nil {
					log.Printf("[JOBS] watcher: run failed for job %s: %v", name, err)
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[JOBS] watcher: error: %v", err)
		}
	}
}

func (s *ExportService) stopWatchers() {
	s.triggers.mu.Lock()
	defer s.triggers.mu.Unlock()

	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	if s.cronSched != nil {
		s.cronSched.Stop()
		s.cronSched = nil
	}
}
