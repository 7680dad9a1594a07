package reaper

import (
	"context"
	"log"
	"time"

	"github.com/SecurePass-Share/Transfer-Service/internal/models"
	"github.com/SecurePass-Share/Transfer-Service/internal/storage"
)

// Reaper periodically frees storage held by expired files and prunes upload
// sessions that lapsed before completion. File rows are kept so requesters
// polling an old request id still get a definite answer.
type Reaper struct {
	store    storage.Store
	objects  storage.ObjectStorage
	interval time.Duration
	now      func() time.Time
}

func New(store storage.Store, objects storage.ObjectStorage, interval time.Duration) *Reaper {
	return &Reaper{
		store:    store,
		objects:  objects,
		interval: interval,
		now:      time.Now,
	}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (r *Reaper) Run(ctx context.Context) {
	log.Printf("[Reaper] started, interval %s", r.interval)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Reaper] stopped")
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep runs one pass. Exported so a sweep can be forced in tests and on
// startup.
func (r *Reaper) Sweep() {
	now := r.now()
	r.sweepExpiredFiles(now)
	r.sweepLapsedSessions(now)
}

func (r *Reaper) sweepExpiredFiles(now time.Time) {
	files, err := r.store.ListExpiredFiles(now)
	if err != nil {
		log.Printf("[Reaper] failed to list expired files: %v", err)
		return
	}

	for _, f := range files {
		if err := r.objects.DeletePrefix(storage.FilePrefix(f.ID)); err != nil {
			log.Printf("[Reaper] failed to delete objects for file %s: %v", f.ID, err)
			continue
		}
		// Mark the row reaped; both blocks set keeps it out of future sweeps.
		blocked := true
		if _, exists := r.store.UpdateFileFlags(f.ID, nil, &blocked, &blocked); !exists {
			log.Printf("[Reaper] file %s vanished during sweep", f.ID)
			continue
		}
		log.Printf("[Reaper] reclaimed storage for expired file %s", f.ID)
	}
}

func (r *Reaper) sweepLapsedSessions(now time.Time) {
	sessions, err := r.store.ListLapsedSessions(now)
	if err != nil {
		log.Printf("[Reaper] failed to list lapsed sessions: %v", err)
		return
	}

	for _, s := range sessions {
		expired, err := r.store.FinishSession(s.SessionKey, models.SessionExpired)
		if err != nil {
			log.Printf("[Reaper] failed to expire session for file %s: %v", s.FileID, err)
			continue
		}
		if !expired {
			// Lost the race against a concurrent Complete or Cancel.
			continue
		}
		if err := r.store.SetFileStatus(s.FileID, models.FileFailed); err != nil {
			log.Printf("[Reaper] failed to mark file %s failed: %v", s.FileID, err)
		}
		if err := r.objects.DeletePrefix(storage.FilePrefix(s.FileID)); err != nil {
			log.Printf("[Reaper] failed to delete staged chunks for file %s: %v", s.FileID, err)
			continue
		}
		log.Printf("[Reaper] pruned lapsed upload session for file %s", s.FileID)
	}
}
