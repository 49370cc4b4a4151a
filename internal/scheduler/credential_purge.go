// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mrlokans/secrets/internal/config"
	"github.com/mrlokans/secrets/internal/credstore"
)

// CredentialPurgeScheduler periodically removes expired delegated
// credentials. An expired grant is useless for sending mail, so keeping
// the ciphertext around only widens the exposure window.
type CredentialPurgeScheduler struct {
	credentials *credstore.Store
	config      config.CredentialPurge

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

// NewCredentialPurgeScheduler creates a new scheduler instance.
func NewCredentialPurgeScheduler(credentials *credstore.Store, cfg config.CredentialPurge) *CredentialPurgeScheduler {
	return &CredentialPurgeScheduler{
		credentials: credentials,
		config:      cfg,
		cron:        cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// Start begins the scheduler if purging is enabled.
func (s *CredentialPurgeScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if !s.config.Enabled {
		log.Printf("Credential purge scheduler: disabled")
		return nil
	}

	entryID, err := s.cron.AddFunc(s.config.Schedule, func() {
		s.runPurge()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule credential purge with '%s': %w", s.config.Schedule, err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	log.Printf("Credential purge scheduler: started with schedule '%s'", s.config.Schedule)

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop gracefully stops the scheduler, waiting for a running purge to
// finish.
func (s *CredentialPurgeScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	// Release the context watcher started in Start; without this a direct
	// Stop leaves it blocked forever.
	if s.cancelFunc != nil {
		s.cancelFunc()
		s.cancelFunc = nil
	}

	log.Printf("Credential purge scheduler: stopped")
}

// RunNow triggers an immediate purge.
func (s *CredentialPurgeScheduler) RunNow() {
	go s.runPurge()
}

// IsRunning returns whether the scheduler is active.
func (s *CredentialPurgeScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRunTime returns when the next purge will occur.
func (s *CredentialPurgeScheduler) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}

	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

func (s *CredentialPurgeScheduler) runPurge() {
	start := time.Now()

	purged, err := s.credentials.PurgeExpired()
	if err != nil {
		log.Printf("Credential purge: failed: %v", err)
		return
	}

	if purged > 0 {
		log.Printf("Credential purge: removed %d expired credential(s) in %v",
			purged, time.Since(start).Round(time.Millisecond))
	}
}
