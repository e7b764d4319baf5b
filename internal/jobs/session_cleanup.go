package jobs

import (
	"context"
	"log"
	"time"

	"autopilot/internal/services"
)

// sessionCleanupHourUTC is when the daily sweep runs.
const sessionCleanupHourUTC = 3

// SessionCleanupJob deletes expired, unclaimed sessions once a day. Claimed
// sessions are never touched; conversations and orders orphaned by the sweep
// are logged by the session service, not deleted.
type SessionCleanupJob struct {
	sessions *services.SessionService
	metrics  *services.Metrics
}

// NewSessionCleanupJob creates a new session cleanup job
func NewSessionCleanupJob(sessions *services.SessionService, metrics *services.Metrics) *SessionCleanupJob {
	return &SessionCleanupJob{sessions: sessions, metrics: metrics}
}

// Run executes one sweep.
func (j *SessionCleanupJob) Run(ctx context.Context) error {
	log.Println("[CLEANUP] Starting expired session sweep...")
	start := time.Now()

	deleted, err := j.sessions.CleanupExpired(ctx)
	if err != nil {
		log.Printf("[CLEANUP] Sweep failed: %v", err)
		return err
	}

	if j.metrics != nil {
		j.metrics.RecordSessionsSwept(deleted)
	}
	log.Printf("[CLEANUP] Sweep complete: deleted %d sessions in %v", deleted, time.Since(start))
	return nil
}

// GetNextRunTime returns the next 03:00 UTC.
func (j *SessionCleanupJob) GetNextRunTime() time.Time {
	now := time.Now().UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), sessionCleanupHourUTC, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
