package jobs

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeJob struct {
	runs    int
	err     error
	nextRun time.Time
}

func (j *fakeJob) Run(_ context.Context) error {
	j.runs++
	return j.err
}

func (j *fakeJob) GetNextRunTime() time.Time {
	return j.nextRun
}

func TestSchedulerRunNow(t *testing.T) {
	s := NewScheduler()
	job := &fakeJob{nextRun: time.Now().Add(time.Hour)}
	s.Register("sweep", job)

	if err := s.RunNow("sweep"); err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}
	if job.runs != 1 {
		t.Errorf("runs = %d, want 1", job.runs)
	}
}

func TestSchedulerRunNowPropagatesError(t *testing.T) {
	s := NewScheduler()
	wantErr := errors.New("sweep failed")
	s.Register("sweep", &fakeJob{err: wantErr, nextRun: time.Now().Add(time.Hour)})

	if err := s.RunNow("sweep"); !errors.Is(err, wantErr) {
		t.Errorf("RunNow() error = %v, want %v", err, wantErr)
	}
}

func TestSchedulerRunNowUnknownJob(t *testing.T) {
	s := NewScheduler()
	if err := s.RunNow("missing"); err != nil {
		t.Errorf("RunNow(unknown) error = %v, want nil", err)
	}
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	s := NewScheduler()
	s.Register("sweep", &fakeJob{nextRun: time.Now().Add(time.Hour)})
	s.Stop() // must not panic or block
}

func TestSessionCleanupNextRunTime(t *testing.T) {
	job := NewSessionCleanupJob(nil, nil)

	next := job.GetNextRunTime()
	if next.Hour() != sessionCleanupHourUTC || next.Minute() != 0 {
		t.Errorf("next run = %v, want 03:00 UTC", next)
	}
	if !next.After(time.Now().UTC()) {
		t.Errorf("next run %v must be in the future", next)
	}
	if next.Location() != time.UTC {
		t.Errorf("next run must be UTC, got %v", next.Location())
	}
}
