package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

// Job is a scheduled unit of background work.
type Job interface {
	Run(ctx context.Context) error
	GetNextRunTime() time.Time
}

// Scheduler runs registered jobs on their own timers and reschedules each
// one after it finishes.
type Scheduler struct {
	jobs    map[string]Job
	timers  map[string]*time.Timer
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewScheduler creates a new job scheduler
func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		jobs:   make(map[string]Job),
		timers: make(map[string]*time.Timer),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds a job to the scheduler
func (s *Scheduler) Register(name string, job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[name] = job
	log.Printf("✅ [SCHEDULER] Registered job: %s", name)
}

// Start begins running all registered jobs
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	s.running = true
	log.Printf("🚀 [SCHEDULER] Starting job scheduler with %d jobs", len(s.jobs))

	for name, job := range s.jobs {
		s.schedule(name, job)
	}
}

func (s *Scheduler) schedule(name string, job Job) {
	nextRun := job.GetNextRunTime()
	duration := time.Until(nextRun)

	log.Printf("⏰ [SCHEDULER] Job '%s' scheduled for %s (in %v)",
		name, nextRun.Format(time.RFC3339), duration)

	s.timers[name] = time.AfterFunc(duration, func() {
		s.run(name, job)
	})
}

func (s *Scheduler) run(name string, job Job) {
	s.wg.Add(1)
	defer s.wg.Done()

	start := time.Now()
	if err := job.Run(s.ctx); err != nil {
		log.Printf("❌ [SCHEDULER] Job '%s' failed: %v", name, err)
	} else {
		log.Printf("✅ [SCHEDULER] Job '%s' completed in %v", name, time.Since(start))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.schedule(name, job)
	}
}

// RunNow runs a job immediately, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	job, exists := s.jobs[name]
	s.mu.Unlock()

	if !exists {
		log.Printf("⚠️  [SCHEDULER] Job '%s' not found", name)
		return nil
	}
	return job.Run(s.ctx)
}

// Stop cancels all timers and waits for in-flight jobs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}

	log.Println("🛑 [SCHEDULER] Stopping job scheduler...")
	s.running = false

	for name, timer := range s.timers {
		timer.Stop()
		log.Printf("⏹️  [SCHEDULER] Stopped job: %s", name)
	}
	s.timers = make(map[string]*time.Timer)
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	log.Println("✅ [SCHEDULER] Job scheduler stopped")
}
