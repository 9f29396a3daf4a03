// Package scheduler owns the in-memory registry of scheduled bulk-send
// jobs: one single-fire timer per job, lifecycle transitions, cancellation,
// and retention of completed-job results.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/twilio-labs/bulk-sms-tool/internal/dispatch"
	"github.com/twilio-labs/bulk-sms-tool/internal/domain"
	"github.com/twilio-labs/bulk-sms-tool/internal/validate"
	"github.com/twilio-labs/bulk-sms-tool/pkg/errors"
	"github.com/twilio-labs/bulk-sms-tool/pkg/logger"
)

// Dispatcher executes one bulk-send payload. Satisfied by *dispatch.Engine.
type Dispatcher interface {
	Run(ctx context.Context, in dispatch.Input) (*domain.DispatchReport, error)
}

// Config bounds the store.
type Config struct {
	// MaxBatch caps the contact list accepted by Schedule.
	MaxBatch int
	// PreviewLength truncates the message shown in job listings.
	PreviewLength int
	// ResultMaxAge evicts completed results older than this. Zero disables
	// age-based eviction.
	ResultMaxAge time.Duration
	// ResultMaxCount caps retained completed results, oldest first. Zero
	// disables count-based eviction.
	ResultMaxCount int
	// JanitorInterval is the eviction sweep cadence for RunJanitor.
	JanitorInterval time.Duration
}

// Store is the scheduled-job registry. All maps are guarded by mu; at most
// one timer exists per job id, and the fire handler re-checks status under
// the lock so a racing cancel can never cause a double execution.
type Store struct {
	engine   Dispatcher
	logger   *logger.Logger
	cfg      Config
	clock    Clock
	newTimer TimerFactory

	mu          sync.Mutex
	jobs        map[uuid.UUID]*domain.Job
	timers      map[uuid.UUID]Timer
	results     map[uuid.UUID]*domain.CompletedJobResult
	resultOrder []uuid.UUID
}

// NewStore constructs a job store with the system clock and real timers.
func NewStore(engine Dispatcher, log *logger.Logger, cfg Config) *Store {
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = 1000
	}
	if cfg.PreviewLength <= 0 {
		cfg.PreviewLength = 50
	}
	if cfg.JanitorInterval <= 0 {
		cfg.JanitorInterval = time.Minute
	}
	return &Store{
		engine:   engine,
		logger:   log,
		cfg:      cfg,
		clock:    SystemClock(),
		newTimer: SystemTimers,
		jobs:     make(map[uuid.UUID]*domain.Job),
		timers:   make(map[uuid.UUID]Timer),
		results:  make(map[uuid.UUID]*domain.CompletedJobResult),
	}
}

// WithClock overrides the clock, for tests.
func (s *Store) WithClock(c Clock) *Store {
	s.clock = c
	return s
}

// WithTimerFactory overrides timer creation, for tests.
func (s *Store) WithTimerFactory(f TimerFactory) *Store {
	s.newTimer = f
	return s
}

// ScheduleInput is one future-dated bulk-send request.
type ScheduleInput struct {
	Contacts     []domain.Contact
	Message      string
	Credentials  domain.Credentials
	Sender       domain.SenderConfig
	ScheduledAt  time.Time
	MessageDelay time.Duration
}

// Schedule validates the request, filters out contacts with malformed phone
// numbers, registers the job and arms its single-fire timer. The returned
// job carries the generated id and the post-filter contact list.
func (s *Store) Schedule(in ScheduleInput) (*domain.Job, error) {
	if len(in.Contacts) == 0 {
		return nil, fmt.Errorf("%w: contacts array is required and must not be empty", errors.ErrValidation)
	}
	if len(in.Contacts) > s.cfg.MaxBatch {
		return nil, fmt.Errorf("%w: maximum %d contacts allowed for scheduled SMS", errors.ErrValidation, s.cfg.MaxBatch)
	}
	if err := validate.Credentials(in.Credentials); err != nil {
		return nil, err
	}
	if err := validate.SenderConfig(in.Sender); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if !in.ScheduledAt.After(now) {
		return nil, fmt.Errorf("%w: scheduled time must be in the future", errors.ErrValidation)
	}

	// Contacts with malformed numbers are dropped here, not retried later.
	filtered := make([]domain.Contact, 0, len(in.Contacts))
	for _, c := range in.Contacts {
		if validate.PhoneNumber(c.Phone()) {
			filtered = append(filtered, c)
		}
	}

	delay := in.ScheduledAt.Sub(now)
	if in.MessageDelay < 0 {
		in.MessageDelay = 0
	}

	job := &domain.Job{
		ID:           uuid.New(),
		Contacts:     filtered,
		Message:      in.Message,
		Credentials:  in.Credentials,
		Sender:       in.Sender,
		ScheduledAt:  in.ScheduledAt,
		MessageDelay: in.MessageDelay,
		Status:       domain.JobStatusScheduled,
		CreatedAt:    now,
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.timers[job.ID] = s.newTimer(delay, func() { s.fire(job.ID) })
	s.mu.Unlock()

	s.logger.Info("scheduler: job scheduled",
		zap.String("job_id", job.ID.String()),
		zap.Time("scheduled_at", in.ScheduledAt),
		zap.Duration("fires_in", delay),
		zap.Int("contact_count", len(filtered)))
	return job, nil
}

// fire is invoked exactly once by the armed timer. The status check under
// the lock makes a late fire after cancellation a safe no-op.
func (s *Store) fire(id uuid.UUID) {
	s.mu.Lock()
	delete(s.timers, id)

	job, ok := s.jobs[id]
	if !ok || job.Status != domain.JobStatusScheduled {
		s.mu.Unlock()
		s.logger.Warn("scheduler: fired job missing or already processed",
			zap.String("job_id", id.String()))
		return
	}

	job.Status = domain.JobStatusRunning
	in := dispatch.Input{
		Contacts:     job.Contacts,
		Template:     job.Message,
		Credentials:  job.Credentials,
		Sender:       job.Sender,
		MessageDelay: job.MessageDelay,
	}
	s.mu.Unlock()

	s.logger.Info("scheduler: executing job",
		zap.String("job_id", id.String()),
		zap.Int("contact_count", len(in.Contacts)))

	tracer := otel.Tracer("smstool.scheduler")
	ctx, span := tracer.Start(context.Background(), "scheduler.fire")
	span.SetAttributes(
		attribute.String("job.id", id.String()),
		attribute.Int("contacts.count", len(in.Contacts)),
	)
	defer span.End()

	report, err := s.runDispatch(ctx, in)
	if err != nil {
		span.RecordError(err)
	}

	s.complete(id, report, err)
}

// runDispatch shields the store from a panicking engine so the job always
// reaches a terminal status.
func (s *Store) runDispatch(ctx context.Context, in dispatch.Input) (report *domain.DispatchReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			report = nil
			err = fmt.Errorf("dispatch panic: %v", r)
		}
	}()
	return s.engine.Run(ctx, in)
}

func (s *Store) complete(id uuid.UUID, report *domain.DispatchReport, dispatchErr error) {
	now := s.clock.Now()

	if report == nil {
		report = &domain.DispatchReport{
			Successful: []domain.SendSuccess{},
			Failed:     []domain.SendFailure{},
			Errors:     []string{},
		}
	}
	if dispatchErr != nil {
		report.Errors = append(report.Errors, dispatchErr.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		// Cannot happen while running: cancel refuses non-scheduled jobs.
		s.logger.Error("scheduler: completed job vanished", zap.String("job_id", id.String()))
		return
	}

	if report.Summary.Total == 0 {
		report.Summary.Total = len(job.Contacts)
	}

	if dispatchErr != nil {
		job.Status = domain.JobStatusFailed
	} else {
		job.Status = domain.JobStatusSent
	}
	job.CompletedAt = &now
	summary := report.Summary
	job.Results = &summary

	s.storeResultLocked(&domain.CompletedJobResult{
		JobID:       id,
		CompletedAt: now,
		Summary:     report.Summary,
		Results: domain.ResultDetails{
			Successful: report.Successful,
			Failed:     report.Failed,
		},
		Errors: report.Errors,
	})

	s.logger.Info("scheduler: job completed",
		zap.String("job_id", id.String()),
		zap.String("status", string(job.Status)),
		zap.Int("successful", report.Summary.Successful),
		zap.Int("failed", report.Summary.Failed))
}

// Cancel stops a scheduled job before it fires and deletes its record.
// Jobs that are running or already terminal cannot be cancelled.
func (s *Store) Cancel(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: Scheduled job not found", errors.ErrNotFound)
	}
	if job.Status != domain.JobStatusScheduled {
		return fmt.Errorf("%w: Cannot cancel job with status: %s", errors.ErrInvalidState, job.Status)
	}

	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
	delete(s.jobs, id)

	s.logger.Info("scheduler: job cancelled", zap.String("job_id", id.String()))
	return nil
}

// JobOverview is one row in the job listing.
type JobOverview struct {
	ID             uuid.UUID
	ScheduledAt    time.Time
	ContactCount   int
	Status         domain.JobStatus
	MessagePreview string
}

// List returns a read-only snapshot of all known jobs, oldest first.
func (s *Store) List() []JobOverview {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobOverview, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, JobOverview{
			ID:             job.ID,
			ScheduledAt:    job.ScheduledAt,
			ContactCount:   len(job.Contacts),
			Status:         job.Status,
			MessagePreview: truncate(job.Message, s.cfg.PreviewLength),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ScheduledAt.Before(out[j].ScheduledAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// Result returns the retained result snapshot for a completed job. Pending
// and unknown job ids are both reported as not found.
func (s *Store) Result(id uuid.UUID) (*domain.CompletedJobResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, ok := s.results[id]
	if !ok {
		return nil, fmt.Errorf("%w: Job not found or still pending", errors.ErrNotFound)
	}
	return result, nil
}

// storeResultLocked records a completed-job result and applies the count
// cap. Caller holds mu.
func (s *Store) storeResultLocked(result *domain.CompletedJobResult) {
	s.results[result.JobID] = result
	s.resultOrder = append(s.resultOrder, result.JobID)

	if s.cfg.ResultMaxCount > 0 {
		for len(s.resultOrder) > s.cfg.ResultMaxCount {
			s.dropResultLocked(s.resultOrder[0])
		}
	}
}

func (s *Store) dropResultLocked(id uuid.UUID) {
	delete(s.results, id)
	if len(s.resultOrder) > 0 && s.resultOrder[0] == id {
		s.resultOrder = s.resultOrder[1:]
	} else {
		for i, rid := range s.resultOrder {
			if rid == id {
				s.resultOrder = append(s.resultOrder[:i], s.resultOrder[i+1:]...)
				break
			}
		}
	}
	// drop the terminal job record alongside its result
	if job, ok := s.jobs[id]; ok && (job.Status == domain.JobStatusSent || job.Status == domain.JobStatusFailed) {
		delete(s.jobs, id)
	}
}

// EvictExpired drops completed results past the retention age and returns
// how many were removed.
func (s *Store) EvictExpired() int {
	if s.cfg.ResultMaxAge <= 0 {
		return 0
	}

	cutoff := s.clock.Now().Add(-s.cfg.ResultMaxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for len(s.resultOrder) > 0 {
		oldest, ok := s.results[s.resultOrder[0]]
		if !ok {
			s.resultOrder = s.resultOrder[1:]
			continue
		}
		if !oldest.CompletedAt.Before(cutoff) {
			break
		}
		s.dropResultLocked(oldest.JobID)
		evicted++
	}
	return evicted
}

// RunJanitor sweeps expired results until ctx is cancelled.
func (s *Store) RunJanitor(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if n := s.EvictExpired(); n > 0 {
			s.logger.Info("scheduler: evicted completed results", zap.Int("count", n))
		}
	}
}

// Stop disarms every pending timer. Jobs already running finish normally.
func (s *Store) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
