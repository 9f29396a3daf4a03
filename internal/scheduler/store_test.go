package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/twilio-labs/bulk-sms-tool/internal/dispatch"
	"github.com/twilio-labs/bulk-sms-tool/internal/domain"
	apperrors "github.com/twilio-labs/bulk-sms-tool/pkg/errors"
	"github.com/twilio-labs/bulk-sms-tool/pkg/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// manualTimer fires only when the test asks it to.
type manualTimer struct {
	fn      func()
	delay   time.Duration
	stopped bool
}

func (t *manualTimer) Stop() bool {
	if t.stopped {
		return false
	}
	t.stopped = true
	return true
}

type timerBank struct {
	timers []*manualTimer
}

func (b *timerBank) factory(d time.Duration, fn func()) Timer {
	t := &manualTimer{fn: fn, delay: d}
	b.timers = append(b.timers, t)
	return t
}

// fire simulates the timer elapsing; it runs the callback even for stopped
// timers so tests can exercise the lost-race guard.
func (b *timerBank) fire(i int) {
	b.timers[i].fn()
}

type fakeEngine struct {
	err      error
	panicMsg string
	onRun    func(in dispatch.Input)
	calls    int
}

func (f *fakeEngine) Run(ctx context.Context, in dispatch.Input) (*domain.DispatchReport, error) {
	f.calls++
	if f.onRun != nil {
		f.onRun(in)
	}
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return nil, f.err
	}

	report := &domain.DispatchReport{
		Summary:    domain.ResultSummary{Total: len(in.Contacts), Successful: len(in.Contacts)},
		Successful: []domain.SendSuccess{},
		Failed:     []domain.SendFailure{},
		Errors:     []string{},
	}
	for _, c := range in.Contacts {
		report.Successful = append(report.Successful, domain.SendSuccess{
			Phone: c.Phone(), MessageSID: "SM-test", Status: "queued",
		})
	}
	return report, nil
}

func testStore(t *testing.T, engine Dispatcher, cfg Config) (*Store, *fakeClock, *timerBank) {
	t.Helper()
	clock := newFakeClock()
	bank := &timerBank{}
	store := NewStore(engine, logger.Nop(), cfg).
		WithClock(clock).
		WithTimerFactory(bank.factory)
	return store, clock, bank
}

func validInput(clock *fakeClock, phones ...string) ScheduleInput {
	contacts := make([]domain.Contact, 0, len(phones))
	for _, p := range phones {
		contacts = append(contacts, domain.Contact{"phone": p, "name": "Ada"})
	}
	return ScheduleInput{
		Contacts:    contacts,
		Message:     "Hi {name}",
		Credentials: domain.Credentials{AccountSID: "AC123", AuthToken: "token"},
		Sender:      domain.SenderConfig{Type: domain.SenderTypePhone, PhoneNumber: "+15550000000"},
		ScheduledAt: clock.Now().Add(time.Minute),
	}
}

func TestScheduleValidation(t *testing.T) {
	store, clock, _ := testStore(t, &fakeEngine{}, Config{MaxBatch: 3})

	cases := []ScheduleInput{
		{}, // empty contacts
		func() ScheduleInput { // over batch cap
			in := validInput(clock, "+15550000001", "+15550000002", "+15550000003", "+15550000004")
			return in
		}(),
		func() ScheduleInput { // past time
			in := validInput(clock, "+15550000001")
			in.ScheduledAt = clock.Now().Add(-time.Second)
			return in
		}(),
		func() ScheduleInput { // exactly now is not strictly future
			in := validInput(clock, "+15550000001")
			in.ScheduledAt = clock.Now()
			return in
		}(),
		func() ScheduleInput { // missing credentials
			in := validInput(clock, "+15550000001")
			in.Credentials = domain.Credentials{}
			return in
		}(),
		func() ScheduleInput { // bad sender config
			in := validInput(clock, "+15550000001")
			in.Sender = domain.SenderConfig{Type: "email"}
			return in
		}(),
	}

	for i, tc := range cases {
		if _, err := store.Schedule(tc); !errors.Is(err, apperrors.ErrValidation) {
			t.Errorf("case %d: expected ErrValidation, got %v", i, err)
		}
	}
}

func TestScheduleJustAfterNowSucceeds(t *testing.T) {
	store, clock, bank := testStore(t, &fakeEngine{}, Config{})

	in := validInput(clock, "+15550000001")
	in.ScheduledAt = clock.Now().Add(time.Millisecond)

	job, err := store.Schedule(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Status != domain.JobStatusScheduled {
		t.Fatalf("unexpected status %s", job.Status)
	}
	if len(bank.timers) != 1 || bank.timers[0].delay != time.Millisecond {
		t.Fatalf("expected one timer armed with 1ms delay, got %+v", bank.timers)
	}
}

func TestScheduleFiltersInvalidPhones(t *testing.T) {
	store, clock, _ := testStore(t, &fakeEngine{}, Config{})

	job, err := store.Schedule(validInput(clock, "+15550000001", "bad-number", "+15550000002"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(job.Contacts) != 2 {
		t.Fatalf("expected invalid contact filtered at schedule time, got %d contacts", len(job.Contacts))
	}
}

func TestFireCompletesJob(t *testing.T) {
	engine := &fakeEngine{}
	store, clock, bank := testStore(t, engine, Config{})

	job, err := store.Schedule(validInput(clock, "+15550000001", "+15550000002"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clock.Advance(time.Minute)
	bank.fire(0)

	if engine.calls != 1 {
		t.Fatalf("expected one dispatch run, got %d", engine.calls)
	}

	jobs := store.List()
	if len(jobs) != 1 || jobs[0].Status != domain.JobStatusSent {
		t.Fatalf("expected job marked sent, got %+v", jobs)
	}

	result, err := store.Result(job.ID)
	if err != nil {
		t.Fatalf("expected completed result: %v", err)
	}
	if result.Summary.Total != 2 || result.Summary.Successful != 2 || result.Summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
	if !result.CompletedAt.Equal(clock.Now()) {
		t.Fatalf("completedAt not stamped from clock: %v", result.CompletedAt)
	}
}

func TestFireAfterCancelIsNoOp(t *testing.T) {
	engine := &fakeEngine{}
	store, clock, bank := testStore(t, engine, Config{})

	job, err := store.Schedule(validInput(clock, "+15550000001"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Cancel(job.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if !bank.timers[0].stopped {
		t.Fatal("cancel should stop the armed timer")
	}

	// simulate the timer having fired despite the lost Stop race
	bank.fire(0)

	if engine.calls != 0 {
		t.Fatal("cancelled job must never dispatch")
	}
	if _, err := store.Result(job.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("no result may exist for a cancelled job, got %v", err)
	}
}

func TestCancelUnknownAndDouble(t *testing.T) {
	store, clock, _ := testStore(t, &fakeEngine{}, Config{})

	if err := store.Cancel(uuid.New()); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	job, _ := store.Schedule(validInput(clock, "+15550000001"))
	if err := store.Cancel(job.ID); err != nil {
		t.Fatalf("first cancel failed: %v", err)
	}
	if err := store.Cancel(job.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("second cancel should be ErrNotFound, got %v", err)
	}
}

func TestCancelRunningJobRejected(t *testing.T) {
	var store *Store
	var jobID uuid.UUID
	var cancelErr error

	engine := &fakeEngine{onRun: func(in dispatch.Input) {
		cancelErr = store.Cancel(jobID)
	}}

	st, clock, bank := testStore(t, engine, Config{})
	store = st
	job, err := store.Schedule(validInput(clock, "+15550000001"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	jobID = job.ID

	bank.fire(0)

	if !errors.Is(cancelErr, apperrors.ErrInvalidState) {
		t.Fatalf("cancelling a running job should be ErrInvalidState, got %v", cancelErr)
	}
	// the cancel attempt must not have disturbed completion
	if _, err := store.Result(jobID); err != nil {
		t.Fatalf("expected result after completion: %v", err)
	}
}

func TestCancelSentJobRejected(t *testing.T) {
	store, clock, bank := testStore(t, &fakeEngine{}, Config{})

	job, _ := store.Schedule(validInput(clock, "+15550000001"))
	bank.fire(0)

	if err := store.Cancel(job.ID); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for sent job, got %v", err)
	}
}

func TestDispatchErrorStillTerminal(t *testing.T) {
	engine := &fakeEngine{err: errors.New("provider exploded")}
	store, clock, bank := testStore(t, engine, Config{})

	job, _ := store.Schedule(validInput(clock, "+15550000001", "+15550000002"))
	bank.fire(0)

	jobs := store.List()
	if len(jobs) != 1 || jobs[0].Status != domain.JobStatusFailed {
		t.Fatalf("expected job marked failed, got %+v", jobs)
	}

	result, err := store.Result(job.ID)
	if err != nil {
		t.Fatalf("expected retained result: %v", err)
	}
	if result.Summary.Successful != 0 {
		t.Fatalf("failed job must record zero successes, got %+v", result.Summary)
	}
	if len(result.Errors) == 0 {
		t.Fatal("expected top-level error recorded")
	}
}

func TestDispatchPanicStillTerminal(t *testing.T) {
	engine := &fakeEngine{panicMsg: "boom"}
	store, clock, bank := testStore(t, engine, Config{})

	job, _ := store.Schedule(validInput(clock, "+15550000001"))
	bank.fire(0)

	jobs := store.List()
	if len(jobs) != 1 || jobs[0].Status != domain.JobStatusFailed {
		t.Fatalf("panicking dispatch must not leave job running, got %+v", jobs)
	}
	if _, err := store.Result(job.ID); err != nil {
		t.Fatalf("expected result for panicked job: %v", err)
	}
}

func TestListPreviewTruncation(t *testing.T) {
	store, clock, _ := testStore(t, &fakeEngine{}, Config{PreviewLength: 10})

	in := validInput(clock, "+15550000001")
	in.Message = "this message is definitely longer than ten characters"
	if _, err := store.Schedule(in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	jobs := store.List()
	if jobs[0].MessagePreview != "this messa..." {
		t.Fatalf("unexpected preview: %q", jobs[0].MessagePreview)
	}
	if jobs[0].ContactCount != 1 {
		t.Fatalf("unexpected contact count: %d", jobs[0].ContactCount)
	}
}

func TestResultCountEviction(t *testing.T) {
	store, clock, bank := testStore(t, &fakeEngine{}, Config{ResultMaxCount: 1})

	first, _ := store.Schedule(validInput(clock, "+15550000001"))
	second, _ := store.Schedule(validInput(clock, "+15550000002"))

	bank.fire(0)
	bank.fire(1)

	if _, err := store.Result(first.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("oldest result should be evicted, got %v", err)
	}
	if _, err := store.Result(second.ID); err != nil {
		t.Fatalf("newest result should be retained: %v", err)
	}
}

func TestResultAgeEviction(t *testing.T) {
	store, clock, bank := testStore(t, &fakeEngine{}, Config{ResultMaxAge: time.Hour})

	job, _ := store.Schedule(validInput(clock, "+15550000001"))
	bank.fire(0)

	if n := store.EvictExpired(); n != 0 {
		t.Fatalf("fresh result must not be evicted, got %d", n)
	}

	clock.Advance(2 * time.Hour)
	if n := store.EvictExpired(); n != 1 {
		t.Fatalf("expected one eviction, got %d", n)
	}
	if _, err := store.Result(job.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected evicted result to be gone, got %v", err)
	}
	// the terminal job record goes with it
	if len(store.List()) != 0 {
		t.Fatalf("terminal job should be dropped with its result")
	}
}

func TestStopDisarmsTimers(t *testing.T) {
	store, clock, bank := testStore(t, &fakeEngine{}, Config{})

	if _, err := store.Schedule(validInput(clock, "+15550000001")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	store.Stop()

	if !bank.timers[0].stopped {
		t.Fatal("Stop should disarm pending timers")
	}
}
