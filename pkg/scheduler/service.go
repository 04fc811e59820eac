package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/jdziat/scheduled-publisher/pkg/core"
	"github.com/jdziat/scheduled-publisher/pkg/events"
	"github.com/jdziat/scheduled-publisher/pkg/orchestrator"
	"github.com/jdziat/scheduled-publisher/pkg/security"
	"github.com/jdziat/scheduled-publisher/pkg/timers"
)

// Service schedules, reschedules and cancels publish jobs and owns the timer
// registry and the sweep.
type Service struct {
	store  core.Store
	orch   *orchestrator.Orchestrator
	timers *timers.Registry
	hub    *events.Hub
	cfg    config
	logger *zap.Logger

	// lifecycle serializes Start and Stop.
	lifecycle sync.Mutex

	mu       sync.Mutex
	running  bool
	cron     *cron.Cron
	runCtx   context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
}

// New creates a stopped Service. pubLog may be nil.
func New(store core.Store, creds core.CredentialResolver, publishers core.PublisherLookup, pubLog core.PublicationLog, opts ...Option) *Service {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	hub := events.NewHub()
	orch := orchestrator.New(store, creds, publishers, pubLog,
		orchestrator.WithLogger(cfg.logger),
		orchestrator.WithClock(cfg.now),
		orchestrator.WithRetryPolicy(cfg.policy),
		orchestrator.WithStoreRetry(cfg.storeRetry),
		orchestrator.WithConcurrency(cfg.concurrency),
		orchestrator.WithPublishTimeout(cfg.publishTimeout),
		orchestrator.WithMetrics(cfg.metrics),
		orchestrator.WithEvents(hub),
	)

	return &Service{
		store:  store,
		orch:   orch,
		timers: timers.NewRegistry(timers.WithClock(cfg.now)),
		hub:    hub,
		cfg:    cfg,
		logger: cfg.logger.Named("scheduler"),
	}
}

// Start arms a timer for every PENDING job, recovers stale PROCESSING jobs
// when enabled and starts the periodic sweep. Jobs that came due while the
// Service was stopped fire immediately. Calling Start on a running Service is
// a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.IsRunning() {
		return nil
	}

	sched, err := s.sweepSchedule()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.runCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.running = true
	s.mu.Unlock()

	if err := s.reload(ctx); err != nil {
		s.stopLocked()
		return err
	}
	if s.cfg.staleAfter > 0 {
		if err := s.recoverStale(ctx); err != nil {
			s.logger.Warn("stale processing recovery failed", zap.Error(err))
		}
	}

	clog := cronLogger{s.logger.Sugar()}
	c := cron.New(cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)))
	c.Schedule(sched, cron.FuncJob(s.runSweep))

	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()
	c.Start()

	s.logger.Info("scheduler started",
		zap.Int("armed_timers", s.timers.Len()),
		zap.Duration("stale_processing_after", s.cfg.staleAfter))
	return nil
}

// Stop halts the sweep, disarms every timer and waits for in-flight attempts.
// Job status is not touched; PENDING jobs are reloaded by the next Start.
// Calling Stop on a stopped Service is a no-op.
func (s *Service) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.stopLocked()
}

func (s *Service) stopLocked() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	c := s.cron
	s.cron = nil
	disarmed := s.timers.CancelAll()
	cancel := s.cancel
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	s.inflight.Wait()
	cancel()

	s.cfg.metrics.SetArmedTimers(0)
	s.logger.Info("scheduler stopped", zap.Int("disarmed_timers", disarmed))
}

// IsRunning reports whether Start has been called without a matching Stop.
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Create assigns an id and defaults, validates and persists job, then
// schedules it when the Service is running. A stopped Service leaves the job
// for the next Start.
// A MaxRetries of zero takes the configured default.
func (s *Service) Create(ctx context.Context, job *core.ScheduledJob) error {
	if job == nil {
		return errors.Wrap(core.ErrInvalidJob, "nil job")
	}
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	job.Status = core.StatusPending
	job.RetryCount = 0
	job.TimerKey = nil
	if job.MaxRetries <= 0 {
		job.MaxRetries = s.cfg.maxRetries
	}
	job.MaxRetries = security.ClampRetries(job.MaxRetries)

	if err := security.ValidateJob(job); err != nil {
		return err
	}
	if err := s.store.Create(ctx, job); err != nil {
		return errors.Wrap(err, "create scheduled job")
	}
	s.logger.Info("scheduled job created",
		zap.String("job_id", job.ID),
		zap.Time("scheduled_time", job.ScheduledTime),
		zap.Int("platforms", len(job.Platforms)))

	if !s.IsRunning() {
		return nil
	}
	return s.Schedule(ctx, job)
}

// Schedule arms a timer for job. A job whose scheduled time is not in the
// future is fired synchronously on the caller's goroutine.
func (s *Service) Schedule(ctx context.Context, job *core.ScheduledJob) error {
	if job == nil || job.ID == "" {
		return errors.Wrap(core.ErrInvalidJob, "job id is required")
	}
	if err := statusError(job); err != nil {
		return err
	}
	if job.ScheduledTime.IsZero() {
		s.logger.Error("refusing to arm timer without a scheduled time", zap.String("job_id", job.ID))
		return errors.Wrapf(core.ErrInvalidSchedule, "job %s has no scheduled time", job.ID)
	}

	if job.ScheduledTime.After(s.cfg.now()) {
		return s.arm(ctx, job, core.SourceTimer)
	}

	done, ok := s.track()
	if !ok {
		return core.ErrNotRunning
	}
	defer done()

	s.disarm(job.ID)
	_, err := s.execute(ctx, job.ID, core.SourceSchedule)
	return err
}

// Reschedule cancels the job's timer, persists the changed fields and
// schedules the updated job. Only PENDING jobs can be rescheduled; status,
// retry count and timer fields in upd are ignored.
func (s *Service) Reschedule(ctx context.Context, jobID string, upd core.JobUpdate) (*core.ScheduledJob, error) {
	current, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := statusError(current); err != nil {
		return nil, err
	}

	upd.IfStatus = core.StatusPending
	upd.Status = nil
	upd.RetryCount = nil
	upd.CompletedAt = nil
	upd.TimerKey = nil
	upd.ClearTimerKey = true
	if upd.MaxRetries != nil {
		n := security.ClampRetries(*upd.MaxRetries)
		upd.MaxRetries = &n
	}

	updated := *current
	upd.Apply(&updated)
	if err := security.ValidateJob(&updated); err != nil {
		return nil, err
	}

	s.disarm(jobID)
	if err := s.store.Update(ctx, jobID, upd); err != nil {
		if errors.Is(err, core.ErrStatusConflict) {
			if latest, getErr := s.store.Get(ctx, jobID); getErr == nil {
				if statusErr := statusError(latest); statusErr != nil {
					return nil, statusErr
				}
			}
		}
		return nil, err
	}

	s.logger.Info("scheduled job rescheduled",
		zap.String("job_id", jobID),
		zap.Time("scheduled_time", updated.ScheduledTime))

	if !s.IsRunning() {
		return &updated, nil
	}
	return &updated, s.Schedule(ctx, &updated)
}

// Cancel disarms the job's timer and moves it to CANCELLED. It returns
// ErrJobNotFound, ErrJobTerminal (including an earlier cancel) or
// ErrJobInFlight when the job is not PENDING. An attempt already in flight
// is not interrupted.
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	s.disarm(jobID)

	won, err := s.store.CompareAndSetStatus(ctx, jobID, core.StatusPending, core.StatusCancelled)
	if err != nil {
		return errors.Wrapf(err, "cancel job %s", jobID)
	}
	if !won {
		job, err := s.store.Get(ctx, jobID)
		if err != nil {
			return err
		}
		if err := statusError(job); err != nil {
			return err
		}
		return errors.Wrapf(core.ErrStatusConflict, "cancel job %s", jobID)
	}
	// A retry or create may have armed between the first disarm and the guard.
	s.disarm(jobID)

	if err := s.store.Update(ctx, jobID, core.JobUpdate{ClearTimerKey: true}); err != nil {
		s.logger.Warn("failed to clear timer key of cancelled job", zap.String("job_id", jobID), zap.Error(err))
	}

	s.cfg.metrics.RecordDisposition(core.StatusCancelled)
	s.hub.Emit(ctx, &core.JobCancelled{JobID: jobID, Timestamp: s.cfg.now()})
	s.logger.Info("scheduled job cancelled", zap.String("job_id", jobID))
	return nil
}

// Sweep fires every PENDING job whose scheduled time has passed. A failure on
// one job is logged and does not stop the others; all failures are returned
// combined.
func (s *Service) Sweep(ctx context.Context) error {
	var errs error
	if s.cfg.staleAfter > 0 {
		if err := s.recoverStale(ctx); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}

	due, err := s.store.FindDueJobs(ctx, s.cfg.now())
	if err != nil {
		return errors.CombineErrors(errs, errors.Wrap(err, "find due jobs"))
	}
	if len(due) > 0 {
		s.logger.Info("sweep found overdue jobs", zap.Int("count", len(due)))
	}

	for _, job := range due {
		if err := ctx.Err(); err != nil {
			return errors.CombineErrors(errs, err)
		}
		if _, err := s.execute(ctx, job.ID, core.SourceSweep); err != nil {
			s.cfg.metrics.RecordSweepError()
			s.logger.Error("sweep attempt failed", zap.String("job_id", job.ID), zap.Error(err))
			errs = errors.CombineErrors(errs, err)
		}
	}
	return errs
}

// Status is a diagnostic snapshot of the Service.
type Status struct {
	Running     bool
	ArmedTimers int
	Timers      []timers.Armed
}

// Status returns whether the Service runs and which timers are armed.
func (s *Service) Status() Status {
	snap := s.timers.Snapshot()
	return Status{
		Running:     s.IsRunning(),
		ArmedTimers: len(snap),
		Timers:      snap,
	}
}

// HasTimer reports whether a timer is armed for jobID.
func (s *Service) HasTimer(jobID string) bool {
	return s.timers.Has(jobID)
}

// Events returns a channel for receiving scheduler events.
// The caller must call Unsubscribe when done.
func (s *Service) Events() <-chan core.Event {
	return s.hub.Events()
}

// Unsubscribe removes a channel returned by Events.
func (s *Service) Unsubscribe(ch <-chan core.Event) {
	s.hub.Unsubscribe(ch)
}

// OnComplete registers a callback for completed jobs.
func (s *Service) OnComplete(fn func(context.Context, *core.JobCompleted)) {
	s.hub.OnComplete(fn)
}

// OnRetry registers a callback for jobs re-armed after a total failure.
func (s *Service) OnRetry(fn func(context.Context, *core.JobRetrying)) {
	s.hub.OnRetry(fn)
}

// OnFail registers a callback for jobs that failed permanently.
func (s *Service) OnFail(fn func(context.Context, *core.JobFailed)) {
	s.hub.OnFail(fn)
}

// --- internals ---

func (s *Service) sweepSchedule() (cron.Schedule, error) {
	spec := s.cfg.sweepSchedule
	if spec == "" {
		if s.cfg.sweepInterval <= 0 {
			return nil, errors.Wrapf(core.ErrInvalidSchedule, "sweep interval %s", s.cfg.sweepInterval)
		}
		spec = fmt.Sprintf("@every %s", s.cfg.sweepInterval)
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, errors.Wrapf(core.ErrInvalidSchedule, "sweep schedule %q: %v", spec, err)
	}
	return sched, nil
}

// track registers an in-flight attempt. It fails once Stop has begun.
func (s *Service) track() (func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil, false
	}
	s.inflight.Add(1)
	return s.inflight.Done, true
}

// arm registers the job's timer and persists its timer key. The key write is
// conditional on PENDING; if the job moved on meanwhile the timer just armed
// is removed again.
func (s *Service) arm(ctx context.Context, job *core.ScheduledJob, source core.FireSource) error {
	id := job.ID

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return core.ErrNotRunning
	}
	gen, _ := s.timers.Arm(id, job.ScheduledTime, func() { s.fire(id, source) })
	s.mu.Unlock()
	s.cfg.metrics.SetArmedTimers(s.timers.Len())

	s.logger.Debug("timer armed", zap.String("job_id", id), zap.Time("fire_at", job.ScheduledTime))

	key := id
	err := s.store.Update(ctx, id, core.JobUpdate{IfStatus: core.StatusPending, TimerKey: &key})
	if errors.Is(err, core.ErrStatusConflict) {
		// Fired or cancelled meanwhile. A fired timer is already gone; a
		// cancelled job must not keep one.
		if s.timers.CancelIf(id, gen) {
			s.cfg.metrics.SetArmedTimers(s.timers.Len())
			s.logger.Debug("timer dropped, job no longer pending", zap.String("job_id", id))
		}
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "persist timer key of job %s", id)
	}
	job.TimerKey = &key
	return nil
}

func (s *Service) disarm(jobID string) {
	if s.timers.Cancel(jobID) {
		s.cfg.metrics.SetArmedTimers(s.timers.Len())
		s.logger.Debug("timer disarmed", zap.String("job_id", jobID))
	}
}

// fire is the timer callback.
func (s *Service) fire(jobID string, source core.FireSource) {
	done, ok := s.track()
	if !ok {
		return
	}
	defer done()
	s.cfg.metrics.SetArmedTimers(s.timers.Len())

	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()

	if _, err := s.execute(ctx, jobID, source); err != nil {
		s.logger.Error("scheduled attempt failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

// execute runs one attempt and re-arms the job when the policy asks for a retry.
func (s *Service) execute(ctx context.Context, jobID string, source core.FireSource) (orchestrator.Result, error) {
	res, err := s.orch.Execute(ctx, jobID, source)
	if err != nil {
		return res, err
	}
	if res.Retrying() {
		if err := s.arm(ctx, res.Job, core.SourceTimer); err != nil && !errors.Is(err, core.ErrNotRunning) {
			return res, err
		}
	}
	return res, nil
}

func (s *Service) runSweep() {
	done, ok := s.track()
	if !ok {
		return
	}
	defer done()

	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()

	if err := s.Sweep(ctx); err != nil {
		s.logger.Warn("sweep finished with errors", zap.Error(err))
	}
}

// reload arms a timer for every PENDING job. Overdue jobs get a timer that
// fires at once.
func (s *Service) reload(ctx context.Context) error {
	now := s.cfg.now()
	future, err := s.store.FindPendingAfter(ctx, now)
	if err != nil {
		return errors.Wrap(err, "reload pending jobs")
	}
	overdue, err := s.store.FindDueJobs(ctx, now)
	if err != nil {
		return errors.Wrap(err, "reload overdue jobs")
	}

	var errs error
	for _, job := range append(future, overdue...) {
		if err := s.arm(ctx, job, core.SourceTimer); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	s.logger.Info("reloaded pending jobs",
		zap.Int("future", len(future)),
		zap.Int("overdue", len(overdue)))
	return errs
}

// recoverStale moves jobs stuck in PROCESSING back to PENDING and fires them.
func (s *Service) recoverStale(ctx context.Context) error {
	finder, ok := s.store.(core.StaleFinder)
	if !ok {
		return nil
	}

	cutoff := s.cfg.now().Add(-s.cfg.staleAfter)
	stale, err := finder.FindStaleProcessing(ctx, cutoff)
	if err != nil {
		return errors.Wrap(err, "find stale processing jobs")
	}

	var errs error
	for _, job := range stale {
		won, err := s.store.CompareAndSetStatus(ctx, job.ID, core.StatusProcessing, core.StatusPending)
		if err != nil {
			errs = errors.CombineErrors(errs, err)
			continue
		}
		if !won {
			continue
		}
		s.logger.Warn("re-queued stale processing job",
			zap.String("job_id", job.ID),
			zap.Timep("processing_started_at", job.ProcessingStartedAt))

		job.Status = core.StatusPending
		if err := s.arm(ctx, job, core.SourceRecovery); err != nil && !errors.Is(err, core.ErrNotRunning) {
			errs = errors.CombineErrors(errs, err)
		}
	}
	return errs
}

// statusError maps a non-PENDING job to the error callers see.
func statusError(job *core.ScheduledJob) error {
	switch {
	case job.Status == core.StatusPending:
		return nil
	case job.Status == core.StatusProcessing:
		return errors.Wrapf(core.ErrJobInFlight, "job %s", job.ID)
	case job.Status.IsTerminal():
		return errors.Wrapf(core.ErrJobTerminal, "job %s is %s", job.ID, job.Status)
	default:
		return errors.Wrapf(core.ErrInvalidJob, "job %s has status %q", job.ID, job.Status)
	}
}
