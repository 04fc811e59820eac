package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jdziat/scheduled-publisher/pkg/core"
	"github.com/jdziat/scheduled-publisher/pkg/events"
	"github.com/jdziat/scheduled-publisher/pkg/metrics"
	"github.com/jdziat/scheduled-publisher/pkg/retry"
	"github.com/jdziat/scheduled-publisher/pkg/security"
)

// Orchestrator runs publish attempts against a Store.
type Orchestrator struct {
	store      core.Store
	creds      core.CredentialResolver
	publishers core.PublisherLookup
	pubLog     core.PublicationLog

	policy         retry.Policy
	storeRetry     retry.BackoffConfig
	concurrency    int
	publishTimeout time.Duration

	logger  *zap.Logger
	metrics *metrics.Metrics
	events  *events.Hub
	now     func() time.Time
}

// New creates an orchestrator. pubLog may be nil, in which case successful
// publications are not recorded.
func New(store core.Store, creds core.CredentialResolver, publishers core.PublisherLookup, pubLog core.PublicationLog, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:          store,
		creds:          creds,
		publishers:     publishers,
		pubLog:         pubLog,
		policy:         retry.DefaultPolicy(),
		storeRetry:     retry.DefaultBackoffConfig(),
		publishTimeout: DefaultPublishTimeout,
		logger:         zap.NewNop(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt.apply(o)
	}
	return o
}

// Result describes what one call to Execute did.
type Result struct {
	JobID string

	// Skipped is true when the job was not PENDING, so nothing was published.
	Skipped bool

	// Status is the job's status after the attempt.
	Status core.Status

	// Outcomes holds one entry per targeted platform, in job order.
	Outcomes []core.PublishOutcome

	// NextAttemptAt is set when the attempt was re-armed for a retry.
	NextAttemptAt time.Time

	// Job is the persisted view after the disposition write.
	Job *core.ScheduledJob
}

// Retrying reports whether the caller should arm a timer for NextAttemptAt.
func (r Result) Retrying() bool {
	return !r.Skipped && r.Status == core.StatusPending
}

// Succeeded returns the number of platforms that published.
func (r Result) Succeeded() int {
	n := 0
	for _, out := range r.Outcomes {
		if out.Succeeded {
			n++
		}
	}
	return n
}

// Execute performs one attempt of jobID. A job that is no longer PENDING is
// skipped without side effects.
func (o *Orchestrator) Execute(ctx context.Context, jobID string, source core.FireSource) (Result, error) {
	res := Result{JobID: jobID}

	var won bool
	err := retry.Do(ctx, o.storeRetry, func() error {
		var casErr error
		won, casErr = o.store.CompareAndSetStatus(ctx, jobID, core.StatusPending, core.StatusProcessing)
		return casErr
	})
	if err != nil {
		return res, errors.Wrapf(err, "claim job %s", jobID)
	}
	if !won {
		res.Skipped = true
		o.logger.Debug("attempt skipped, job not pending",
			zap.String("job_id", jobID),
			zap.String("source", string(source)))
		return res, nil
	}

	o.metrics.RecordFire(source)
	o.events.Emit(ctx, &core.JobFired{JobID: jobID, Source: source, Timestamp: o.now()})

	// Past the guard the job must always leave PROCESSING through a disposition
	// write, even if the caller's context ends mid-publish.
	writeCtx := context.WithoutCancel(ctx)

	job, err := o.store.Get(writeCtx, jobID)
	if err != nil {
		return res, errors.Wrapf(err, "load claimed job %s", jobID)
	}
	job.Status = core.StatusProcessing

	start := o.now()
	o.logger.Info("publishing scheduled job",
		zap.String("job_id", job.ID),
		zap.String("source", string(source)),
		zap.Int("attempt", job.RetryCount+1),
		zap.Int("platforms", len(job.Platforms)))

	res.Outcomes = o.publishAll(ctx, job)
	return o.dispose(writeCtx, job, res, o.now().Sub(start))
}

// publishAll runs every platform and waits for all of them.
func (o *Orchestrator) publishAll(ctx context.Context, job *core.ScheduledJob) []core.PublishOutcome {
	outcomes := make([]core.PublishOutcome, len(job.Platforms))

	var g errgroup.Group
	if o.concurrency > 0 {
		g.SetLimit(o.concurrency)
	}
	for i, p := range job.Platforms {
		g.Go(func() error {
			outcomes[i] = o.publishOne(ctx, job, p)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (o *Orchestrator) publishOne(ctx context.Context, job *core.ScheduledJob, p core.Platform) (out core.PublishOutcome) {
	out.Platform = p
	log := o.logger.With(zap.String("job_id", job.ID), zap.String("platform", string(p)))

	defer func() {
		if r := recover(); r != nil {
			out.Succeeded = false
			out.ExternalPostID = ""
			out.Err = errors.Newf("publisher panicked: %v", r)
			log.Error("platform publisher panicked", zap.Any("panic", r))
		}
	}()

	creds, err := o.creds.Resolve(ctx, job.OwnerID, p)
	if err != nil {
		if !errors.Is(err, core.ErrAccountNotConnected) {
			log.Warn("credential lookup failed", zap.Error(err))
		}
		out.Err = err
		return out
	}
	if creds == nil {
		out.Err = core.ErrAccountNotConnected
		return out
	}

	pub, ok := o.publishers.Publisher(p)
	if !ok {
		out.Err = core.ErrNoPublisher
		return out
	}

	pctx := ctx
	if o.publishTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, o.publishTimeout)
		defer cancel()
	}

	start := o.now()
	postID, err := pub.Publish(pctx, job.Content, job.MediaURLs, *creds)
	o.metrics.RecordPublish(p, err == nil, o.now().Sub(start))
	if err != nil {
		log.Warn("platform publish failed", zap.Error(err))
		out.Err = err
		return out
	}

	out.Succeeded = true
	out.ExternalPostID = postID
	log.Info("published to platform", zap.String("external_post_id", postID))

	if o.pubLog != nil {
		rec := &core.Publication{
			ScheduledJobID: job.ID,
			OwnerID:        job.OwnerID,
			Platform:       p,
			ExternalPostID: postID,
			Content:        job.Content,
			MediaURLs:      job.MediaURLs,
			PublishedAt:    o.now(),
		}
		// The post exists on the platform; a failed record must not turn it
		// into a failure that would publish it again on retry.
		if err := o.pubLog.Record(context.WithoutCancel(ctx), rec); err != nil {
			log.Error("failed to record publication", zap.String("external_post_id", postID), zap.Error(err))
		}
	}
	return out
}

// dispose computes and persists the post-attempt status.
func (o *Orchestrator) dispose(ctx context.Context, job *core.ScheduledJob, res Result, elapsed time.Duration) (Result, error) {
	now := o.now()
	succeeded := res.Succeeded()
	failure := aggregate(res.Outcomes)

	upd := core.JobUpdate{IfStatus: core.StatusProcessing, ClearTimerKey: true}
	var decision retry.Decision
	switch {
	case succeeded > 0:
		status := core.StatusCompleted
		upd.Status = &status
		upd.CompletedAt = &now
		if succeeded == len(res.Outcomes) {
			upd.ClearError = true
		} else {
			upd.ErrorMessage = &failure
		}
	default:
		decision = o.policy.Decide(job.RetryCount, job.MaxRetries)
		upd.ErrorMessage = &failure
		if decision.IsRetry() {
			status := core.StatusPending
			count := job.RetryCount + 1
			next := now.Add(decision.Delay)
			upd.Status = &status
			upd.RetryCount = &count
			upd.ScheduledTime = &next
			res.NextAttemptAt = next
		} else {
			status := core.StatusFailed
			upd.Status = &status
			upd.CompletedAt = &now
		}
	}

	err := retry.Do(ctx, o.storeRetry, func() error {
		err := o.store.Update(ctx, job.ID, upd)
		if errors.Is(err, core.ErrStatusConflict) || errors.Is(err, core.ErrJobNotFound) || errors.Is(err, core.ErrInvalidTransition) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		o.logger.Error("failed to record disposition, job left in PROCESSING",
			zap.String("job_id", job.ID),
			zap.String("status", string(*upd.Status)),
			zap.Error(err))
		res.Status = core.StatusProcessing
		res.NextAttemptAt = time.Time{}
		res.Job = job
		return res, errors.Wrapf(err, "record disposition of job %s", job.ID)
	}

	upd.Apply(job)
	res.Status = job.Status
	res.Job = job
	o.metrics.RecordDisposition(job.Status)

	log := o.logger.With(
		zap.String("job_id", job.ID),
		zap.String("status", string(job.Status)),
		zap.Int("succeeded", succeeded),
		zap.Int("platforms", len(res.Outcomes)),
		zap.Duration("duration", elapsed))

	switch job.Status {
	case core.StatusCompleted:
		if failure != "" {
			log.Warn("scheduled job completed with partial failures", zap.String("error", failure))
		} else {
			log.Info("scheduled job completed")
		}
		o.events.Emit(ctx, &core.JobCompleted{Job: job, Outcomes: res.Outcomes, Duration: elapsed, Timestamp: now})
	case core.StatusPending:
		log.Warn("scheduled job failed on every platform, retrying",
			zap.Int("attempt", job.RetryCount),
			zap.Time("next_attempt_at", res.NextAttemptAt),
			zap.String("error", failure))
		o.events.Emit(ctx, &core.JobRetrying{Job: job, Attempt: job.RetryCount, NextRunAt: res.NextAttemptAt, Timestamp: now})
	case core.StatusFailed:
		log.Error("scheduled job failed permanently", zap.String("error", failure))
		o.events.Emit(ctx, &core.JobFailed{Job: job, Error: failure, Timestamp: now})
	}
	return res, nil
}

// aggregate joins failed outcomes as "PLATFORM: detail; PLATFORM: detail".
func aggregate(outcomes []core.PublishOutcome) string {
	var parts []string
	for _, out := range outcomes {
		if out.Succeeded {
			continue
		}
		err := out.Err
		if err == nil {
			err = errors.New("unknown error")
		}
		parts = append(parts, (&core.PublishError{Platform: out.Platform, Err: err}).Error())
	}
	return security.SanitizeErrorMessage(strings.Join(parts, "; "))
}
