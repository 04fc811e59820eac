package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jdziat/scheduled-publisher/pkg/core"
)

// GormStorage implements the publisher persistence interfaces using GORM.
type GormStorage struct {
	db  *gorm.DB
	now func() time.Time
}

var (
	_ core.Store              = (*GormStorage)(nil)
	_ core.StaleFinder        = (*GormStorage)(nil)
	_ core.CredentialResolver = (*GormStorage)(nil)
	_ core.PublicationLog     = (*GormStorage)(nil)
)

// NewGormStorage creates a new GORM-backed storage.
func NewGormStorage(db *gorm.DB) *GormStorage {
	return &GormStorage{db: db, now: time.Now}
}

// DB returns the underlying connection.
func (s *GormStorage) DB() *gorm.DB {
	return s.db
}

// IsSQLite reports whether the connection uses the SQLite dialect.
func (s *GormStorage) IsSQLite() bool {
	return s.db != nil && s.db.Dialector != nil && s.db.Dialector.Name() == "sqlite"
}

// Migrate creates the necessary tables.
func (s *GormStorage) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&core.ScheduledJob{}, &core.Publication{}, &core.SocialAccount{})
}

// Times are stored in UTC so that lexical and chronological order agree on
// drivers that persist timestamps as text.
func utc(t time.Time) time.Time { return t.UTC() }

// Create persists a new scheduled job.
func (s *GormStorage) Create(ctx context.Context, job *core.ScheduledJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = core.StatusPending
	}
	job.ScheduledTime = utc(job.ScheduledTime)
	return errors.Wrap(s.db.WithContext(ctx).Create(job).Error, "create scheduled job")
}

// Get retrieves a job by ID.
func (s *GormStorage) Get(ctx context.Context, jobID string) (*core.ScheduledJob, error) {
	var job core.ScheduledJob
	err := s.db.WithContext(ctx).First(&job, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(core.ErrJobNotFound, "id %s", jobID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get scheduled job %s", jobID)
	}
	return &job, nil
}

// FindDueJobs returns PENDING jobs whose scheduled time has passed.
func (s *GormStorage) FindDueJobs(ctx context.Context, now time.Time) ([]*core.ScheduledJob, error) {
	var jobs []*core.ScheduledJob
	err := s.db.WithContext(ctx).
		Where("status = ?", core.StatusPending).
		Where("scheduled_time <= ?", utc(now)).
		Order("scheduled_time ASC, created_at ASC").
		Find(&jobs).Error
	return jobs, errors.Wrap(err, "find due jobs")
}

// FindPendingAfter returns PENDING jobs scheduled strictly after now.
func (s *GormStorage) FindPendingAfter(ctx context.Context, now time.Time) ([]*core.ScheduledJob, error) {
	var jobs []*core.ScheduledJob
	err := s.db.WithContext(ctx).
		Where("status = ?", core.StatusPending).
		Where("scheduled_time > ?", utc(now)).
		Order("scheduled_time ASC").
		Find(&jobs).Error
	return jobs, errors.Wrap(err, "find pending jobs")
}

// FindStaleProcessing returns PROCESSING jobs that started before the cutoff.
func (s *GormStorage) FindStaleProcessing(ctx context.Context, startedBefore time.Time) ([]*core.ScheduledJob, error) {
	var jobs []*core.ScheduledJob
	err := s.db.WithContext(ctx).
		Where("status = ?", core.StatusProcessing).
		Where("processing_started_at < ?", utc(startedBefore)).
		Order("processing_started_at ASC").
		Find(&jobs).Error
	return jobs, errors.Wrap(err, "find stale processing jobs")
}

// CompareAndSetStatus moves a job from expected to next in a single conditional
// UPDATE. Exactly one of several racing callers observes true.
func (s *GormStorage) CompareAndSetStatus(ctx context.Context, jobID string, expected, next core.Status) (bool, error) {
	if !core.CanTransition(expected, next) {
		return false, errors.Wrapf(core.ErrInvalidTransition, "%s -> %s", expected, next)
	}

	updates := map[string]any{"status": next}
	now := utc(s.now())
	switch {
	case next == core.StatusProcessing:
		updates["processing_started_at"] = now
	case next.IsTerminal():
		updates["completed_at"] = now
	}

	result := s.db.WithContext(ctx).
		Model(&core.ScheduledJob{}).
		Where("id = ? AND status = ?", jobID, expected).
		Updates(updates)
	if result.Error != nil {
		return false, errors.Wrapf(result.Error, "set status %s on %s", next, jobID)
	}
	return result.RowsAffected == 1, nil
}

// Update applies a partial update. With IfStatus set the update only happens
// when the job is still in that status, otherwise ErrStatusConflict is returned.
func (s *GormStorage) Update(ctx context.Context, jobID string, upd core.JobUpdate) error {
	if upd.Status != nil && upd.IfStatus != "" && !core.CanTransition(upd.IfStatus, *upd.Status) {
		return errors.Wrapf(core.ErrInvalidTransition, "%s -> %s", upd.IfStatus, *upd.Status)
	}
	if upd.Empty() {
		return nil
	}

	updates, err := updateColumns(upd)
	if err != nil {
		return err
	}

	q := s.db.WithContext(ctx).Model(&core.ScheduledJob{}).Where("id = ?", jobID)
	if upd.IfStatus != "" {
		q = q.Where("status = ?", upd.IfStatus)
	}
	result := q.Updates(updates)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "update scheduled job %s", jobID)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// Nothing matched: tell "missing" apart from "status moved on".
	if _, err := s.Get(ctx, jobID); err != nil {
		return err
	}
	if upd.IfStatus != "" {
		return errors.Wrapf(core.ErrStatusConflict, "job %s is no longer %s", jobID, upd.IfStatus)
	}
	return nil
}

func updateColumns(upd core.JobUpdate) (map[string]any, error) {
	updates := map[string]any{}
	if upd.Status != nil {
		updates["status"] = *upd.Status
	}
	if upd.RetryCount != nil {
		updates["retry_count"] = *upd.RetryCount
	}
	if upd.MaxRetries != nil {
		updates["max_retries"] = *upd.MaxRetries
	}
	if upd.ScheduledTime != nil {
		updates["scheduled_time"] = utc(*upd.ScheduledTime)
	}
	if upd.Content != nil {
		updates["content"] = *upd.Content
	}
	if upd.CompletedAt != nil {
		updates["completed_at"] = utc(*upd.CompletedAt)
	}
	if upd.ClearError {
		updates["error_message"] = nil
	} else if upd.ErrorMessage != nil {
		updates["error_message"] = *upd.ErrorMessage
	}
	if upd.ClearTimerKey {
		updates["timer_key"] = nil
	} else if upd.TimerKey != nil {
		updates["timer_key"] = *upd.TimerKey
	}

	// Map updates bypass field serializers, so JSON columns are encoded here.
	for col, v := range map[string]any{
		"platforms":  upd.Platforms,
		"media_urls": upd.MediaURLs,
		"hashtags":   upd.Hashtags,
	} {
		if isNilSlice(v) {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Wrapf(err, "encode %s", col)
		}
		updates[col] = string(raw)
	}
	return updates, nil
}

func isNilSlice(v any) bool {
	switch s := v.(type) {
	case []core.Platform:
		return s == nil
	case []string:
		return s == nil
	}
	return true
}

// ListByOwner returns an owner's jobs ordered by scheduled time, optionally
// filtered by status. limit <= 0 means no limit.
func (s *GormStorage) ListByOwner(ctx context.Context, ownerID string, status core.Status, limit int) ([]*core.ScheduledJob, error) {
	q := s.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var jobs []*core.ScheduledJob
	err := q.Order("scheduled_time ASC").Find(&jobs).Error
	return jobs, errors.Wrap(err, "list scheduled jobs")
}

// Delete removes a job record. The scheduler never calls this; deletion is an
// explicit caller action after cancelling.
func (s *GormStorage) Delete(ctx context.Context, jobID string) error {
	result := s.db.WithContext(ctx).Delete(&core.ScheduledJob{}, "id = ?", jobID)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "delete scheduled job %s", jobID)
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(core.ErrJobNotFound, "id %s", jobID)
	}
	return nil
}
