package storage

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/jdziat/scheduled-publisher/pkg/core"
)

// Record stores a successful publication.
func (s *GormStorage) Record(ctx context.Context, pub *core.Publication) error {
	if pub.ID == "" {
		pub.ID = uuid.New().String()
	}
	if pub.PublishedAt.IsZero() {
		pub.PublishedAt = s.now()
	}
	pub.PublishedAt = utc(pub.PublishedAt)
	return errors.Wrap(s.db.WithContext(ctx).Create(pub).Error, "record publication")
}

// PublicationsForJob lists the publications created by a scheduled job.
func (s *GormStorage) PublicationsForJob(ctx context.Context, jobID string) ([]*core.Publication, error) {
	var pubs []*core.Publication
	err := s.db.WithContext(ctx).
		Where("scheduled_job_id = ?", jobID).
		Order("published_at ASC").
		Find(&pubs).Error
	return pubs, errors.Wrap(err, "list publications")
}

// PublicationsByOwner lists an owner's publications, newest first, optionally
// filtered by platform. limit <= 0 means no limit.
func (s *GormStorage) PublicationsByOwner(ctx context.Context, ownerID string, platform core.Platform, limit int) ([]*core.Publication, error) {
	q := s.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if platform != "" {
		q = q.Where("platform = ?", platform)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var pubs []*core.Publication
	err := q.Order("published_at DESC").Find(&pubs).Error
	return pubs, errors.Wrap(err, "list publications")
}
