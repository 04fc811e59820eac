package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/jdziat/scheduled-publisher/pkg/core"
	"github.com/jdziat/scheduled-publisher/pkg/platform"
	"github.com/jdziat/scheduled-publisher/pkg/retry"
)

// memStore is an in-memory core.Store with failure injection.
type memStore struct {
	mu        sync.Mutex
	jobs      map[string]*core.ScheduledJob
	updateErr error
	updates   int
}

func newMemStore(jobs ...*core.ScheduledJob) *memStore {
	s := &memStore{jobs: make(map[string]*core.ScheduledJob)}
	for _, j := range jobs {
		cp := *j
		s.jobs[j.ID] = &cp
	}
	return s
}

func (s *memStore) Create(_ context.Context, job *core.ScheduledJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (*core.ScheduledJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, core.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *memStore) FindDueJobs(context.Context, time.Time) ([]*core.ScheduledJob, error) {
	return nil, nil
}

func (s *memStore) FindPendingAfter(context.Context, time.Time) ([]*core.ScheduledJob, error) {
	return nil, nil
}

func (s *memStore) CompareAndSetStatus(_ context.Context, id string, expected, next core.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status != expected {
		return false, nil
	}
	j.Status = next
	return true, nil
}

func (s *memStore) Update(_ context.Context, id string, upd core.JobUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	if s.updateErr != nil {
		return s.updateErr
	}
	j, ok := s.jobs[id]
	if !ok {
		return core.ErrJobNotFound
	}
	if upd.IfStatus != "" && j.Status != upd.IfStatus {
		return core.ErrStatusConflict
	}
	upd.Apply(j)
	return nil
}

func (s *memStore) job(id string) core.ScheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.jobs[id]
}

// resolver connects the listed platforms.
type resolver map[core.Platform]bool

func (r resolver) Resolve(_ context.Context, _ string, p core.Platform) (*core.Credentials, error) {
	if !r[p] {
		return nil, core.ErrAccountNotConnected
	}
	return &core.Credentials{AccessToken: "token-" + string(p)}, nil
}

// pubLog collects recorded publications.
type pubLog struct {
	mu   sync.Mutex
	pubs []*core.Publication
	err  error
}

func (l *pubLog) Record(_ context.Context, p *core.Publication) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.pubs = append(l.pubs, p)
	return nil
}

func (l *pubLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pubs)
}

func succeed(id string) platform.PublisherFunc {
	return func(context.Context, string, []string, core.Credentials) (string, error) {
		return id, nil
	}
}

func fail(msg string) platform.PublisherFunc {
	return func(context.Context, string, []string, core.Credentials) (string, error) {
		return "", errors.New(msg)
	}
}

func testJob(platforms ...core.Platform) *core.ScheduledJob {
	return &core.ScheduledJob{
		ID:            "job-1",
		OwnerID:       "user-1",
		Content:       "hello",
		Platforms:     platforms,
		ScheduledTime: time.Now(),
		Status:        core.StatusPending,
		MaxRetries:    3,
	}
}

// fastStoreRetry keeps backoff tests quick.
var fastStoreRetry = retry.BackoffConfig{
	MaxAttempts:       3,
	InitialBackoff:    time.Millisecond,
	MaxBackoff:        2 * time.Millisecond,
	BackoffMultiplier: 2,
}
