package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/scheduled-publisher/pkg/core"
	"github.com/jdziat/scheduled-publisher/pkg/platform"
	"github.com/jdziat/scheduled-publisher/pkg/retry"
	"github.com/jdziat/scheduled-publisher/pkg/storage"
)

func newTestStore(t *testing.T) *storage.GormStorage {
	t.Helper()
	db, err := storage.Open("sqlite", filepath.Join(t.TempDir(), "scheduler.db"), storage.MaxOpenConns(1))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	s := storage.NewGormStorage(db)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

// connectAll stores an active account for every platform of user-1.
func connectAll(t *testing.T, s *storage.GormStorage) {
	t.Helper()
	for _, p := range []core.Platform{core.PlatformTwitter, core.PlatformLinkedIn, core.PlatformInstagram} {
		require.NoError(t, s.SaveAccount(context.Background(), &core.SocialAccount{
			OwnerID:     "user-1",
			Platform:    p,
			AccessToken: "token",
			IsActive:    true,
		}))
	}
}

// fakePublisher counts calls and returns a configured result.
type fakePublisher struct {
	mu      sync.Mutex
	calls   int
	err     error
	block   chan struct{}
	entered chan struct{}
	delay   time.Duration
}

func (f *fakePublisher) Publish(ctx context.Context, _ string, _ []string, _ core.Credentials) (string, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	err := f.err
	f.mu.Unlock()

	if f.entered != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
	}
	if f.block != nil {
		<-f.block
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err != nil {
		return "", err
	}
	return "post-" + string(rune('0'+n)), nil
}

func (f *fakePublisher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func failing(msg string) *fakePublisher {
	return &fakePublisher{err: errors.New(msg)}
}

// fastOptions keep retries and store backoff short and the sweep out of the way.
func fastOptions() []Option {
	return []Option{
		WithSweepInterval(time.Hour),
		WithRetryPolicy(retry.Policy{Delay: 20 * time.Millisecond}),
		WithStoreRetry(retry.BackoffConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 2}),
	}
}

// newTestService builds a stopped service whose Stop runs before the DB closes.
func newTestService(t *testing.T, store core.Store, creds core.CredentialResolver, log core.PublicationLog, pubs map[core.Platform]core.PlatformPublisher, opts ...Option) *Service {
	t.Helper()
	reg := platform.NewRegistry()
	for p, pub := range pubs {
		reg.MustRegister(p, pub)
	}
	svc := New(store, creds, reg, log, append(fastOptions(), opts...)...)
	t.Cleanup(svc.Stop)
	return svc
}

func newJob(at time.Time, platforms ...core.Platform) *core.ScheduledJob {
	if len(platforms) == 0 {
		platforms = []core.Platform{core.PlatformTwitter}
	}
	return &core.ScheduledJob{
		OwnerID:       "user-1",
		Content:       "hello",
		Platforms:     platforms,
		ScheduledTime: at,
		MaxRetries:    3,
	}
}

func statusOf(t *testing.T, s core.Store, id string) core.Status {
	t.Helper()
	job, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	return job.Status
}

func waitForStatus(t *testing.T, s core.Store, id string, want core.Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		job, err := s.Get(context.Background(), id)
		return err == nil && job.Status == want
	}, 5*time.Second, 10*time.Millisecond, "job %s never reached %s", id, want)
}

func retryPolicyHour() retry.Policy {
	return retry.Policy{Delay: time.Hour}
}
