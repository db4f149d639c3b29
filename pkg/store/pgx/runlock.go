package pgx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/OFFIS-RIT/mt2n/pkg/logger"
)

const (
	DefaultLeaseTTL = 5 * time.Minute

	renewAttempts = 3
	renewTimeout  = 15 * time.Second
	renewBackoff  = 200 * time.Millisecond
)

var (
	ErrRunBusy   = errors.New("run is being built by another worker")
	ErrLeaseLost = errors.New("run lease lost")
)

type leaseConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgxv5.Row
}

// RunLocker guards a run id with an expiring lease row so that only one
// worker builds and stores a given run at a time. The lease is renewed in the
// background at half its TTL.
type RunLocker struct {
	conn leaseConn
	ttl  time.Duration
}

func NewRunLocker(conn leaseConn, ttl time.Duration) *RunLocker {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	return &RunLocker{conn: conn, ttl: ttl}
}

type lease struct {
	runID  string
	holder string
	ctx    context.Context
	cancel context.CancelCauseFunc
	once   sync.Once
	done   chan struct{}
}

// WithRunLock runs fn while holding the lease for runID. The context passed
// to fn is cancelled with ErrLeaseLost if the lease cannot be renewed.
func (l *RunLocker) WithRunLock(ctx context.Context, runID string, fn func(ctx context.Context) error) error {
	ls, err := l.acquire(ctx, runID)
	if err != nil {
		return err
	}
	defer l.release(ls)

	if err := fn(ls.ctx); err != nil {
		if cause := context.Cause(ls.ctx); errors.Is(cause, ErrLeaseLost) {
			return fmt.Errorf("%w: %w", cause, err)
		}
		return err
	}
	return nil
}

func (l *RunLocker) acquire(ctx context.Context, runID string) (*lease, error) {
	if runID == "" {
		return nil, errors.New("run lease needs a run id")
	}
	holder, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate lease holder: %w", err)
	}

	var returned string
	err = l.conn.QueryRow(ctx, tryAcquireSQL, runID, holder, l.ttl.Milliseconds()).Scan(&returned)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunBusy, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lease for run %s: %w", runID, err)
	}

	leaseCtx, cancel := context.WithCancelCause(ctx)
	ls := &lease{
		runID:  runID,
		holder: holder,
		ctx:    leaseCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go l.renewLoop(ls)

	logger.Debug("[Store] Run lease acquired", "run_id", runID)
	return ls, nil
}

func (l *RunLocker) release(ls *lease) {
	ls.once.Do(func() {
		close(ls.done)
		ls.cancel(context.Canceled)
	})
	if _, err := l.conn.Exec(context.Background(), releaseSQL, ls.runID, ls.holder); err != nil {
		logger.Warn("[Store] Failed to release run lease", "run_id", ls.runID, "err", err)
	}
}

func (l *RunLocker) renewLoop(ls *lease) {
	t := time.NewTicker(max(l.ttl/2, time.Second))
	defer t.Stop()

	for {
		select {
		case <-ls.done:
			return
		case <-ls.ctx.Done():
			return
		case <-t.C:
			if err := l.renew(ls); err != nil {
				logger.Error("[Store] Run lease lost", "run_id", ls.runID, "err", err)
				ls.cancel(ErrLeaseLost)
				return
			}
		}
	}
}

func (l *RunLocker) renew(ls *lease) error {
	var err error
	for attempt := range renewAttempts {
		if attempt > 0 {
			select {
			case <-ls.ctx.Done():
				return ls.ctx.Err()
			case <-time.After(renewBackoff):
			}
		}
		ctx, cancel := context.WithTimeout(ls.ctx, renewTimeout)
		var returned string
		err = l.conn.QueryRow(ctx, renewSQL, ls.runID, ls.holder, l.ttl.Milliseconds()).Scan(&returned)
		cancel()
		if err == nil {
			return nil
		}
		if errors.Is(err, pgxv5.ErrNoRows) {
			return ErrLeaseLost
		}
	}
	return err
}

// An expired lease is taken over, a live one held by someone else is not.
const tryAcquireSQL = `
INSERT INTO run_leases (run_id, holder, expires_at)
VALUES ($1, $2, now() + ($3::bigint * interval '1 millisecond'))
ON CONFLICT (run_id) DO UPDATE
SET holder     = EXCLUDED.holder,
    expires_at = EXCLUDED.expires_at
WHERE run_leases.expires_at < now()
RETURNING run_id;
`

const renewSQL = `
UPDATE run_leases
SET expires_at = now() + ($3::bigint * interval '1 millisecond')
WHERE run_id = $1 AND holder = $2
RETURNING run_id;
`

const releaseSQL = `
DELETE FROM run_leases
WHERE run_id = $1 AND holder = $2;
`
