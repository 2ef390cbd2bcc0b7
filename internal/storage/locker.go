package storage

import (
	"context"
	"sync"
	"time"

	id "profile-service/pkg/domain"
	dErrors "profile-service/pkg/domain-errors"
	"profile-service/pkg/requestcontext"
)

// defaultLockTimeout bounds how long a caller waits for a profile's lock when
// its context carries no deadline.
const defaultLockTimeout = 5 * time.Second

// ProfileLocker provides one mutual-exclusion scope per profile ID. Entries
// are reference counted and dropped once no holder or waiter remains, so
// distinct profiles never share a lock.
//
// It also keeps a commit clock per profile: the time seen inside a
// transaction never precedes the time of the profile's previous commit, so
// records and audit entries written under the lock are stamped in commit
// order even when a request waited behind a younger one.
type ProfileLocker struct {
	mu         sync.Mutex
	entries    map[id.ProfileID]*lockEntry
	lastCommit map[id.ProfileID]time.Time
	timeout    time.Duration
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

func NewProfileLocker() *ProfileLocker {
	return &ProfileLocker{
		entries:    make(map[id.ProfileID]*lockEntry),
		lastCommit: make(map[id.ProfileID]time.Time),
		timeout:    defaultLockTimeout,
	}
}

// WithTimeout overrides the default wait bound.
func (l *ProfileLocker) WithTimeout(d time.Duration) *ProfileLocker {
	l.timeout = d
	return l
}

// RunInTx runs fn while holding profileID's lock. The lock is released on
// every exit path, including panics inside fn. The ctx passed to fn carries
// the commit time (see requestcontext.Now).
func (l *ProfileLocker) RunInTx(ctx context.Context, profileID id.ProfileID, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	entry := l.acquireRef(profileID)
	defer l.releaseRef(profileID, entry)

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		return dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "timed out waiting for profile lock")
	}
	defer func() { <-entry.sem }()

	return fn(requestcontext.WithTime(ctx, l.commitTime(ctx, profileID)))
}

// commitTime is the request time, moved forward to the profile's previous
// commit when the request arrived earlier than that commit.
func (l *ProfileLocker) commitTime(ctx context.Context, profileID id.ProfileID) time.Time {
	now := requestcontext.Now(ctx)
	l.mu.Lock()
	defer l.mu.Unlock()
	if last, ok := l.lastCommit[profileID]; ok && now.Before(last) {
		now = last
	}
	l.lastCommit[profileID] = now
	return now
}

// Held reports how many profiles currently have a holder or waiter.
func (l *ProfileLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *ProfileLocker) acquireRef(profileID id.ProfileID) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[profileID]
	if !ok {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		l.entries[profileID] = e
	}
	e.refs++
	return e
}

func (l *ProfileLocker) releaseRef(profileID id.ProfileID, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, profileID)
	}
}
