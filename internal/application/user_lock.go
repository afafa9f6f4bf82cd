package application

import (
	"context"
	"sync"

	"github.com/elgomatiae/muslim-space-sub000/internal/domain"
)

// UserLocker serialises scoring cycles per user, so two cycles never blend
// against the same stored momentum state.
type UserLocker interface {
	// Lock blocks until the user's lock is held or ctx is done.
	Lock(ctx context.Context, userID domain.UserID) (unlock func(), err error)
}

// LocalUserLocker is an in-process keyed mutex.
// entries are removed once nobody holds or waits for them.
type LocalUserLocker struct {
	mu    sync.Mutex
	locks map[domain.UserID]*userLock
}

type userLock struct {
	held chan struct{}
	refs int
}

// NewLocalUserLocker creates an empty keyed lock.
func NewLocalUserLocker() *LocalUserLocker {
	return &LocalUserLocker{locks: make(map[domain.UserID]*userLock)}
}

// Lock acquires the user's lock.
func (l *LocalUserLocker) Lock(ctx context.Context, userID domain.UserID) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[userID]
	if !ok {
		entry = &userLock{held: make(chan struct{}, 1)}
		l.locks[userID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.held <- struct{}{}:
	case <-ctx.Done():
		l.release(userID, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.held
			l.release(userID, entry)
		})
	}, nil
}

func (l *LocalUserLocker) release(userID domain.UserID, entry *userLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, userID)
	}
}

// size reports how many users currently have a lock entry.
func (l *LocalUserLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// ChainLocker acquires several lockers in order and releases them in reverse.
// used to combine the in-process lock with a cross-process one.
type ChainLocker []UserLocker

// Lock acquires every locker in the chain.
func (c ChainLocker) Lock(ctx context.Context, userID domain.UserID) (func(), error) {
	unlocks := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}

	for _, locker := range c {
		unlock, err := locker.Lock(ctx, userID)
		if err != nil {
			releaseAll()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return releaseAll, nil
}
