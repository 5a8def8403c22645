package ledger

import (
	"sort"
	"sync"
)

// userLocks serializes ledger mutations per user. Validation reads and
// balance writes are separate store round-trips; without this, two concurrent
// transactions could both validate against the same stale snapshot and both
// commit (a lost-update race on balances and budget totals).
type userLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{m: make(map[string]*sync.Mutex)}
}

// acquire locks every given user id and returns the release func. IDs are
// deduplicated and taken in sorted order so that two p2p payments between the
// same pair of users cannot deadlock.
func (l *userLocks) acquire(ids ...string) (release func()) {
	seen := make(map[string]struct{}, len(ids))
	uniq := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	sort.Strings(uniq)

	muxes := make([]*sync.Mutex, len(uniq))
	for i, id := range uniq {
		muxes[i] = l.get(id)
	}
	for _, mu := range muxes {
		mu.Lock()
	}
	return func() {
		for i := len(muxes) - 1; i >= 0; i-- {
			muxes[i].Unlock()
		}
	}
}

func (l *userLocks) get(id string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	mu, ok := l.m[id]
	if !ok {
		mu = &sync.Mutex{}
		l.m[id] = mu
	}
	return mu
}
