// Package registry holds the in-memory mapping from pull request numbers to
// the sessions interested in them. Subscriptions live for the daemon process
// lifetime and are never persisted.
package registry

import (
	"sort"
	"sync"
	"time"
)

// Subscription is one session's view of its subscriptions, used for status
// reporting.
type Subscription struct {
	SessionID    string
	PRNumbers    []int
	SubscribedAt time.Time
}

// Registry maps PR numbers to subscriber session ids.
//
// Invariant: no PR key ever maps to an empty session set; removing the last
// session for a PR removes the key. The command processor is the only writer;
// the event router reads concurrently under the read lock.
type Registry struct {
	mu        sync.RWMutex
	byPR      map[int]map[string]struct{}
	bySession map[string]map[int]struct{}
	firstSeen map[string]time.Time
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		byPR:      make(map[int]map[string]struct{}),
		bySession: make(map[string]map[int]struct{}),
		firstSeen: make(map[string]time.Time),
	}
}

// Subscribe unions the session into each PR's subscriber set. Idempotent.
// Callers validate that sessionID is non-empty and prNumbers are positive.
func (r *Registry) Subscribe(sessionID string, prNumbers []int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.firstSeen[sessionID]; !ok {
		r.firstSeen[sessionID] = time.Now().UTC()
	}
	prs := r.bySession[sessionID]
	if prs == nil {
		prs = make(map[int]struct{})
		r.bySession[sessionID] = prs
	}
	for _, pr := range prNumbers {
		sessions := r.byPR[pr]
		if sessions == nil {
			sessions = make(map[string]struct{})
			r.byPR[pr] = sessions
		}
		sessions[sessionID] = struct{}{}
		prs[pr] = struct{}{}
	}
}

// Unsubscribe removes the session from each PR's subscriber set, deleting PR
// keys whose sets become empty. Unknown PRs and sessions are ignored.
func (r *Registry) Unsubscribe(sessionID string, prNumbers []int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, pr := range prNumbers {
		if sessions, ok := r.byPR[pr]; ok {
			delete(sessions, sessionID)
			if len(sessions) == 0 {
				delete(r.byPR, pr)
			}
		}
		if prs, ok := r.bySession[sessionID]; ok {
			delete(prs, pr)
		}
	}
	if prs, ok := r.bySession[sessionID]; ok && len(prs) == 0 {
		delete(r.bySession, sessionID)
		delete(r.firstSeen, sessionID)
	}
}

// SessionsFor returns the sessions subscribed to the given PR number.
func (r *Registry) SessionsFor(prNumber int) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := r.byPR[prNumber]
	if len(sessions) == 0 {
		return nil
	}
	out := make([]string, 0, len(sessions))
	for id := range sessions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// AllSubscriptions inverts the map into per-session subscription lists,
// sorted by session id with sorted PR numbers, for status reporting.
func (r *Registry) AllSubscriptions() []Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Subscription, 0, len(r.bySession))
	for sessionID, prs := range r.bySession {
		numbers := make([]int, 0, len(prs))
		for pr := range prs {
			numbers = append(numbers, pr)
		}
		sort.Ints(numbers)
		out = append(out, Subscription{
			SessionID:    sessionID,
			PRNumbers:    numbers,
			SubscribedAt: r.firstSeen[sessionID],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// Len returns the number of PR keys currently held. Used by tests.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byPR)
}
