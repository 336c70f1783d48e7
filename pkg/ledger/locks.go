package ledger

import "sync"

// loanLocks hands out one mutex per loan ID so read-reconcile-write cycles on the
// same loan never interleave. Entries are dropped once no goroutine holds or waits on them.
type loanLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newLoanLocks() *loanLocks {
	return &loanLocks{entries: make(map[string]*lockEntry)}
}

// lock blocks until the loan's mutex is held and returns its release func.
func (l *loanLocks) lock(loanID string) func() {
	l.mu.Lock()
	e, ok := l.entries[loanID]
	if !ok {
		e = &lockEntry{}
		l.entries[loanID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, loanID)
		}
		l.mu.Unlock()
	}
}
