// Package accumulator assembles fetched pages into the row list of the active query.
//
// Exactly one list is active at a time. A list is replaced wholesale when the query
// changes, and pages are only ever applied to the list they were requested for: each list
// carries the Signature and a Generation number, and both must match.
package accumulator

import (
	"sync"

	"github.com/jxwalker/modbrowse/internal/modplatform"
	"github.com/jxwalker/modbrowse/internal/query"
)

// FetchState is the per-list fetch state machine.
type FetchState int

const (
	Idle FetchState = iota
	Fetching
	Error
	Exhausted
)

func (s FetchState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Error:
		return "error"
	case Exhausted:
		return "exhausted"
	}
	return "unknown"
}

// List is a read-only snapshot of an accumulated list.
type List struct {
	Signature   query.Signature
	Generation  uint64
	Rows        []modplatform.Row
	HasNextPage bool
	NextCursor  modplatform.Cursor
	State       FetchState
	Err         error
	Pages       int
}

func (l *List) Len() int { return len(l.Rows) }

// Row returns the row at i, or false when i is out of range.
func (l *List) Row(i int) (modplatform.Row, bool) {
	if i < 0 || i >= len(l.Rows) {
		return modplatform.Row{}, false
	}
	return l.Rows[i], true
}

// Accumulator owns the active list. It is safe for concurrent use.
type Accumulator struct {
	mu     sync.RWMutex
	active *List
	seen   map[string]struct{}
	gen    uint64
}

func New() *Accumulator {
	return &Accumulator{}
}

// ResetFor makes an empty list for sig active and returns a snapshot of it. Every call
// starts a new generation, even for the signature that is already active.
func (a *Accumulator) ResetFor(sig query.Signature) *List {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gen++
	a.active = &List{
		Signature:   sig,
		Generation:  a.gen,
		HasNextPage: true,
		NextCursor:  modplatform.StartCursor,
		State:       Idle,
	}
	a.seen = make(map[string]struct{})
	return a.snapshot()
}

// Active returns a snapshot of the active list, or nil before the first ResetFor.
func (a *Accumulator) Active() *List {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshot()
}

func (a *Accumulator) snapshot() *List {
	if a.active == nil {
		return nil
	}
	l := *a.active
	// Rows is append-only; capping capacity keeps the snapshot immune to later appends.
	l.Rows = l.Rows[:len(l.Rows):len(l.Rows)]
	return &l
}

// AppendPage applies page to the active list if sig is its signature. Rows whose id is
// already present are skipped.
func (a *Accumulator) AppendPage(sig query.Signature, page modplatform.Page) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active == nil || !a.active.Signature.Equal(sig) {
		return false
	}
	a.apply(page)
	return true
}

// AppendPageFor is AppendPage that additionally requires gen to be the active generation.
func (a *Accumulator) AppendPageFor(sig query.Signature, gen uint64, page modplatform.Page) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.current(sig, gen) {
		return false
	}
	a.apply(page)
	return true
}

func (a *Accumulator) current(sig query.Signature, gen uint64) bool {
	return a.active != nil && a.active.Generation == gen && a.active.Signature.Equal(sig)
}

func (a *Accumulator) apply(page modplatform.Page) {
	l := a.active
	for _, r := range page.Rows {
		if _, dup := a.seen[r.ID]; dup {
			continue
		}
		a.seen[r.ID] = struct{}{}
		l.Rows = append(l.Rows, r)
	}
	l.HasNextPage = page.HasNextPage
	l.NextCursor = page.NextCursor
	l.Pages++
	l.Err = nil
	if l.HasNextPage {
		l.State = Idle
	} else {
		l.State = Exhausted
	}
}

// BeginFetch moves the list of generation gen from Idle to Fetching and returns the cursor
// to request. It fails if gen is stale, a fetch is already running, the list is in Error
// or there is nothing left to fetch.
func (a *Accumulator) BeginFetch(gen uint64) (query.Signature, modplatform.Cursor, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	l := a.active
	if l == nil || l.Generation != gen || l.State != Idle || !l.HasNextPage {
		return query.Signature{}, "", false
	}
	l.State = Fetching
	return l.Signature, l.NextCursor, true
}

// FailFetch records err on the list of generation gen. HasNextPage is left untouched so a
// retry resumes at the same cursor.
func (a *Accumulator) FailFetch(sig query.Signature, gen uint64, err error) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.current(sig, gen) || a.active.State != Fetching {
		return false
	}
	a.active.State = Error
	a.active.Err = err
	return true
}

// ClearError moves the active list from Error back to Idle.
func (a *Accumulator) ClearError() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active == nil || a.active.State != Error {
		return false
	}
	a.active.State = Idle
	a.active.Err = nil
	return true
}
