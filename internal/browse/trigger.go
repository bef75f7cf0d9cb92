package browse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jxwalker/modbrowse/internal/accumulator"
	"github.com/jxwalker/modbrowse/internal/logging"
	"github.com/jxwalker/modbrowse/internal/metrics"
	"github.com/jxwalker/modbrowse/internal/modplatform"
	"github.com/jxwalker/modbrowse/internal/query"
)

// Ticket is a claim on the next page of one list incarnation. While a ticket is
// outstanding its list is Fetching and no other ticket is issued for it.
type Ticket struct {
	Signature  query.Signature
	Generation uint64
	Cursor     modplatform.Cursor
}

// Result is what Run produced for a ticket.
type Result struct {
	Ticket  *Ticket
	Page    modplatform.Page
	Err     error
	Elapsed time.Duration
}

type Outcome int

const (
	// OutcomeDiscarded means the result belonged to a list that is no longer active.
	OutcomeDiscarded Outcome = iota
	OutcomeAppended
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAppended:
		return "appended"
	case OutcomeFailed:
		return "failed"
	}
	return "discarded"
}

// Trigger decides when the next page is requested and applies what comes back.
type Trigger struct {
	acc       *accumulator.Accumulator
	registry  *modplatform.Registry
	threshold int
	log       *logging.Logger
	metrics   *metrics.Manager
}

func NewTrigger(acc *accumulator.Accumulator, registry *modplatform.Registry, threshold int, log *logging.Logger, m *metrics.Manager) *Trigger {
	if threshold < 0 {
		threshold = 0
	}
	return &Trigger{acc: acc, registry: registry, threshold: threshold, log: log, metrics: m}
}

// Check issues a ticket when lastVisible is within threshold rows of the end of the
// active list and more pages exist. A failed list is retried by scrolling back into range;
// a list that is already fetching or exhausted gets nothing.
func (t *Trigger) Check(lastVisible int) *Ticket {
	l := t.acc.Active()
	if l == nil || !l.HasNextPage {
		return nil
	}
	if l.State != accumulator.Idle && l.State != accumulator.Error {
		return nil
	}
	if lastVisible < l.Len()-1-t.threshold {
		return nil
	}
	if l.State == accumulator.Error && !t.acc.ClearError() {
		return nil
	}
	return t.begin(l.Generation)
}

func (t *Trigger) begin(gen uint64) *Ticket {
	sig, cur, ok := t.acc.BeginFetch(gen)
	if !ok {
		return nil
	}
	t.log.Debugf("fetch %s cursor=%s gen=%d", sig.Platform(), cur, gen)
	return &Ticket{Signature: sig, Generation: gen, Cursor: cur}
}

// Retry moves a failed list back to Idle and re-issues the ticket for the same cursor.
func (t *Trigger) Retry() *Ticket {
	if !t.acc.ClearError() {
		return nil
	}
	l := t.acc.Active()
	return t.begin(l.Generation)
}

// Run performs the fetch for tk: a version listing when the signature names a project,
// otherwise a catalog search. It touches no shared state and may run on any goroutine.
func (t *Trigger) Run(ctx context.Context, tk *Ticket) Result {
	start := time.Now()
	adapter, err := t.registry.Adapter(tk.Signature.Platform())
	if err != nil {
		return Result{Ticket: tk, Err: err}
	}
	var page modplatform.Page
	if tk.Signature.ProjectID() != "" {
		vs, ok := adapter.(modplatform.VersionSource)
		if !ok {
			return Result{Ticket: tk, Err: fmt.Errorf("%s: version listing not supported", tk.Signature.Platform())}
		}
		page, err = vs.FetchVersions(ctx, tk.Signature.Params(), tk.Cursor)
	} else {
		page, err = adapter.FetchPage(ctx, tk.Signature.Params(), tk.Cursor)
	}
	if err != nil {
		page = modplatform.Page{}
	}
	return Result{Ticket: tk, Page: page, Err: err, Elapsed: time.Since(start)}
}

// Complete applies r to the list it was issued for. Results for a superseded list are
// dropped without touching the active one.
func (t *Trigger) Complete(r Result) Outcome {
	tk := r.Ticket
	if tk == nil {
		return OutcomeDiscarded
	}
	platform := string(tk.Signature.Platform())
	if r.Err != nil {
		if !t.acc.FailFetch(tk.Signature, tk.Generation, r.Err) {
			t.discarded(tk)
			return OutcomeDiscarded
		}
		t.metrics.IncFetchErrors(platform)
		if errors.Is(r.Err, context.Canceled) {
			t.log.Debugf("fetch %s cursor=%s canceled", platform, tk.Cursor)
		} else {
			t.log.Warnf("fetch %s cursor=%s failed: %v", platform, tk.Cursor, r.Err)
		}
		return OutcomeFailed
	}
	before := 0
	if l := t.acc.Active(); l != nil {
		before = l.Len()
	}
	if !t.acc.AppendPageFor(tk.Signature, tk.Generation, r.Page) {
		t.discarded(tk)
		return OutcomeDiscarded
	}
	added := t.acc.Active().Len() - before
	t.metrics.ObservePage(platform, added, r.Elapsed)
	t.log.Debugf("page %s cursor=%s: %d rows (%d new), more=%v", platform, tk.Cursor, len(r.Page.Rows), added, r.Page.HasNextPage)
	return OutcomeAppended
}

func (t *Trigger) discarded(tk *Ticket) {
	t.metrics.IncStaleDiscards()
	t.log.Debugf("discarding result for %s gen=%d", tk.Signature, tk.Generation)
}
