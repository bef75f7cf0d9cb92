// Package browse runs one browse session: it connects the query store, the page
// accumulator, the fetch trigger, the virtualizer and scroll memory.
//
// The host drives a Pipeline with scroll and query events. Operations that may start a
// fetch return a *Ticket; the host runs Fetch for it off its event loop and hands the
// Result back to Deliver.
package browse

import (
	"context"
	"errors"
	"sync"

	"github.com/jxwalker/modbrowse/internal/accumulator"
	"github.com/jxwalker/modbrowse/internal/logging"
	"github.com/jxwalker/modbrowse/internal/metrics"
	"github.com/jxwalker/modbrowse/internal/modplatform"
	"github.com/jxwalker/modbrowse/internal/query"
	"github.com/jxwalker/modbrowse/internal/scrollmem"
	"github.com/jxwalker/modbrowse/internal/virtualizer"
)

type Options struct {
	Initial modplatform.Params
	// EstimateSize is the assumed height of a row before it is measured.
	EstimateSize int
	Overscan     int
	// Threshold is how many rows before the end of the list the next page is requested.
	Threshold int
	Viewport  int
	Log       *logging.Logger
	Metrics   *metrics.Manager
}

// VisibleRow is one entry of the render window. Sentinel entries stand for the loading /
// error row shown after the last row while more pages exist.
type VisibleRow struct {
	Index    int
	Row      *modplatform.Row
	Sentinel bool
	Start    int
	Size     int
}

// Status is a snapshot of the session for the host's chrome.
type Status struct {
	Signature   query.Signature
	Rows        int
	Pages       int
	HasNextPage bool
	State       accumulator.FetchState
	Err         error
	Offset      int
	Viewport    int
	TotalSize   int
}

type Pipeline struct {
	registry *modplatform.Registry
	store    *query.Store
	acc   *accumulator.Accumulator
	trig  *Trigger
	virt  *virtualizer.Virtualizer
	mem   *scrollmem.Memory
	log   *logging.Logger
	m     *metrics.Manager

	mu       sync.Mutex
	offset   int
	viewport int
	// restoreKey is set while a remembered offset waits for the first page of the list.
	restoreKey string
	unsub      func()
}

// New creates a session for opts.Initial, seeded from seed when given. mem may be shared
// between sessions so that a remounted browser returns to its previous offset.
func New(opts Options, registry *modplatform.Registry, catalog *modplatform.Catalog, seed *query.Seed, mem *scrollmem.Memory) (*Pipeline, error) {
	if registry == nil {
		return nil, errors.New("browse: nil adapter registry")
	}
	store, err := query.NewStore(catalog, opts.Initial, seed)
	if err != nil {
		return nil, err
	}
	if mem == nil {
		mem = scrollmem.New()
	}
	if opts.EstimateSize < 1 {
		opts.EstimateSize = 1
	}
	acc := accumulator.New()
	p := &Pipeline{
		registry: registry,
		store:    store,
		acc:      acc,
		trig:     NewTrigger(acc, registry, opts.Threshold, opts.Log, opts.Metrics),
		virt:     virtualizer.New(virtualizer.Options{EstimateSize: opts.EstimateSize, Overscan: opts.Overscan}),
		mem:      mem,
		log:      opts.Log,
		m:        opts.Metrics,
		viewport: max(opts.Viewport, 0),
	}
	p.unsub = store.Subscribe(p.onChange)
	p.reset(store.Get())
	key := scrollKey(store.Get())
	if _, ok := mem.Restore(key); ok {
		p.restoreKey = key
	}
	return p, nil
}

// scrollKey groups offsets by result type; each project's version list has its own key.
func scrollKey(sig query.Signature) string {
	if id := sig.ProjectID(); id != "" {
		return "versions:" + string(sig.Platform()) + ":" + id
	}
	return string(sig.ResultType())
}

// Close detaches the pipeline from its store.
func (p *Pipeline) Close() {
	if p.unsub != nil {
		p.unsub()
	}
}

// Start issues the first page request.
func (p *Pipeline) Start() *Ticket {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.check()
}

// SetQuery applies u. A change of signature replaces the result list; a change of result
// type also remembers the outgoing offset and restores the incoming one once the first
// page has arrived.
func (p *Pipeline) SetQuery(u query.Update) (*Ticket, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.store.Set(u); err != nil {
		return nil, err
	}
	return p.check(), nil
}

// onChange runs synchronously inside store.Set, which only SetQuery calls, so p is locked.
// A restore that is still waiting for its first page survives edits within the same
// result type.
func (p *Pipeline) onChange(ch query.Change) {
	if ch.Prev.ResultType() != ch.Next.ResultType() {
		p.mem.Capture(scrollKey(ch.Prev), p.offset)
		p.restoreKey = scrollKey(ch.Next)
	}
	p.reset(ch.Next)
	p.m.IncResets()
	p.log.Debugf("query changed: %s", ch.Next)
}

func (p *Pipeline) reset(sig query.Signature) {
	p.acc.ResetFor(sig)
	p.virt.Reset()
	p.offset = 0
	p.syncCount()
}

// syncCount sizes the virtualizer to the rows plus the sentinel row.
func (p *Pipeline) syncCount() {
	l := p.acc.Active()
	n := l.Len()
	if l.HasNextPage {
		n++
	}
	p.virt.SetCount(n)
}

func (p *Pipeline) check() *Ticket {
	last := p.virt.IndexAt(p.offset + max(p.viewport, 1) - 1)
	return p.trig.Check(last)
}

// ScrollTo moves the viewport to offset, clamped to the content.
func (p *Pipeline) ScrollTo(offset int) *Ticket {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offset = p.virt.ClampOffset(offset, p.viewport)
	return p.check()
}

func (p *Pipeline) ScrollBy(delta int) *Ticket {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offset = p.virt.ClampOffset(p.offset+delta, p.viewport)
	return p.check()
}

// ScrollToIndex scrolls so that index is the first visible row.
func (p *Pipeline) ScrollToIndex(index int) *Ticket {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offset = p.virt.ClampOffset(p.virt.OffsetOf(index), p.viewport)
	return p.check()
}

func (p *Pipeline) Resize(viewport int) *Ticket {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.viewport = max(viewport, 0)
	p.offset = p.virt.ClampOffset(p.offset, p.viewport)
	return p.check()
}

// Measure records the rendered size of the row at index.
func (p *Pipeline) Measure(index, size int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.virt.Measure(index, size)
}

// Bounds returns the start offset and size of the item at index.
func (p *Pipeline) Bounds(index int) (start, size int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	start = p.virt.OffsetOf(index)
	return start, p.virt.OffsetOf(index+1) - start
}

// IndexAt returns the item covering offset, or -1 when the list is empty.
func (p *Pipeline) IndexAt(offset int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.virt.IndexAt(offset)
}

// Visible returns the rows to render for the current offset, overscan included.
func (p *Pipeline) Visible() []VisibleRow {
	p.mu.Lock()
	defer p.mu.Unlock()
	l := p.acc.Active()
	w := p.virt.Range(p.offset, p.viewport)
	out := make([]VisibleRow, 0, len(w.Items))
	for _, it := range w.Items {
		vr := VisibleRow{Index: it.Index, Start: it.Start, Size: it.Size}
		if it.Index < l.Len() {
			vr.Row = &l.Rows[it.Index]
		} else {
			vr.Sentinel = true
		}
		out = append(out, vr)
	}
	return out
}

// Fetch runs the network call for tk. It does not lock the pipeline.
func (p *Pipeline) Fetch(ctx context.Context, tk *Ticket) Result {
	return p.trig.Run(ctx, tk)
}

// Deliver applies a fetch result and returns the follow-up ticket, if the new rows still
// leave the viewport within the prefetch threshold.
func (p *Pipeline) Deliver(r Result) (Outcome, *Ticket) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.trig.Complete(r)
	if out != OutcomeAppended {
		p.syncCount()
		return out, nil
	}
	p.syncCount()
	if p.restoreKey != "" && p.acc.Active().Pages == 1 {
		if off, ok := p.mem.Restore(p.restoreKey); ok {
			p.offset = p.virt.ClampOffset(off, p.viewport)
		}
		p.restoreKey = ""
	}
	return out, p.check()
}

// Reload discards the active list and requests it again from the first page. Adapters
// that keep listings between pages are told to forget them first.
func (p *Pipeline) Reload() *Ticket {
	p.mu.Lock()
	defer p.mu.Unlock()
	sig := p.store.Get()
	if a, err := p.registry.Adapter(sig.Platform()); err == nil {
		if lc, ok := a.(modplatform.ListingCache); ok {
			lc.Forget()
		}
	}
	p.restoreKey = ""
	p.reset(sig)
	p.m.IncResets()
	p.log.Debugf("reload: %s", sig)
	return p.check()
}

// Retry re-issues the failed page request of the active list.
func (p *Pipeline) Retry() *Ticket {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.trig.Retry()
}

// NavigateAway remembers the current offset for the active result type.
func (p *Pipeline) NavigateAway() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mem.Capture(scrollKey(p.store.Get()), p.offset)
}

// Row returns the row at index of the active list.
func (p *Pipeline) Row(index int) (modplatform.Row, bool) {
	return p.acc.Active().Row(index)
}

func (p *Pipeline) Snapshot() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	l := p.acc.Active()
	return Status{
		Signature:   l.Signature,
		Rows:        l.Len(),
		Pages:       l.Pages,
		HasNextPage: l.HasNextPage,
		State:       l.State,
		Err:         l.Err,
		Offset:      p.offset,
		Viewport:    p.viewport,
		TotalSize:   p.virt.TotalSize(),
	}
}
