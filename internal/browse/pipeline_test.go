package browse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/jxwalker/modbrowse/internal/accumulator"
	"github.com/jxwalker/modbrowse/internal/modplatform"
	"github.com/jxwalker/modbrowse/internal/query"
	"github.com/jxwalker/modbrowse/internal/scrollmem"
	"github.com/jxwalker/modbrowse/internal/testutil"
)

func newTestPipeline(t *testing.T, a *fakeAdapter, viewport int, mem *scrollmem.Memory) *Pipeline {
	t.Helper()
	p, err := New(Options{
		Initial:      modplatform.Params{ResultType: modplatform.ResultMod, Platform: a.platform},
		EstimateSize: 1,
		Overscan:     2,
		Threshold:    5,
		Viewport:     viewport,
	}, modplatform.NewRegistry(a), modplatform.NewCatalog(), nil, mem)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(p.Close)
	return p
}

func run(p *Pipeline, tk *Ticket) Outcome {
	out, _ := p.Deliver(p.Fetch(context.Background(), tk))
	return out
}

// drain fetches and delivers tickets until the pipeline stops asking for more.
func drain(t *testing.T, p *Pipeline, tk *Ticket) {
	t.Helper()
	for i := 0; tk != nil; i++ {
		if i > 100 {
			t.Fatal("pipeline kept issuing tickets")
		}
		_, tk = p.Deliver(p.Fetch(context.Background(), tk))
	}
}

func assertRowsFor(t *testing.T, p *Pipeline) {
	t.Helper()
	st := p.Snapshot()
	prefix := fmt.Sprintf("%s/%s/", st.Signature.ResultType(), st.Signature.SearchText())
	for i := 0; i < st.Rows; i++ {
		r, _ := p.Row(i)
		if !strings.HasPrefix(r.ID, prefix) {
			t.Fatalf("row %d = %s in list for %s", i, r.ID, st.Signature)
		}
	}
}

func TestPaginationUntilExhausted(t *testing.T) {
	a := &fakeAdapter{platform: modplatform.CurseForge, total: 45, pageSize: 20}
	p := newTestPipeline(t, a, 100, nil)

	var rows []int
	var more []bool
	tk := p.Start()
	for tk != nil {
		var out Outcome
		out, tk = p.Deliver(p.Fetch(context.Background(), tk))
		if out != OutcomeAppended {
			t.Fatalf("outcome = %s", out)
		}
		st := p.Snapshot()
		rows = append(rows, st.Rows)
		more = append(more, st.HasNextPage)
	}
	if fmt.Sprint(rows) != "[20 40 45]" || fmt.Sprint(more) != "[true true false]" {
		t.Fatalf("rows=%v more=%v", rows, more)
	}
	st := p.Snapshot()
	if st.State != accumulator.Exhausted || st.TotalSize != 45 {
		t.Fatalf("final status = %+v", st)
	}
	if got := fmt.Sprint(a.calls); got != "[start 20 40]" {
		t.Fatalf("cursors = %s", got)
	}
}

func TestThresholdAndSingleFlight(t *testing.T) {
	a := &fakeAdapter{platform: modplatform.CurseForge, total: 100, pageSize: 20}
	p := newTestPipeline(t, a, 5, nil)
	drain(t, p, p.Start())
	if st := p.Snapshot(); st.Rows != 20 {
		t.Fatalf("rows = %d after first page", st.Rows)
	}

	if tk := p.ScrollTo(9); tk != nil {
		t.Fatal("ticket issued before reaching the threshold")
	}
	tk := p.ScrollTo(10) // last visible row 14 = 20-1-5
	if tk == nil || tk.Cursor != modplatform.OffsetCursor(20) {
		t.Fatalf("ticket = %+v", tk)
	}
	if again := p.ScrollBy(1); again != nil {
		t.Fatal("second ticket issued while fetching")
	}
	if st := p.Snapshot(); st.State != accumulator.Fetching {
		t.Fatalf("state = %s", st.State)
	}
	if out := run(p, tk); out != OutcomeAppended {
		t.Fatalf("outcome = %s", out)
	}
	if a.callCount() != 2 {
		t.Fatalf("fetches = %d", a.callCount())
	}
}

func TestStaleResultsAreDiscarded(t *testing.T) {
	a := &fakeAdapter{platform: modplatform.CurseForge, total: 30, pageSize: 10}
	p := newTestPipeline(t, a, 5, nil)

	tkA := p.Start()
	resA := p.Fetch(context.Background(), tkA)

	tkB, err := p.SetQuery(query.Update{SearchText: testutil.Ptr("b")})
	if err != nil || tkB == nil {
		t.Fatalf("SetQuery: %v %v", tkB, err)
	}
	if out, next := p.Deliver(resA); out != OutcomeDiscarded || next != nil {
		t.Fatalf("stale delivery = %s, %v", out, next)
	}
	if st := p.Snapshot(); st.Rows != 0 || st.State != accumulator.Fetching {
		t.Fatalf("status after discard = %+v", st)
	}

	// re-entering the first query starts a new generation; the old result stays stale
	tkA2, err := p.SetQuery(query.Update{SearchText: testutil.Ptr("")})
	if err != nil || tkA2 == nil {
		t.Fatalf("SetQuery: %v %v", tkA2, err)
	}
	if !tkA2.Signature.Equal(tkA.Signature) || tkA2.Generation == tkA.Generation {
		t.Fatalf("tickets: %+v vs %+v", tkA, tkA2)
	}
	if out, _ := p.Deliver(resA); out != OutcomeDiscarded {
		t.Fatalf("earlier incarnation delivery = %s", out)
	}
	if out, _ := p.Deliver(p.Fetch(context.Background(), tkB)); out != OutcomeDiscarded {
		t.Fatalf("superseded query delivery = %s", out)
	}
	if out := run(p, tkA2); out != OutcomeAppended {
		t.Fatalf("current delivery = %s", out)
	}
	assertRowsFor(t, p)
	if st := p.Snapshot(); st.Rows != 10 {
		t.Fatalf("rows = %d", st.Rows)
	}
}

func TestErrorAndRetry(t *testing.T) {
	a := &fakeAdapter{platform: modplatform.CurseForge, total: 30, pageSize: 10, fail: 2}
	p := newTestPipeline(t, a, 5, nil)

	tk := p.Start()
	out, next := p.Deliver(p.Fetch(context.Background(), tk))
	if out != OutcomeFailed || next != nil {
		t.Fatalf("outcome = %s, next = %v", out, next)
	}
	st := p.Snapshot()
	if st.State != accumulator.Error || !st.HasNextPage || !errors.Is(st.Err, modplatform.ErrNetwork) {
		t.Fatalf("status = %+v", st)
	}
	vis := p.Visible()
	if len(vis) != 1 || !vis[0].Sentinel {
		t.Fatalf("visible = %+v", vis)
	}

	// the sentinel is in view, so scrolling asks for the failed page again
	again := p.ScrollTo(0)
	if again == nil || again.Cursor != tk.Cursor || again.Generation != tk.Generation {
		t.Fatalf("rescroll ticket = %+v", again)
	}
	if st := p.Snapshot(); st.State != accumulator.Fetching || st.Err != nil {
		t.Fatalf("status while refetching = %+v", st)
	}
	if out := run(p, again); out != OutcomeFailed {
		t.Fatalf("second attempt = %s", out)
	}

	retry := p.Retry()
	if retry == nil || retry.Cursor != tk.Cursor || retry.Generation != tk.Generation {
		t.Fatalf("retry ticket = %+v", retry)
	}
	if p.Retry() != nil || p.ScrollTo(0) != nil {
		t.Fatal("second ticket issued while fetching")
	}
	if out := run(p, retry); out != OutcomeAppended {
		t.Fatalf("retry outcome = %s", out)
	}
	if st := p.Snapshot(); st.Rows != 10 || st.Err != nil {
		t.Fatalf("status after retry = %+v", st)
	}
	if a.callCount() != 3 {
		t.Fatalf("fetches = %d", a.callCount())
	}
}

func TestScrollingRetriesFailedPageOnlyNearTheEnd(t *testing.T) {
	a := &fakeAdapter{platform: modplatform.CurseForge, total: 100, pageSize: 20}
	p := newTestPipeline(t, a, 5, nil)
	drain(t, p, p.Start())

	tk := p.ScrollTo(10)
	if tk == nil {
		t.Fatal("no ticket at the threshold")
	}
	a.fail = 1
	if out := run(p, tk); out != OutcomeFailed {
		t.Fatalf("outcome = %s", out)
	}

	if again := p.ScrollTo(0); again != nil {
		t.Fatal("retried with the end of the list out of range")
	}
	if st := p.Snapshot(); st.State != accumulator.Error {
		t.Fatalf("state = %s, want error kept", st.State)
	}
	again := p.ScrollTo(12)
	if again == nil || again.Cursor != modplatform.OffsetCursor(20) {
		t.Fatalf("rescroll ticket = %+v", again)
	}
	if out := run(p, again); out != OutcomeAppended {
		t.Fatalf("rescroll outcome = %s", out)
	}
	if st := p.Snapshot(); st.Rows != 40 || st.State != accumulator.Idle {
		t.Fatalf("status = %+v", st)
	}
}

func TestResultTypeSwitchRestoresScrollAfterFirstPage(t *testing.T) {
	a := &fakeAdapter{platform: modplatform.CurseForge, total: 100, pageSize: 20}
	p := newTestPipeline(t, a, 5, nil)
	drain(t, p, p.Start())
	if tk := p.ScrollTo(8); tk != nil {
		t.Fatal("unexpected ticket")
	}

	tk, err := p.SetQuery(query.Update{ResultType: testutil.Ptr(modplatform.ResultModpack)})
	if err != nil {
		t.Fatalf("SetQuery: %v", err)
	}
	if st := p.Snapshot(); st.Rows != 0 || st.Offset != 0 || st.Signature.ResultType() != modplatform.ResultModpack {
		t.Fatalf("status after switch = %+v", st)
	}
	run(p, tk)
	if st := p.Snapshot(); st.Offset != 0 {
		t.Fatalf("modpack offset = %d, want default 0", st.Offset)
	}
	p.ScrollTo(3)

	tk, err = p.SetQuery(query.Update{ResultType: testutil.Ptr(modplatform.ResultMod)})
	if err != nil {
		t.Fatalf("SetQuery: %v", err)
	}
	if st := p.Snapshot(); st.Rows != 0 || st.Offset != 0 {
		t.Fatalf("offset restored before the first page: %+v", st)
	}
	run(p, tk)
	if st := p.Snapshot(); st.Offset != 8 {
		t.Fatalf("offset after first page = %d, want 8", st.Offset)
	}
	assertRowsFor(t, p)

	// a non result-type change starts at the top
	tk, _ = p.SetQuery(query.Update{SearchText: testutil.Ptr("jei")})
	run(p, tk)
	if st := p.Snapshot(); st.Offset != 0 {
		t.Fatalf("offset after search = %d", st.Offset)
	}
}

func TestPendingRestoreSurvivesQueryEdit(t *testing.T) {
	a := &fakeAdapter{platform: modplatform.CurseForge, total: 100, pageSize: 20}
	p := newTestPipeline(t, a, 5, nil)
	drain(t, p, p.Start())
	p.ScrollTo(8)

	tk, _ := p.SetQuery(query.Update{ResultType: testutil.Ptr(modplatform.ResultModpack)})
	run(p, tk)
	if _, err := p.SetQuery(query.Update{ResultType: testutil.Ptr(modplatform.ResultMod)}); err != nil {
		t.Fatalf("SetQuery: %v", err)
	}
	// edit the search before the first mod page arrives
	tk, err := p.SetQuery(query.Update{SearchText: testutil.Ptr("jei")})
	if err != nil || tk == nil {
		t.Fatalf("SetQuery: %v %v", tk, err)
	}
	run(p, tk)
	if st := p.Snapshot(); st.Offset != 8 || st.Signature.SearchText() != "jei" {
		t.Fatalf("status = %+v, want offset 8 restored", st)
	}

	tk, _ = p.SetQuery(query.Update{SearchText: testutil.Ptr("")})
	run(p, tk)
	if st := p.Snapshot(); st.Offset != 0 {
		t.Fatalf("restore applied twice: offset %d", st.Offset)
	}
}

func TestNavigateAwayAndBack(t *testing.T) {
	mem := scrollmem.New()
	a := &fakeAdapter{platform: modplatform.CurseForge, total: 100, pageSize: 20}
	p := newTestPipeline(t, a, 5, mem)
	drain(t, p, p.Start())
	p.ScrollTo(6)
	p.NavigateAway()
	if mem.Offset("mod") != 6 {
		t.Fatalf("captured offset = %d", mem.Offset("mod"))
	}

	back := newTestPipeline(t, a, 5, mem)
	tk := back.Start()
	if st := back.Snapshot(); st.Offset != 0 {
		t.Fatalf("offset before first page = %d", st.Offset)
	}
	run(back, tk)
	if st := back.Snapshot(); st.Offset != 6 {
		t.Fatalf("offset after first page = %d", st.Offset)
	}
}

func TestVisibleIncludesSentinel(t *testing.T) {
	a := &fakeAdapter{platform: modplatform.CurseForge, total: 100, pageSize: 20}
	p := newTestPipeline(t, a, 5, nil)
	drain(t, p, p.Start())

	tk := p.ScrollTo(1000)
	if tk == nil {
		t.Fatal("scrolling to the end did not request the next page")
	}
	if st := p.Snapshot(); st.Offset != 16 {
		t.Fatalf("offset = %d, want clamped 16", st.Offset)
	}
	vis := p.Visible()
	last := vis[len(vis)-1]
	if !last.Sentinel || last.Row != nil || last.Index != 20 {
		t.Fatalf("last visible = %+v", last)
	}
	for _, v := range vis[:len(vis)-1] {
		if v.Sentinel || v.Row == nil {
			t.Fatalf("row entry = %+v", v)
		}
	}

	p.Measure(15, 3)
	if st := p.Snapshot(); st.TotalSize != 23 {
		t.Fatalf("TotalSize after measure = %d", st.TotalSize)
	}
}

func TestSetQueryValidationLeavesListUntouched(t *testing.T) {
	a := &fakeAdapter{platform: modplatform.CurseForge, total: 10, pageSize: 10}
	p := newTestPipeline(t, a, 5, nil)
	drain(t, p, p.Start())
	tk, err := p.SetQuery(query.Update{SortField: testutil.Ptr(modplatform.SortFollows)})
	var ve *query.ValidationError
	if !errors.As(err, &ve) || tk != nil {
		t.Fatalf("err = %v, tk = %v", err, tk)
	}
	if st := p.Snapshot(); st.Rows != 10 {
		t.Fatalf("rows = %d", st.Rows)
	}
}

func TestConcurrentScrollAndQueryChanges(t *testing.T) {
	a := &fakeAdapter{platform: modplatform.CurseForge, total: 200, pageSize: 7}
	p := newTestPipeline(t, a, 10, nil)

	tickets := make(chan *Ticket, 64)
	var workers sync.WaitGroup
	for i := 0; i < 4; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for tk := range tickets {
				for n := 0; tk != nil && n < 50; n++ {
					_, tk = p.Deliver(p.Fetch(context.Background(), tk))
				}
			}
		}()
	}
	send := func(tk *Ticket) {
		if tk != nil {
			tickets <- tk
		}
	}

	var drivers sync.WaitGroup
	drivers.Add(2)
	go func() {
		defer drivers.Done()
		for i := 0; i < 200; i++ {
			send(p.ScrollBy(1))
			_ = p.Visible()
		}
	}()
	go func() {
		defer drivers.Done()
		for i := 0; i < 30; i++ {
			tk, err := p.SetQuery(query.Update{SearchText: testutil.Ptr(fmt.Sprintf("q%d", i%3))})
			if err != nil {
				t.Errorf("SetQuery: %v", err)
				return
			}
			send(tk)
		}
	}()
	drivers.Wait()
	close(tickets)
	workers.Wait()

	assertRowsFor(t, p)
	st := p.Snapshot()
	seen := make(map[string]bool)
	for i := 0; i < st.Rows; i++ {
		r, _ := p.Row(i)
		if seen[r.ID] {
			t.Fatalf("duplicate row %s", r.ID)
		}
		seen[r.ID] = true
	}
}
