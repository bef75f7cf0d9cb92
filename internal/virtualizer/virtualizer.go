// Package virtualizer maps a scroll position onto the window of list items that needs
// rendering. Sizes and offsets are in the host's units (terminal lines for the TUI).
package virtualizer

import "sort"

type Options struct {
	// EstimateSize is the size assumed for items that have not been measured.
	EstimateSize int
	// Overscan is the number of average-sized items rendered beyond each viewport edge.
	Overscan int
}

// Item is one item to render.
type Item struct {
	Index int
	Start int
	Size  int
}

// Window is the result of a range computation. First and Last are inclusive; an empty
// window has First 0 and Last -1.
type Window struct {
	Items     []Item
	First     int
	Last      int
	TotalSize int
}

func (w Window) Empty() bool { return len(w.Items) == 0 }

// Virtualizer keeps per-item sizes and their prefix sums. prefix[i] is the start offset
// of item i; entries past valid are stale and rebuilt on demand. Not safe for concurrent
// use.
type Virtualizer struct {
	opts   Options
	sizes  []int
	prefix []int
	valid  int
}

func New(opts Options) *Virtualizer {
	if opts.EstimateSize < 1 {
		opts.EstimateSize = 1
	}
	if opts.Overscan < 0 {
		opts.Overscan = 0
	}
	return &Virtualizer{opts: opts, prefix: []int{0}}
}

func (v *Virtualizer) Count() int { return len(v.sizes) }

// SetCount grows or shrinks the item list. Existing measurements are kept.
func (v *Virtualizer) SetCount(n int) {
	if n < 0 {
		n = 0
	}
	switch {
	case n > len(v.sizes):
		for len(v.sizes) < n {
			v.sizes = append(v.sizes, v.opts.EstimateSize)
		}
	case n < len(v.sizes):
		v.sizes = v.sizes[:n]
	}
	v.valid = min(v.valid, n)
}

// Reset forgets every item and measurement.
func (v *Virtualizer) Reset() {
	v.sizes = v.sizes[:0]
	v.prefix = v.prefix[:1]
	v.valid = 0
}

// Measure records the real size of item index. Only offsets after index are invalidated.
func (v *Virtualizer) Measure(index, size int) {
	if index < 0 || index >= len(v.sizes) || size < 0 || v.sizes[index] == size {
		return
	}
	v.sizes[index] = size
	v.valid = min(v.valid, index)
}

func (v *Virtualizer) ensure() {
	n := len(v.sizes)
	if cap(v.prefix) < n+1 {
		grown := make([]int, n+1, 2*n+1)
		copy(grown, v.prefix[:v.valid+1])
		v.prefix = grown
	}
	v.prefix = v.prefix[:n+1]
	for i := v.valid; i < n; i++ {
		v.prefix[i+1] = v.prefix[i] + v.sizes[i]
	}
	v.valid = n
}

// TotalSize is the sum of all item sizes.
func (v *Virtualizer) TotalSize() int {
	v.ensure()
	return v.prefix[len(v.sizes)]
}

// OffsetOf returns the start offset of item index, clamped to the list.
func (v *Virtualizer) OffsetOf(index int) int {
	v.ensure()
	index = max(0, min(index, len(v.sizes)))
	return v.prefix[index]
}

// IndexAt returns the item covering offset, or -1 for an empty list.
func (v *Virtualizer) IndexAt(offset int) int {
	v.ensure()
	n := len(v.sizes)
	if n == 0 {
		return -1
	}
	i := sort.Search(n, func(i int) bool { return v.prefix[i+1] > offset })
	return min(i, n-1)
}

// ClampOffset keeps offset within [0, TotalSize-viewport].
func (v *Virtualizer) ClampOffset(offset, viewport int) int {
	return max(0, min(offset, v.TotalSize()-viewport))
}

// Range returns the items intersecting [scroll-overscan*avg, scroll+viewport+overscan*avg),
// where avg is the mean size of the current items.
func (v *Virtualizer) Range(scrollOffset, viewport int) Window {
	v.ensure()
	return window(v.sizes, v.prefix, scrollOffset, viewport, v.opts.Overscan)
}

// Compute is Range for a one-off list of sizes.
func Compute(scrollOffset, viewport, overscan int, sizes []int) Window {
	prefix := make([]int, len(sizes)+1)
	for i, s := range sizes {
		prefix[i+1] = prefix[i] + s
	}
	return window(sizes, prefix, scrollOffset, viewport, max(overscan, 0))
}

func window(sizes, prefix []int, scroll, viewport, overscan int) Window {
	n := len(sizes)
	total := prefix[n]
	w := Window{First: 0, Last: -1, TotalSize: total}
	if n == 0 || viewport <= 0 {
		return w
	}
	pad := float64(overscan) * float64(total) / float64(n)
	lo := float64(scroll) - pad
	hi := float64(scroll+viewport) + pad

	first := sort.Search(n, func(i int) bool { return float64(prefix[i+1]) > lo })
	end := sort.Search(n, func(i int) bool { return float64(prefix[i]) >= hi })
	if first >= end {
		return w
	}
	w.First, w.Last = first, end-1
	w.Items = make([]Item, 0, end-first)
	for i := first; i < end; i++ {
		w.Items = append(w.Items, Item{Index: i, Start: prefix[i], Size: sizes[i]})
	}
	return w
}
