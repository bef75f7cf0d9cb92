package query

import (
	"fmt"
	"slices"
	"sync"

	"github.com/jxwalker/modbrowse/internal/modplatform"
)

// Update is a partial change. Nil fields keep their current value.
type Update struct {
	ResultType  *modplatform.ResultType
	Platform    *modplatform.Platform
	SearchText  *string
	SortField   *modplatform.SortField
	SortOrder   *modplatform.SortOrder
	Categories  *[]string
	GameVersion *string
	ModLoaders  *[]modplatform.ModLoader
}

// Seed is the read-only instance descriptor a session may start from.
type Seed struct {
	InstanceID  int64
	GameVersion string
	ModLoaders  []modplatform.ModLoader
}

// Change is published to subscribers whenever the signature changes.
type Change struct {
	Prev Signature
	Next Signature
}

// ValidationError reports an explicitly supplied value that the target platform or result
// type cannot accept. The store is left unchanged.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Message)
}

type subscriber struct {
	id int
	fn func(Change)
}

// Store holds the current signature.
type Store struct {
	catalog *modplatform.Catalog

	mu     sync.Mutex
	cur    Signature
	subs   []subscriber
	nextID int
}

// NewStore validates initial and seeds empty game version and loader filters from seed.
// Seeded loaders the platform does not support are dropped rather than rejected.
func NewStore(catalog *modplatform.Catalog, initial modplatform.Params, seed *Seed) (*Store, error) {
	if catalog == nil {
		catalog = modplatform.NewCatalog()
	}
	p := initial.Clone()
	u := Update{ResultType: &p.ResultType, Platform: &p.Platform}
	if p.SortField != "" {
		u.SortField = &p.SortField
	}
	if p.SortOrder != "" {
		u.SortOrder = &p.SortOrder
	}
	if len(p.Categories) > 0 {
		u.Categories = &p.Categories
	}
	if len(p.ModLoaders) > 0 {
		u.ModLoaders = &p.ModLoaders
	}
	if seed != nil {
		p.InstanceID = seed.InstanceID
		if p.GameVersion == "" {
			p.GameVersion = seed.GameVersion
		}
		if len(p.ModLoaders) == 0 {
			p.ModLoaders = slices.Clone(seed.ModLoaders)
		}
	}
	next, err := resolve(catalog, p, u)
	if err != nil {
		return nil, err
	}
	return &Store{catalog: catalog, cur: NewSignature(next)}, nil
}

func (s *Store) Get() Signature {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

func (s *Store) Catalog() *modplatform.Catalog { return s.catalog }

// Set merges u into the current parameters. When the resulting signature differs from the
// current one, subscribers are notified in subscription order before Set returns.
func (s *Store) Set(u Update) (Signature, error) {
	s.mu.Lock()
	prev := s.cur
	next, err := resolve(s.catalog, prev.params, u)
	if err != nil {
		s.mu.Unlock()
		return prev, err
	}
	sig := NewSignature(next)
	if sig.Equal(prev) {
		s.mu.Unlock()
		return prev, nil
	}
	s.cur = sig
	subs := slices.Clone(s.subs)
	s.mu.Unlock()

	ch := Change{Prev: prev, Next: sig}
	for _, sub := range subs {
		sub.fn(ch)
	}
	return sig, nil
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.subs = slices.DeleteFunc(s.subs, func(sub subscriber) bool { return sub.id == id })
	}
}

// resolve applies u to prev. Explicit values are validated strictly; values carried over
// from prev are dropped or reset when a field they depend on made them invalid.
func resolve(catalog *modplatform.Catalog, prev modplatform.Params, u Update) (modplatform.Params, error) {
	next := prev.Clone()

	if u.ResultType != nil {
		if !u.ResultType.Valid() {
			return prev, &ValidationError{Field: "result type", Value: *u.ResultType, Message: "must be mod or modpack"}
		}
		next.ResultType = *u.ResultType
	}
	if u.Platform != nil {
		next.Platform = *u.Platform
	}
	caps, ok := catalog.Capabilities(next.Platform)
	if !ok {
		return prev, &ValidationError{Field: "platform", Value: next.Platform, Message: "unknown platform"}
	}
	if u.SearchText != nil {
		next.SearchText = *u.SearchText
	}
	if u.GameVersion != nil {
		next.GameVersion = *u.GameVersion
	}

	switch {
	case u.SortField != nil && *u.SortField != "":
		if !caps.SupportsSort(*u.SortField) {
			return prev, &ValidationError{Field: "sort field", Value: *u.SortField, Message: fmt.Sprintf("not offered by %s", next.Platform)}
		}
		next.SortField = *u.SortField
	case u.SortField != nil || next.SortField == "" || !caps.SupportsSort(next.SortField):
		next.SortField = caps.DefaultSort
	}

	if u.SortOrder != nil {
		switch o := *u.SortOrder; {
		case o != modplatform.SortDefault && o != modplatform.SortAsc && o != modplatform.SortDesc:
			return prev, &ValidationError{Field: "sort order", Value: o, Message: "must be asc or desc"}
		case o != modplatform.SortDefault && !caps.SortOrder:
			return prev, &ValidationError{Field: "sort order", Value: o, Message: fmt.Sprintf("%s has no sort order", next.Platform)}
		}
		next.SortOrder = *u.SortOrder
	} else if !caps.SortOrder {
		next.SortOrder = modplatform.SortDefault
	}

	if u.ModLoaders != nil {
		for _, l := range *u.ModLoaders {
			if !caps.SupportsLoader(l) {
				return prev, &ValidationError{Field: "mod loader", Value: l, Message: fmt.Sprintf("not supported by %s", next.Platform)}
			}
		}
		next.ModLoaders = slices.Clone(*u.ModLoaders)
	} else {
		next.ModLoaders = slices.DeleteFunc(next.ModLoaders, func(l modplatform.ModLoader) bool { return !caps.SupportsLoader(l) })
	}

	if u.Categories != nil {
		for _, id := range *u.Categories {
			if _, ok := catalog.Category(next.Platform, next.ResultType, next.ModLoaders, id); !ok {
				return prev, &ValidationError{Field: "category", Value: id, Message: fmt.Sprintf("not a %s %s category for the selected loaders", next.Platform, next.ResultType)}
			}
		}
		next.Categories = slices.Clone(*u.Categories)
	} else {
		next.Categories = slices.DeleteFunc(next.Categories, func(id string) bool {
			_, ok := catalog.Category(next.Platform, next.ResultType, next.ModLoaders, id)
			return !ok
		})
	}

	if !next.ResultType.Valid() {
		return prev, &ValidationError{Field: "result type", Value: next.ResultType, Message: "must be mod or modpack"}
	}
	return next.Canonical(), nil
}
