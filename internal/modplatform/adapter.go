package modplatform

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Adapter translates one page request into a uniform Page, hiding how the platform
// paginates (or doesn't).
type Adapter interface {
	// Platform returns the platform this adapter serves
	Platform() Platform

	// FetchPage returns the page that starts at cursor. It never returns a partial page:
	// on error the Page is the zero value.
	FetchPage(ctx context.Context, params Params, cursor Cursor) (Page, error)
}

// CategorySource is implemented by adapters that can list the platform's categories.
type CategorySource interface {
	Categories(ctx context.Context) ([]Category, error)
}

// DetailsSource is implemented by adapters that can look up extended project details.
// Lookups are batched: one call covers all requested ids.
type DetailsSource interface {
	Details(ctx context.Context, ids []string) (map[string]Details, error)
}

// VersionSource is implemented by adapters that can list the versions of one project,
// params.ProjectID. The listing is paged like a search; GameVersion and ModLoaders filter it.
type VersionSource interface {
	FetchVersions(ctx context.Context, params Params, cursor Cursor) (Page, error)
}

// ListingCache is implemented by adapters that keep fetched listings between pages.
type ListingCache interface {
	// Forget drops every stored listing so the next page is served fresh.
	Forget()
}

// ErrNetwork marks transport and server failures during a fetch.
var ErrNetwork = errors.New("network error")

// FetchError describes a failed platform request.
type FetchError struct {
	Platform Platform
	Status   int // HTTP status, 0 when no response was received
	URL      string
	Err      error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s returned status %d", e.Platform, e.URL, e.Status)
	}
	return fmt.Sprintf("%s: %s: %v", e.Platform, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// HTTPStatus returns the response status, 0 for transport failures.
func (e *FetchError) HTTPStatus() int { return e.Status }

// Is makes every FetchError match ErrNetwork.
func (e *FetchError) Is(target error) bool { return target == ErrNetwork }

// Registry holds the adapter for each platform.
type Registry struct {
	adapters map[Platform]Adapter
}

// NewRegistry creates a registry with the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[Platform]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces the adapter for its platform.
func (r *Registry) Register(a Adapter) {
	if a == nil {
		return
	}
	r.adapters[a.Platform()] = a
}

// Adapter returns the adapter for p.
func (r *Registry) Adapter(p Platform) (Adapter, error) {
	if r != nil {
		if a, ok := r.adapters[p]; ok {
			return a, nil
		}
	}
	return nil, fmt.Errorf("no adapter registered for platform %q", p)
}

// Platforms lists the registered platforms in a stable order.
func (r *Registry) Platforms() []Platform {
	out := make([]Platform, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
