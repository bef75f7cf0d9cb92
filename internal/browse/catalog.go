package browse

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/jxwalker/modbrowse/internal/logging"
	"github.com/jxwalker/modbrowse/internal/modplatform"
)

// RefreshCatalog loads the category lists of every registered platform concurrently.
// A platform whose request fails keeps its built-in list; the first error is returned
// after all requests finish.
func RefreshCatalog(ctx context.Context, registry *modplatform.Registry, catalog *modplatform.Catalog, log *logging.Logger) error {
	var g errgroup.Group
	for _, pf := range registry.Platforms() {
		a, err := registry.Adapter(pf)
		if err != nil {
			continue
		}
		src, ok := a.(modplatform.CategorySource)
		if !ok {
			continue
		}
		pf := pf
		g.Go(func() error {
			cats, err := src.Categories(ctx)
			if err != nil {
				log.Warnf("refresh %s categories: %v (using built-in list)", pf, err)
				return fmt.Errorf("refresh %s categories: %w", pf, err)
			}
			catalog.SetCategories(pf, cats)
			log.Debugf("refreshed %s categories: %d", pf, len(cats))
			return nil
		})
	}
	return g.Wait()
}
