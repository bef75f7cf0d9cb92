// Package metrics writes fetch pipeline counters in the Prometheus textfile format.
// A nil *Manager is valid and records nothing.
package metrics

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jxwalker/modbrowse/internal/config"
)

type Manager struct {
	path string
	mu   sync.Mutex

	pagesFetched   map[string]int64 // by platform
	fetchErrors    map[string]int64
	rowsAppended   int64
	staleDiscards  int64
	lastFetchSec   float64
	signatureReset int64
}

func New(cfg *config.Config) *Manager {
	if cfg == nil || !cfg.Metrics.PrometheusTextfile.Enabled || cfg.Metrics.PrometheusTextfile.Path == "" {
		return nil
	}
	p := cfg.Metrics.PrometheusTextfile.Path
	_ = config.EnsureDir(filepath.Dir(p), 0o755)
	return &Manager{
		path:         p,
		pagesFetched: make(map[string]int64),
		fetchErrors:  make(map[string]int64),
	}
}

// ObservePage records a page applied to the active list.
func (m *Manager) ObservePage(platform string, rows int, d time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pagesFetched[platform]++
	m.rowsAppended += int64(rows)
	m.lastFetchSec = d.Seconds()
}

func (m *Manager) IncFetchErrors(platform string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.fetchErrors[platform]++
	m.mu.Unlock()
}

// IncStaleDiscards counts results dropped because the query changed while they were in flight.
func (m *Manager) IncStaleDiscards() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.staleDiscards++
	m.mu.Unlock()
}

func (m *Manager) IncResets() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.signatureReset++
	m.mu.Unlock()
}

func (m *Manager) Write() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := os.CreateTemp(filepath.Dir(m.path), ".metrics.tmp.*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(f.Name()) }()

	w := bufio.NewWriter(f)
	byPlatform(w, "modbrowse_pages_fetched_total", "Pages applied to the active list.", m.pagesFetched)
	byPlatform(w, "modbrowse_fetch_errors_total", "Page fetches that failed.", m.fetchErrors)

	fmt.Fprintf(w, "# HELP modbrowse_rows_appended_total Rows added to the active list after de-duplication.\n")
	fmt.Fprintf(w, "# TYPE modbrowse_rows_appended_total counter\n")
	fmt.Fprintf(w, "modbrowse_rows_appended_total %d\n", m.rowsAppended)

	fmt.Fprintf(w, "# HELP modbrowse_stale_discards_total Fetch results discarded because the query changed.\n")
	fmt.Fprintf(w, "# TYPE modbrowse_stale_discards_total counter\n")
	fmt.Fprintf(w, "modbrowse_stale_discards_total %d\n", m.staleDiscards)

	fmt.Fprintf(w, "# HELP modbrowse_list_resets_total Times the result list was reset for a new query.\n")
	fmt.Fprintf(w, "# TYPE modbrowse_list_resets_total counter\n")
	fmt.Fprintf(w, "modbrowse_list_resets_total %d\n", m.signatureReset)

	fmt.Fprintf(w, "# HELP modbrowse_last_fetch_seconds Duration of the last applied page fetch in seconds.\n")
	fmt.Fprintf(w, "# TYPE modbrowse_last_fetch_seconds gauge\n")
	fmt.Fprintf(w, "modbrowse_last_fetch_seconds %.6f\n", m.lastFetchSec)

	fmt.Fprintf(w, "# HELP modbrowse_metrics_timestamp_seconds UNIX timestamp when this file was written.\n")
	fmt.Fprintf(w, "# TYPE modbrowse_metrics_timestamp_seconds gauge\n")
	fmt.Fprintf(w, "modbrowse_metrics_timestamp_seconds %d\n", time.Now().Unix())

	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), m.path)
}

func byPlatform(w *bufio.Writer, name, help string, values map[string]int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s counter\n", name)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s{platform=%q} %d\n", name, k, values[k])
	}
}
