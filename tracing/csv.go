package tracing

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/tebeka/atexit"
)

// CacheMetrics is the subset of mesi.Metrics the CSV exporter needs,
// with the transition log already joined into one string. Defined
// locally (rather than importing mesi) so tracing has no dependency on
// the cache implementation; the driver copies each mesi.Metrics into
// one of these.
type CacheMetrics struct {
	PE                                                    int
	Loads, Stores, RWAccesses, CacheMisses, Invalidations uint64
	BusRd, BusRdX, BusUpgr, Flush                         uint64
	JoinedTransitions                                     string
}

// CSVExporter writes cache_stats.csv: one header row plus one row per
// cache, in the column order the driver's metrics report commits to.
type CSVExporter struct {
	path string
}

// NewCSVExporter creates an exporter targeting path. It registers
// nothing by itself; call WriteOnExit for a best-effort flush on a
// code path that skips an explicit Write call.
func NewCSVExporter(path string) *CSVExporter {
	e := &CSVExporter{path: path}
	return e
}

var header = []string{
	"PE", "Loads", "Stores", "RW_Accesses", "Cache_Misses",
	"Invalidations", "BusRd", "BusRdX", "BusUpgr", "Flush", "Transitions",
}

// Write renders rows to e.path, overwriting any existing file.
func (e *CSVExporter) Write(rows []CacheMetrics) error {
	file, err := os.Create(e.path)
	if err != nil {
		return fmt.Errorf("tracing: creating %s: %w", e.path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, m := range rows {
		record := []string{
			fmt.Sprintf("%d", m.PE),
			fmt.Sprintf("%d", m.Loads),
			fmt.Sprintf("%d", m.Stores),
			fmt.Sprintf("%d", m.RWAccesses),
			fmt.Sprintf("%d", m.CacheMisses),
			fmt.Sprintf("%d", m.Invalidations),
			fmt.Sprintf("%d", m.BusRd),
			fmt.Sprintf("%d", m.BusRdX),
			fmt.Sprintf("%d", m.BusUpgr),
			fmt.Sprintf("%d", m.Flush),
			m.JoinedTransitions,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteOnExit registers rows to be exported via atexit.Register, for
// drivers that want a best-effort CSV even on a panic/os.Exit path
// elsewhere in the program. rows is evaluated lazily at exit time.
func (e *CSVExporter) WriteOnExit(rows func() []CacheMetrics) {
	atexit.Register(func() {
		_ = e.Write(rows())
	})
}
