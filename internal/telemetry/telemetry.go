// Package telemetry tracks the exporter's own scrape health. The metrics
// live on a private registry so they never mix with the WireGuard families
// until the server appends them to the response.
package telemetry

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

var Registry = prometheus.NewRegistry()

var (
	ScrapesTotal = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "wireguard_exporter_scrapes_total",
		Help: "Total number of scrape requests handled.",
	})
	ScrapeErrorsTotal = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "wireguard_exporter_scrape_errors_total",
		Help: "Total number of scrapes that failed.",
	})
	ScrapeDuration = promauto.With(Registry).NewHistogram(prometheus.HistogramOpts{
		Name:    "wireguard_exporter_scrape_duration_seconds",
		Help:    "Time spent dumping, merging and rendering per scrape.",
		Buckets: prometheus.DefBuckets,
	})
)

// WriteTo encodes the gathered self-metrics in the text exposition format.
func WriteTo(w io.Writer) error {
	mfs, err := Registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
