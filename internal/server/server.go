// Package server is the HTTP layer. Each /metrics request runs the whole
// pipeline from scratch: fresh wg dump, fresh annotation read, no state
// shared between scrapes.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/common/expfmt"

	"wgexporter/internal/collect"
	"wgexporter/internal/config"
	"wgexporter/internal/exposition"
	"wgexporter/internal/execx"
	"wgexporter/internal/telemetry"
	"wgexporter/internal/wgconf"
	"wgexporter/internal/wgdump"
)

// Server serves the metrics endpoint.
type Server struct {
	cfg       config.Config
	collector *wgdump.Collector
	renderOpt exposition.Options
	http      *http.Server

	// readFile is swapped in tests to avoid touching the filesystem.
	readFile func(string) ([]byte, error)
}

// New builds a server from a validated config.
func New(cfg config.Config, runner execx.Runner) (*Server, error) {
	mode, err := exposition.ParseAllowedIPMode(cfg.AllowedIPMode)
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:       cfg,
		collector: wgdump.NewCollector(runner, cfg.PrependSudo, time.Duration(cfg.DumpTimeoutSec)*time.Second),
		renderOpt: exposition.Options{
			AllowedIPMode:       mode,
			ExportEndpoint:      cfg.ExportRemoteEndpoint,
			HandshakeTimeoutSec: cfg.HandshakeTimeoutSec,
		},
		readFile: os.ReadFile,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", s.handleMetrics)
	s.http = &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

// ListenAndServe runs the HTTP server until Shutdown or failure.
func (s *Server) ListenAndServe() error {
	slog.Info("exporter listening", "addr", s.cfg.Listen, "path", "/metrics")
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	telemetry.ScrapesTotal.Inc()

	doc, err := s.Scrape(r.Context())
	telemetry.ScrapeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		telemetry.ScrapeErrorsTotal.Inc()
		slog.Error("scrape failed", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	_, _ = w.Write([]byte(doc))
	if err := telemetry.WriteTo(w); err != nil {
		slog.Warn("appending self metrics failed", "err", err)
	}
}

// Scrape runs one full pipeline pass and returns the rendered document.
// Any failure aborts the scrape: no partial metrics are ever produced.
func (s *Server) Scrape(ctx context.Context) (string, error) {
	annotations, err := s.readAnnotations()
	if err != nil {
		return "", err
	}

	interfaces, err := s.collector.Collect(ctx, s.cfg.Interfaces)
	if err != nil {
		return "", err
	}

	snap := collect.Aggregate(interfaces, annotations)
	return exposition.Render(snap, s.renderOpt), nil
}

// readAnnotations re-reads every configured file on each scrape so renames
// and edits show up immediately. A missing file is fatal only because its
// path was explicitly requested; configuring no files at all is fine.
func (s *Server) readAnnotations() (wgconf.AnnotationMap, error) {
	texts := make([]string, 0, len(s.cfg.ConfigFiles))
	for _, path := range s.cfg.ConfigFiles {
		data, err := s.readFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		texts = append(texts, string(data))
	}
	return wgconf.Parse(texts...), nil
}
