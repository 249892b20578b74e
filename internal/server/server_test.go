package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"wgexporter/internal/config"
)

// fakeRunner returns a canned dump for every invocation.
type fakeRunner struct {
	out string
	err error
}

func (f *fakeRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	return f.out, f.err
}

func testConfig() config.Config {
	cfg := config.Config{
		Interfaces:           []string{"all"},
		ExportRemoteEndpoint: true,
	}
	config.ApplyDefaults(&cfg)
	return cfg
}

func TestScrape_EndToEnd(t *testing.T) {
	t.Parallel()

	dump := "wg0\tABCDEF==\t\t51820\t0\n" +
		"wg0\tXYZ123==\t(none)\t1.2.3.4:55555\t10.0.0.5/32\t1600000000\t100\t200\t(none)\n"
	annotation := "[Peer]\n# friendly_name = TestPeer\nPublicKey = XYZ123==\n"

	cfg := testConfig()
	cfg.ConfigFiles = []string{"/etc/wireguard/wg0.conf"}

	srv, err := New(cfg, &fakeRunner{out: dump})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv.readFile = func(path string) ([]byte, error) {
		if path != "/etc/wireguard/wg0.conf" {
			return nil, fmt.Errorf("unexpected path %s", path)
		}
		return []byte(annotation), nil
	}

	doc, err := srv.Scrape(context.Background())
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}

	labels := `{interface="wg0",public_key="XYZ123==",allowed_ips="10.0.0.5/32",endpoint="1.2.3.4",remote_port="55555",friendly_name="TestPeer"}`
	for _, want := range []string{
		"wireguard_sent_bytes_total" + labels + " 200\n",
		"wireguard_received_bytes_total" + labels + " 100\n",
		"wireguard_latest_handshake_seconds" + labels + " 1600000000\n",
		`wireguard_peers_total{interface="wg0"} 1` + "\n",
	} {
		if !strings.Contains(doc, want) {
			t.Fatalf("missing %q in:\n%s", want, doc)
		}
	}
}

func TestScrape_NoAnnotationsConfigured(t *testing.T) {
	t.Parallel()

	dump := "wg0\tpk\tpriv\t51820\toff\n" +
		"wg0\tpeer\t(none)\t(none)\t10.0.0.2/32\t0\t0\t0\toff\n"

	srv, err := New(testConfig(), &fakeRunner{out: dump})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	doc, err := srv.Scrape(context.Background())
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if strings.Contains(doc, "friendly_name") {
		t.Fatalf("unexpected friendly_name:\n%s", doc)
	}
}

func TestScrape_AnnotationReadFailureIsFatal(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.ConfigFiles = []string{"/missing.conf"}

	srv, err := New(cfg, &fakeRunner{out: ""})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv.readFile = func(string) ([]byte, error) { return nil, errors.New("no such file") }

	if _, err := srv.Scrape(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestHandleMetrics_ServerErrorOnExecFailure(t *testing.T) {
	t.Parallel()

	srv, err := New(testConfig(), &fakeRunner{err: errors.New("wg: command not found")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.handleMetrics(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 500 {
		t.Fatalf("code=%d", rec.Code)
	}
	if body := rec.Body.String(); strings.Contains(body, "wireguard_sent_bytes_total{") {
		t.Fatalf("partial metrics on failure:\n%s", body)
	}
}

func TestHandleMetrics_AppendsSelfTelemetry(t *testing.T) {
	t.Parallel()

	dump := "wg0\tpk\tpriv\t51820\toff\n"
	srv, err := New(testConfig(), &fakeRunner{out: dump})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.handleMetrics(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("code=%d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content type=%q", ct)
	}

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "wireguard_peers_total") {
		t.Fatalf("missing core document:\n%s", body)
	}
	if !strings.Contains(string(body), "wireguard_exporter_scrapes_total") {
		t.Fatalf("missing self telemetry:\n%s", body)
	}
}

func TestNew_RejectsBadMode(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.AllowedIPMode = "both"
	if _, err := New(cfg, &fakeRunner{}); err == nil {
		t.Fatalf("expected error")
	}
}
