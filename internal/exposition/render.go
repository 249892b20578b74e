// Package exposition renders aggregated peer records into the Prometheus
// text format. Emission is fully deterministic: fixed family order, fixed
// label order, and counters printed as plain unsigned integers.
package exposition

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"wgexporter/internal/collect"
)

// AllowedIPMode selects how allowed-ip entries become labels.
type AllowedIPMode int

const (
	// CombinedAllowedIPs emits one allowed_ips label joining all entries
	// with commas.
	CombinedAllowedIPs AllowedIPMode = iota
	// SplitAllowedIPs emits allowed_ip_N / allowed_subnet_N label pairs,
	// one pair per entry, indexed from 0.
	SplitAllowedIPs
)

// ParseAllowedIPMode maps the config strings onto a mode.
func ParseAllowedIPMode(s string) (AllowedIPMode, error) {
	switch s {
	case "combined":
		return CombinedAllowedIPs, nil
	case "split":
		return SplitAllowedIPs, nil
	default:
		return 0, fmt.Errorf("unknown allowed-ip mode %q", s)
	}
}

// Options controls label emission.
type Options struct {
	AllowedIPMode AllowedIPMode

	// ExportEndpoint adds endpoint and remote_port labels for peers whose
	// endpoint is known.
	ExportEndpoint bool

	// HandshakeTimeoutSec, when set, splits wireguard_peers_total into
	// seen_recently="true"/"false" samples per interface.
	HandshakeTimeoutSec *uint64

	// Now anchors the seen_recently comparison. Zero means time.Now();
	// tests pin it for reproducible output.
	Now time.Time
}

type family struct {
	name string
	help string
	typ  string
	val  func(collect.PeerRecord) uint64
}

var peerFamilies = []family{
	{"wireguard_sent_bytes_total", "Bytes sent to the peer", "counter",
		func(r collect.PeerRecord) uint64 { return r.SentBytes }},
	{"wireguard_received_bytes_total", "Bytes received from the peer", "counter",
		func(r collect.PeerRecord) uint64 { return r.ReceivedBytes }},
	{"wireguard_latest_handshake_seconds", "Seconds from the last handshake", "gauge",
		func(r collect.PeerRecord) uint64 { return r.LatestHandshake }},
}

// Render serializes the snapshot. Identical snapshot and options always
// produce byte-identical output.
func Render(snap collect.Snapshot, opts Options) string {
	var b strings.Builder

	for i, fam := range peerFamilies {
		if i > 0 {
			b.WriteByte('\n')
		}
		writeHeader(&b, fam.name, fam.help, fam.typ)
		for _, rec := range snap.Peers {
			writeSample(&b, fam.name, peerLabels(rec, opts), fam.val(rec))
		}
	}

	b.WriteByte('\n')
	writePeersTotal(&b, snap, opts)

	return b.String()
}

func writeHeader(b *strings.Builder, name, help, typ string) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(help)
	b.WriteString("\n# TYPE ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(typ)
	b.WriteByte('\n')
}

func writeSample(b *strings.Builder, name string, labels []collect.Label, value uint64) {
	b.WriteString(name)
	b.WriteByte('{')
	for i, label := range labels {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(label.Name)
		b.WriteString(`="`)
		b.WriteString(escapeLabelValue(label.Value))
		b.WriteByte('"')
	}
	b.WriteString("} ")
	b.WriteString(strconv.FormatUint(value, 10))
	b.WriteByte('\n')
}

// peerLabels assembles the full label sequence for one record:
// interface, public_key, allowed-ip labels per mode, endpoint/remote_port
// (if enabled and known), then the annotation labels.
func peerLabels(rec collect.PeerRecord, opts Options) []collect.Label {
	labels := []collect.Label{
		{Name: "interface", Value: rec.Interface},
		{Name: "public_key", Value: rec.PublicKey},
	}

	switch opts.AllowedIPMode {
	case SplitAllowedIPs:
		for i, aip := range rec.AllowedIPs {
			idx := strconv.Itoa(i)
			labels = append(labels,
				collect.Label{Name: "allowed_ip_" + idx, Value: aip.Address},
				collect.Label{Name: "allowed_subnet_" + idx, Value: aip.Prefix},
			)
		}
	default:
		entries := make([]string, len(rec.AllowedIPs))
		for i, aip := range rec.AllowedIPs {
			entries[i] = aip.String()
		}
		labels = append(labels, collect.Label{Name: "allowed_ips", Value: strings.Join(entries, ",")})
	}

	if opts.ExportEndpoint && rec.Endpoint != nil {
		labels = append(labels,
			collect.Label{Name: "endpoint", Value: rec.Endpoint.Address},
			collect.Label{Name: "remote_port", Value: strconv.FormatUint(uint64(rec.Endpoint.Port), 10)},
		)
	}

	return append(labels, rec.Annotations...)
}

func writePeersTotal(b *strings.Builder, snap collect.Snapshot, opts Options) {
	writeHeader(b, "wireguard_peers_total", "Total number of peers", "gauge")

	for _, iface := range snap.Interfaces {
		base := []collect.Label{{Name: "interface", Value: iface.Name}}
		if opts.HandshakeTimeoutSec == nil {
			writeSample(b, "wireguard_peers_total", base, uint64(len(iface.Handshakes)))
			continue
		}

		now := opts.Now
		if now.IsZero() {
			now = time.Now()
		}
		nowSec := uint64(now.Unix())

		var recent uint64
		for _, hs := range iface.Handshakes {
			if hs <= nowSec && nowSec-hs < *opts.HandshakeTimeoutSec {
				recent++
			}
		}
		seen := append(base, collect.Label{Name: "seen_recently", Value: "true"})
		writeSample(b, "wireguard_peers_total", seen, recent)
		notSeen := append(base[:1:1], collect.Label{Name: "seen_recently", Value: "false"})
		writeSample(b, "wireguard_peers_total", notSeen, uint64(len(iface.Handshakes))-recent)
	}
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func escapeLabelValue(v string) string {
	return labelEscaper.Replace(v)
}
