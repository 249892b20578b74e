// Package collect merges a parsed WireGuard dump with peer annotations into
// the flat, ordered record sequence the renderer consumes.
package collect

import (
	"wgexporter/internal/wgconf"
	"wgexporter/internal/wgdump"
)

// Label is one exposition label. Labels travel as ordered slices, never
// maps, so identical input always renders identically.
type Label struct {
	Name  string
	Value string
}

// PeerRecord is one (interface, peer) pair ready for rendering. Annotations
// holds the labels contributed by the peer's annotation, already ordered:
// friendly_json keys sorted, friendly_name last.
type PeerRecord struct {
	Interface       string
	PublicKey       string
	Endpoint        *wgdump.Endpoint
	AllowedIPs      []wgdump.AllowedIP
	LatestHandshake uint64
	ReceivedBytes   uint64
	SentBytes       uint64
	Annotations     []Label
}

// InterfaceStat carries the per-interface data behind wireguard_peers_total.
type InterfaceStat struct {
	Name       string
	Handshakes []uint64 // one entry per peer, in record order
}

// Snapshot is the aggregated output of one scrape.
type Snapshot struct {
	Peers      []PeerRecord
	Interfaces []InterfaceStat
}

// Aggregate flattens interfaces into peer records, attaching annotation
// labels by public key. Order is preserved exactly: interfaces as given,
// peers in parse order. Peers without an annotation stay unadorned;
// annotation entries without a matching peer are ignored. The same public
// key on two interfaces yields two distinct records.
func Aggregate(interfaces []wgdump.Interface, annotations wgconf.AnnotationMap) Snapshot {
	var snap Snapshot
	for _, iface := range interfaces {
		stat := InterfaceStat{Name: iface.Name}
		for _, peer := range iface.Peers {
			snap.Peers = append(snap.Peers, PeerRecord{
				Interface:       iface.Name,
				PublicKey:       peer.PublicKey,
				Endpoint:        peer.Endpoint,
				AllowedIPs:      peer.AllowedIPs,
				LatestHandshake: peer.LatestHandshake,
				ReceivedBytes:   peer.ReceivedBytes,
				SentBytes:       peer.SentBytes,
				Annotations:     annotationLabels(annotations, peer.PublicKey),
			})
			stat.Handshakes = append(stat.Handshakes, peer.LatestHandshake)
		}
		snap.Interfaces = append(snap.Interfaces, stat)
	}
	return snap
}

func annotationLabels(annotations wgconf.AnnotationMap, publicKey string) []Label {
	ann, ok := annotations[publicKey]
	if !ok {
		return nil
	}
	var labels []Label
	for _, kv := range ann.FriendlyJSON {
		labels = append(labels, Label{Name: kv.Key, Value: kv.Value})
	}
	if ann.FriendlyName != nil {
		labels = append(labels, Label{Name: "friendly_name", Value: *ann.FriendlyName})
	}
	return labels
}
