package collect

import (
	"reflect"
	"testing"

	"wgexporter/internal/wgconf"
	"wgexporter/internal/wgdump"
)

func strptr(s string) *string { return &s }

func TestAggregate_OrderPreserved(t *testing.T) {
	t.Parallel()

	interfaces := []wgdump.Interface{
		{Name: "wg1", Peers: []wgdump.Peer{{PublicKey: "b"}, {PublicKey: "a"}}},
		{Name: "wg0", Peers: []wgdump.Peer{{PublicKey: "c"}}},
	}

	snap := Aggregate(interfaces, nil)
	if len(snap.Peers) != 3 {
		t.Fatalf("peers=%d", len(snap.Peers))
	}
	got := []string{
		snap.Peers[0].Interface + "/" + snap.Peers[0].PublicKey,
		snap.Peers[1].Interface + "/" + snap.Peers[1].PublicKey,
		snap.Peers[2].Interface + "/" + snap.Peers[2].PublicKey,
	}
	want := []string{"wg1/b", "wg1/a", "wg0/c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("order=%v", got)
	}
	if len(snap.Interfaces) != 2 || snap.Interfaces[0].Name != "wg1" || len(snap.Interfaces[0].Handshakes) != 2 {
		t.Fatalf("interfaces=%+v", snap.Interfaces)
	}
}

func TestAggregate_AnnotationLabels(t *testing.T) {
	t.Parallel()

	interfaces := []wgdump.Interface{
		{Name: "wg0", Peers: []wgdump.Peer{{PublicKey: "pk1"}, {PublicKey: "pk2"}}},
	}
	annotations := wgconf.AnnotationMap{
		"pk1": {
			FriendlyName: strptr("Alice"),
			FriendlyJSON: []wgconf.KV{{Key: "floor", Value: "2"}, {Key: "owner", Value: "alice"}},
		},
		"unmatched": {FriendlyName: strptr("ghost")},
	}

	snap := Aggregate(interfaces, annotations)

	// friendly_json keys first (already sorted), friendly_name last.
	want := []Label{
		{Name: "floor", Value: "2"},
		{Name: "owner", Value: "alice"},
		{Name: "friendly_name", Value: "Alice"},
	}
	if !reflect.DeepEqual(snap.Peers[0].Annotations, want) {
		t.Fatalf("annotations=%+v", snap.Peers[0].Annotations)
	}

	// Unmatched peers stay unadorned; unmatched annotations are dropped.
	if snap.Peers[1].Annotations != nil {
		t.Fatalf("pk2 annotations=%+v", snap.Peers[1].Annotations)
	}
}

func TestAggregate_SameKeyOnTwoInterfaces(t *testing.T) {
	t.Parallel()

	interfaces := []wgdump.Interface{
		{Name: "wg0", Peers: []wgdump.Peer{{PublicKey: "dup", SentBytes: 1}}},
		{Name: "wg1", Peers: []wgdump.Peer{{PublicKey: "dup", SentBytes: 2}}},
	}
	annotations := wgconf.AnnotationMap{"dup": {FriendlyName: strptr("shared")}}

	snap := Aggregate(interfaces, annotations)
	if len(snap.Peers) != 2 {
		t.Fatalf("peers=%d", len(snap.Peers))
	}
	for _, rec := range snap.Peers {
		if len(rec.Annotations) != 1 || rec.Annotations[0].Value != "shared" {
			t.Fatalf("annotations=%+v", rec.Annotations)
		}
	}
	if snap.Peers[0].SentBytes == snap.Peers[1].SentBytes {
		t.Fatalf("records collapsed")
	}
}
