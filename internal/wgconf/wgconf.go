// Package wgconf extracts per-peer annotations from WireGuard configuration
// files. The annotations live in comments inside [Peer] blocks:
//
//	[Peer]
//	# friendly_name = bedroom laptop
//	# friendly_json = {"owner": "alice", "floor": 2}
//	PublicKey = qnoxQoQI8KKMupLnSSureORV0wMmH7JryZNsmGVISzU=
//
// WireGuard itself never sees these comments, so they are free metadata.
package wgconf

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

// KV is one friendly_json entry with its value already coerced to a string.
type KV struct {
	Key   string
	Value string
}

// Annotation is the committed decoration for one public key. FriendlyName
// and FriendlyJSON are independent; both may be present at once.
type Annotation struct {
	FriendlyName *string
	FriendlyJSON []KV // sorted by key
}

// AnnotationMap maps a peer public key to its annotation.
type AnnotationMap map[string]Annotation

// Parse scans one or more config texts in order and returns the merged
// annotation map. Later texts overwrite earlier ones for colliding keys.
// Parse never fails: malformed friendly_json values are dropped with a
// warning and blocks without a PublicKey are discarded silently.
func Parse(texts ...string) AnnotationMap {
	out := AnnotationMap{}
	for _, text := range texts {
		parseText(text, out)
	}
	return out
}

type scanState int

const (
	searching scanState = iota
	inPeerBlock
)

// pending accumulates one [Peer] block until its boundary.
type pending struct {
	publicKey    string
	friendlyName *string
	friendlyJSON []KV
}

func (p *pending) commit(out AnnotationMap) {
	if p.publicKey == "" {
		return
	}
	out[p.publicKey] = Annotation{
		FriendlyName: p.friendlyName,
		FriendlyJSON: p.friendlyJSON,
	}
}

func parseText(text string, out AnnotationMap) {
	state := searching
	var cur pending

	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)

		if strings.HasPrefix(line, "[") {
			// Section boundary: commit whatever block was open.
			if state == inPeerBlock {
				cur.commit(out)
			}
			if line == "[Peer]" {
				state = inPeerBlock
				cur = pending{}
			} else {
				state = searching
			}
			continue
		}

		if state != inPeerBlock {
			continue
		}

		if strings.HasPrefix(line, "#") {
			key, value, ok := splitComment(line)
			if !ok {
				continue
			}
			switch key {
			case "friendly_name":
				v := value
				cur.friendlyName = &v
			case "friendly_json":
				kvs, err := parseFriendlyJSON(value)
				if err != nil {
					slog.Warn("wgconf: dropping malformed friendly_json", "line", i+1, "err", err)
					continue
				}
				cur.friendlyJSON = kvs
			}
			continue
		}

		if key, value, ok := splitAssignment(line); ok {
			if strings.EqualFold(key, "PublicKey") && cur.publicKey == "" {
				cur.publicKey = stripInlineComment(value)
			}
		}
	}

	if state == inPeerBlock {
		cur.commit(out)
	}
}

// splitComment turns "# friendly_name = value" into ("friendly_name",
// "value"). Comments without an equals sign carry no annotation.
func splitComment(line string) (key, value string, ok bool) {
	rest := strings.TrimPrefix(line, "#")
	at := strings.IndexByte(rest, '=')
	if at < 0 {
		return "", "", false
	}
	return strings.TrimSpace(rest[:at]), strings.TrimSpace(rest[at+1:]), true
}

func splitAssignment(line string) (key, value string, ok bool) {
	at := strings.IndexByte(line, '=')
	if at < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:at]), strings.TrimSpace(line[at+1:]), true
}

func stripInlineComment(value string) string {
	if at := strings.IndexByte(value, '#'); at >= 0 {
		value = value[:at]
	}
	return strings.TrimSpace(value)
}

// parseFriendlyJSON decodes a flat JSON object and coerces every value to a
// string. Nested objects, arrays and nulls make the whole value malformed.
//
// Numbers are canonicalized: integers render base-10 without decimals,
// everything else goes through strconv.FormatFloat(f, 'g', -1, 64), the
// shortest text that round-trips the float.
func parseFriendlyJSON(value string) ([]KV, error) {
	dec := json.NewDecoder(strings.NewReader(value))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after object")
	}

	kvs := make([]KV, 0, len(obj))
	for k, v := range obj {
		s, err := coerceScalar(v)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		kvs = append(kvs, KV{Key: k, Value: s})
	}
	sort.Slice(kvs, func(i, j int) bool { return kvs[i].Key < kvs[j].Key })
	return kvs, nil
}

func coerceScalar(v any) (string, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case json.Number:
		return coerceNumber(v), nil
	default:
		return "", fmt.Errorf("unsupported value of type %T", v)
	}
}

func coerceNumber(n json.Number) string {
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		return strconv.FormatInt(i, 10)
	}
	if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
		return strconv.FormatUint(u, 10)
	}
	f, err := n.Float64()
	if err != nil {
		// The decoder already vetted the literal; keep it as written.
		return n.String()
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
