// Package wgdump parses the tab-separated output of `wg show <iface> dump`
// into structured interface and peer records.
package wgdump

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// none is the sentinel wg prints for absent preshared keys, endpoints and
// allowed-ip lists.
const none = "(none)"

// AllowedIP is one allowed-ips entry, split at the last slash. Prefix is kept
// as text so an entry without a prefix length survives a render round trip.
type AllowedIP struct {
	Address string
	Prefix  string
}

func (a AllowedIP) String() string {
	if a.Prefix == "" {
		return a.Address
	}
	return a.Address + "/" + a.Prefix
}

// Endpoint is a peer's last known remote address.
type Endpoint struct {
	Address string
	Port    uint16
}

// Peer is one 9-field peer row.
type Peer struct {
	PublicKey       string
	HasPresharedKey bool
	Endpoint        *Endpoint
	AllowedIPs      []AllowedIP
	LatestHandshake uint64
	ReceivedBytes   uint64
	SentBytes       uint64
	KeepaliveSec    uint64
}

// Interface is one 5-field header row plus the peer rows that follow it.
type Interface struct {
	Name       string
	PublicKey  string
	ListenPort uint16
	FwMark     string
	Peers      []Peer
}

// ParseError is a fatal dump grammar violation. The whole parse fails; no
// partial result is returned.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("dump parse: line %d: %s", e.Line, e.Reason)
}

// ParseDump parses a full `wg show all dump` text. Interfaces come back in
// first-appearance order, peers in row order. Empty input yields nil.
func ParseDump(text string) ([]Interface, error) {
	var (
		interfaces []Interface
		index      = map[string]int{}
	)

	for i, line := range strings.Split(text, "\n") {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")

		switch len(fields) {
		case 5:
			iface, err := parseInterfaceRow(fields)
			if err != nil {
				return nil, &ParseError{Line: i + 1, Reason: err.Error()}
			}
			if at, ok := index[iface.Name]; ok {
				peers := interfaces[at].Peers
				iface.Peers = peers
				interfaces[at] = iface
			} else {
				index[iface.Name] = len(interfaces)
				interfaces = append(interfaces, iface)
			}
		case 9:
			name := fields[0]
			peer, err := parsePeerRow(fields)
			if err != nil {
				return nil, &ParseError{Line: i + 1, Reason: err.Error()}
			}
			at, ok := index[name]
			if !ok {
				// Peer row before its header. wg never emits this,
				// but keep the record rather than guess at intent.
				at = len(interfaces)
				index[name] = at
				interfaces = append(interfaces, Interface{Name: name})
			}
			interfaces[at].Peers = append(interfaces[at].Peers, peer)
		default:
			return nil, &ParseError{Line: i + 1, Reason: fmt.Sprintf("expected 5 or 9 fields, got %d", len(fields))}
		}
	}

	return interfaces, nil
}

func parseInterfaceRow(fields []string) (Interface, error) {
	port, err := strconv.ParseUint(fields[3], 10, 16)
	if err != nil {
		return Interface{}, fmt.Errorf("listen port %q: not a number", fields[3])
	}
	fwmark := fields[4]
	if fwmark == "off" {
		fwmark = ""
	}
	return Interface{
		Name:       fields[0],
		PublicKey:  fields[1],
		ListenPort: uint16(port),
		FwMark:     fwmark,
	}, nil
}

func parsePeerRow(fields []string) (Peer, error) {
	peer := Peer{
		PublicKey:       fields[1],
		HasPresharedKey: fields[2] != none && fields[2] != "",
	}

	if fields[3] != none {
		ep, err := parseEndpoint(fields[3])
		if err != nil {
			return Peer{}, err
		}
		peer.Endpoint = ep
	}

	if fields[4] != none && fields[4] != "" {
		for _, entry := range strings.Split(fields[4], ",") {
			peer.AllowedIPs = append(peer.AllowedIPs, parseAllowedIP(entry))
		}
	}

	var err error
	if peer.LatestHandshake, err = strconv.ParseUint(fields[5], 10, 64); err != nil {
		return Peer{}, fmt.Errorf("latest handshake %q: not a number", fields[5])
	}
	if peer.ReceivedBytes, err = strconv.ParseUint(fields[6], 10, 64); err != nil {
		return Peer{}, fmt.Errorf("received bytes %q: not a number", fields[6])
	}
	if peer.SentBytes, err = strconv.ParseUint(fields[7], 10, 64); err != nil {
		return Peer{}, fmt.Errorf("sent bytes %q: not a number", fields[7])
	}

	if ka := fields[8]; ka != "off" && ka != none {
		if peer.KeepaliveSec, err = strconv.ParseUint(ka, 10, 64); err != nil {
			return Peer{}, fmt.Errorf("persistent keepalive %q: not a number", ka)
		}
	}

	return peer, nil
}

// parseEndpoint splits host:port. Link-local IPv6 endpoints carry a zone
// ("[fe80::1%eth0]:51820"); the zone is dropped from the exported address.
func parseEndpoint(s string) (*Endpoint, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return nil, fmt.Errorf("endpoint %q: %v", s, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("endpoint port %q: not a number", portStr)
	}
	if at := strings.IndexByte(host, '%'); at >= 0 {
		host = host[:at]
	}
	return &Endpoint{Address: host, Port: uint16(port)}, nil
}

func parseAllowedIP(entry string) AllowedIP {
	if at := strings.LastIndexByte(entry, '/'); at >= 0 {
		return AllowedIP{Address: entry[:at], Prefix: entry[at+1:]}
	}
	return AllowedIP{Address: entry}
}
