package wgdump

import (
	"context"
	"fmt"
	"strings"
	"time"

	"wgexporter/internal/execx"
)

// Collector snapshots WireGuard state by running `wg show <iface> dump`.
// It is injectable for unit tests.
type Collector struct {
	r       execx.Runner
	sudo    bool
	timeout time.Duration
}

func NewCollector(r execx.Runner, sudo bool, timeout time.Duration) *Collector {
	if r == nil {
		r = execx.NewOSRunner()
	}
	return &Collector{r: r, sudo: sudo, timeout: timeout}
}

// Collect dumps each requested interface ("all" for everything) and returns
// the parsed snapshots concatenated in request order. Any execution or parse
// failure aborts the whole collection.
func (c *Collector) Collect(ctx context.Context, interfaces []string) ([]Interface, error) {
	if len(interfaces) == 0 {
		interfaces = []string{"all"}
	}

	var merged []Interface
	for _, iface := range interfaces {
		out, err := c.dump(ctx, iface)
		if err != nil {
			return nil, err
		}
		parsed, err := ParseDump(out)
		if err != nil {
			return nil, fmt.Errorf("wg show %s dump: %w", iface, err)
		}
		merged = append(merged, parsed...)
	}
	return merged, nil
}

func (c *Collector) dump(ctx context.Context, iface string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	name := "wg"
	args := []string{"show", iface, "dump"}
	if c.sudo {
		name = "sudo"
		args = append([]string{"wg"}, args...)
	}

	out, err := c.r.Output(ctx, name, args...)
	if err != nil {
		return "", fmt.Errorf("wg show %s dump: %w", iface, err)
	}

	// `wg show all dump` prefixes every row with the interface name but
	// `wg show <iface> dump` omits the column. Prepend it so both outputs
	// share one grammar.
	if iface != "all" {
		out = prependInterface(iface, out)
	}
	return out, nil
}

func prependInterface(iface, dump string) string {
	var b strings.Builder
	for _, line := range strings.Split(dump, "\n") {
		if line == "" {
			continue
		}
		b.WriteString(iface)
		b.WriteByte('\t')
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
