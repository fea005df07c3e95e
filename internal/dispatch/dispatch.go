package dispatch

import (
	"context"
	"strings"

	"github.com/stone-age-io/nbtoff/internal/netbios"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxConcurrent is the fan-out cap. It is a throttle, not a
// correctness requirement.
const DefaultMaxConcurrent = 10

// Transport is the remote-execution channel: authenticated command dispatch
// to one named host. Implementations report per-host failures through the
// error return; they never affect other hosts.
type Transport interface {
	Execute(ctx context.Context, host string) (netbios.Result, error)
}

// LocalRunner executes the enforcement action in-process on this machine
type LocalRunner func(ctx context.Context) netbios.Result

// Dispatcher fans the enforcement action out over a host list
type Dispatcher struct {
	Transport     Transport
	Local         LocalRunner
	LocalHost     string // this machine's name, for the in-process short cut
	MaxConcurrent int    // 0 means DefaultMaxConcurrent
	Logger        *zap.Logger
}

// Run executes the action against every host and collects the outcomes.
// A single host naming this machine runs in-process without touching the
// transport. Result order does not follow input order. One host's failure
// never aborts the rest; each failure is folded into that host's Result.
func (d *Dispatcher) Run(ctx context.Context, hosts []string) []netbios.Result {
	if len(hosts) == 0 {
		return nil
	}

	if len(hosts) == 1 && strings.EqualFold(hosts[0], d.LocalHost) {
		d.Logger.Info("Single local target, running in-process",
			zap.String("host", hosts[0]))
		return []netbios.Result{d.Local(ctx)}
	}

	limit := d.MaxConcurrent
	if limit <= 0 {
		limit = DefaultMaxConcurrent
	}

	d.Logger.Info("Dispatching to remote hosts",
		zap.Int("hosts", len(hosts)),
		zap.Int("max_concurrent", limit))

	results := make([]netbios.Result, len(hosts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, host := range hosts {
		g.Go(func() error {
			res, err := d.Transport.Execute(ctx, host)
			if err != nil {
				d.Logger.Warn("Remote execution failed",
					zap.String("host", host),
					zap.Error(err))
				res = netbios.Result{Host: host, Err: err.Error()}
			}
			results[i] = res
			return nil
		})
	}
	g.Wait()

	return results
}
