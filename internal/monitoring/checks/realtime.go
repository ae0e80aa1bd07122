package checks

import (
	"context"

	"github.com/charlesng35/studyhall/internal/monitoring"
)

// LoopRunner submits work to the realtime event loop.
type LoopRunner interface {
	Do(ctx context.Context, fn func()) error
}

// EventLoop probes that the realtime event loop still drains its queue. A loop that does
// not answer before the probe deadline is reported degraded; a stopped loop is down.
func EventLoop(loop LoopRunner) monitoring.Check {
	return monitoring.NewCheck("event_loop", func(ctx context.Context) monitoring.ProbeResult {
		if loop == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "event loop not configured"}
		}
		return monitoring.ResultFromError(loop.Do(ctx, func() {}))
	})
}
