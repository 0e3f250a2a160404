package coordinator

import (
	"context"
	"time"
)

// PollLocation compares current() with the last known location every
// interval and reports a navigation when it differs. It blocks until ctx is
// done. A zero interval uses the configured poll interval.
func (c *Coordinator) PollLocation(ctx context.Context, interval time.Duration, current func() string) {
	if interval <= 0 {
		interval = c.windows.PollInterval
	}
	last := c.Location().String()

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			loc := current()
			if loc == "" || loc == last {
				continue
			}
			last = loc
			fc, err := c.Location().Relocate(loc)
			if err != nil {
				continue
			}
			c.OnNavigation(fc)
		}
	}
}
