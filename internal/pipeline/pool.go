// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"

	"github.com/sourcegraph/conc/pool"

	"github.com/pdiddy/citeconv/internal/archive"
)

// runPooled submits every pending member to a bounded pool. Completions
// are funnelled to a single recorder goroutine, the only writer of the
// progress state, in whatever order they finish.
func (c *Controller) runPooled(ctx context.Context, a archive.Archive, pending []archive.Member, sum *Summary) error {
	outcomes := make(chan memberOutcome)
	recorded := make(chan error, 1)

	go func() {
		var fatal error
		for out := range outcomes {
			if fatal != nil {
				continue
			}
			fatal = c.record(a, out, sum)
		}
		recorded <- fatal
	}()

	p := pool.New().WithContext(ctx).WithMaxGoroutines(c.cfg.Workers)
	for _, m := range pending {
		if ctx.Err() != nil {
			break
		}
		p.Go(func(ctx context.Context) error {
			outcomes <- c.process(ctx, m)
			return nil
		})
	}
	_ = p.Wait()
	close(outcomes)

	if err := <-recorded; err != nil {
		return err
	}
	return ctx.Err()
}
