package agenda

import (
	"context"

	"github.com/robfig/cron/v3"

	appLog "evlist/internal/log"
)

// Watch runs fn immediately and then on the given cron schedule until
// ctx is canceled. Each tick re-samples "now", so the window tracks
// wall-clock time across runs.
func Watch(ctx context.Context, cronSpec string, fn func()) error {
	c := cron.New()
	if _, err := c.AddFunc(cronSpec, fn); err != nil {
		return err
	}

	fn()

	c.Start()
	appLog.Info("watch started", "schedule", cronSpec)

	<-ctx.Done()

	// Let an in-flight tick finish before returning.
	stopCtx := c.Stop()
	<-stopCtx.Done()

	appLog.Info("watch stopped")
	return nil
}
