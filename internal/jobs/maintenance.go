package jobs

import (
	"context"
	"time"

	"planning/internal/logging"

	"github.com/robfig/cron/v3"
)

// Purger removes expired rows it owns and reports how many.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Maintenance sweeps expired auth rows and old finished jobs.
type Maintenance struct {
	Auth      Purger
	Jobs      *Repo
	Retention time.Duration
	Now       func() time.Time
}

func (m *Maintenance) Sweep(ctx context.Context) {
	log := logging.Cron()

	if m.Auth != nil {
		n, err := m.Auth.PurgeExpired(ctx)
		if err != nil {
			log.Error().Err(err).Msg("purge expired auth rows failed")
		} else if n > 0 {
			log.Info().Int64("rows", n).Msg("purged expired auth rows")
		}
	}

	if m.Jobs != nil {
		retention := m.Retention
		if retention <= 0 {
			retention = 7 * 24 * time.Hour
		}
		now := time.Now
		if m.Now != nil {
			now = m.Now
		}
		n, err := m.Jobs.PurgeFinished(ctx, now().Add(-retention))
		if err != nil {
			log.Error().Err(err).Msg("purge finished jobs failed")
		} else if n > 0 {
			log.Info().Int64("rows", n).Msg("purged finished jobs")
		}
	}
}

// Schedule runs Sweep on spec (standard cron syntax or @every) until ctx is
// done. The returned cron is already started.
func (m *Maintenance) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { m.Sweep(ctx) }); err != nil {
		return nil, err
	}
	c.Start()
	logging.Cron().Info().Str("schedule", spec).Msg("maintenance scheduled")

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return c, nil
}
