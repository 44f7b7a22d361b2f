package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-queue/internal/directory"
)

// Ensurer is the slice of the queue service the generator needs.
type Ensurer interface {
	EnsureQueue(ctx context.Context, doctorID uuid.UUID, date time.Time) (*Queue, error)
}

// Generator materializes today's queue for every schedulable doctor. It
// runs once at process start and again on the daily schedule; EnsureQueue
// makes both runs idempotent.
type Generator struct {
	dir    directory.Repository
	queues Ensurer
	log    zerolog.Logger
	now    func() time.Time
}

func NewGenerator(dir directory.Repository, queues Ensurer, log zerolog.Logger) *Generator {
	return &Generator{
		dir:    dir,
		queues: queues,
		log:    log,
		now:    time.Now,
	}
}

// Run creates missing queues for today. A failure for one doctor is
// logged and skipped so the rest of the fleet still gets its queue.
func (g *Generator) Run(ctx context.Context) error {
	doctors, err := g.dir.ListSchedulableDoctors(ctx)
	if err != nil {
		return fmt.Errorf("list schedulable doctors: %w", err)
	}

	today := g.now()
	failed := 0

	for _, d := range doctors {
		if _, err := g.queues.EnsureQueue(ctx, d.ID, today); err != nil {
			failed++
			g.log.Error().Err(err).Stringer("doctor_id", d.ID).Msg("daily queue generation failed for doctor")
			continue
		}
	}

	g.log.Info().
		Int("doctors", len(doctors)).
		Int("failed", failed).
		Msg("daily queue generation complete")

	return nil
}
