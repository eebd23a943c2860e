package handlers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"voicebot/internal/assignment"
	"voicebot/internal/export"
	"voicebot/internal/i18n"
	"voicebot/internal/importer"
	"voicebot/internal/messenger"
	"voicebot/internal/middleware"
	"voicebot/internal/stats"
	"voicebot/pkg/tasks"
)

// BotDeps are the collaborators of a Bot. Enqueuer is optional: without it
// exports are built inline instead of on the worker.
type BotDeps struct {
	Engine    *assignment.Engine
	Sessions  *assignment.Sessions
	Stats     *stats.Aggregator
	Items     importer.ItemCreator
	Exporter  *export.Exporter
	Enqueuer  tasks.TaskEnqueuer
	Messenger messenger.Messenger
	Localizer *i18n.Localizer
	Admins    middleware.AllowList
	Limiter   *middleware.RateLimiter
	Location  *time.Location

	Concurrency int
}

// Bot turns chat events into calls on the task engine and the other components.
type Bot struct {
	engine      *assignment.Engine
	sessions    *assignment.Sessions
	stats       *stats.Aggregator
	items       importer.ItemCreator
	exporter    *export.Exporter
	asynqClient tasks.TaskEnqueuer
	messenger   messenger.Messenger
	tr          *i18n.Localizer
	admins      middleware.AllowList
	limiter     *middleware.RateLimiter
	loc         *time.Location
	concurrency int
	now         func() time.Time
}

func NewBot(d BotDeps) *Bot {
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	concurrency := d.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Bot{
		engine:      d.Engine,
		sessions:    d.Sessions,
		stats:       d.Stats,
		items:       d.Items,
		exporter:    d.Exporter,
		asynqClient: d.Enqueuer,
		messenger:   d.Messenger,
		tr:          d.Localizer,
		admins:      d.Admins,
		limiter:     d.Limiter,
		loc:         loc,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Run handles events until the channel closes or ctx is done, with at most
// Concurrency events in flight. Handler failures are logged and never stop the loop.
func (b *Bot) Run(ctx context.Context, events <-chan messenger.Event) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for {
		select {
		case <-ctx.Done():
			return g.Wait()
		case ev, ok := <-events:
			if !ok {
				return g.Wait()
			}
			g.Go(func() error {
				if err := b.Handle(gctx, ev); err != nil {
					log.Error().Err(err).
						Int64("chat_id", ev.ChatID).
						Str("kind", ev.Kind.String()).
						Msg("Failed to handle event")
				}
				return nil
			})
		}
	}
}
