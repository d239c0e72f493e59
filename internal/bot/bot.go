package bot

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"photo_sync_bot/internal/pkg/pipeline"
)

// Bot runs the Telegram intake loop. Updates are converted to media
// items and fed through a bounded queue into a worker pool, so a burst
// of messages in a busy group backpressures intake instead of growing
// memory without bound.
type Bot struct {
	api     *tgbotapi.BotAPI
	orch    *pipeline.Orchestrator
	queue   chan pipeline.MediaItem
	workers int
	wg      sync.WaitGroup
}

func New(api *tgbotapi.BotAPI, orch *pipeline.Orchestrator, workers, queueSize int) *Bot {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Bot{
		api:     api,
		orch:    orch,
		queue:   make(chan pipeline.MediaItem, queueSize),
		workers: workers,
	}
}

// Run polls for updates until ctx is canceled, then drains the queue
// and waits for in-flight pipeline runs to reach a consistent state.
func (b *Bot) Run(ctx context.Context) {
	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go b.worker()
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "my_chat_member"}

	updates := b.api.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	log.Info().Str("account", b.api.Self.UserName).Msg("Bot started, syncing group media")

	for update := range updates {
		b.dispatch(update)
	}

	close(b.queue)
	b.wg.Wait()
	log.Info().Msg("Bot stopped")
}

func (b *Bot) dispatch(update tgbotapi.Update) {
	if update.MyChatMember != nil {
		b.handleMembership(update.MyChatMember)
		return
	}
	if update.Message == nil {
		return
	}

	item, ok := mediaItemFromMessage(update.Message)
	if !ok {
		if chat := update.Message.Chat; chat != nil && (chat.IsGroup() || chat.IsSuperGroup()) {
			log.Debug().
				Int64("group_id", chat.ID).
				Int("message_id", update.Message.MessageID).
				Str("outcome", pipeline.SkippedNoMedia.String()).
				Msg("Message carries no supported media")
		}
		return
	}
	b.queue <- item
}

func (b *Bot) handleMembership(change *tgbotapi.ChatMemberUpdated) {
	status := change.NewChatMember.Status
	if status != "left" && status != "kicked" {
		return
	}
	log.Info().
		Int64("chat_id", change.Chat.ID).
		Str("title", change.Chat.Title).
		Str("status", status).
		Msg("Bot removed from group")
	b.orch.Deauthorize(change.Chat.ID)
}

// Workers run items on a fresh context: a canceled intake must not
// abort a pipeline run between its upload and its dedup record.
func (b *Bot) worker() {
	defer b.wg.Done()
	for item := range b.queue {
		outcome, err := b.orch.Handle(context.Background(), item)

		entry := log.Info()
		if err != nil {
			entry = log.Error().Err(err)
		}
		entry.
			Int64("group_id", item.GroupID).
			Int64("message_id", item.MessageID).
			Str("kind", item.Kind.String()).
			Str("outcome", outcome.String()).
			Msg("Pipeline run finished")
	}
}
