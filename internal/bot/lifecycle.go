package bot

import (
	"context"

	"go.uber.org/zap"

	"moderator/internal/telegram"
)

// Start receives updates by long polling until ctx is done
func (b *Bot) Start(ctx context.Context, updater Updater) error {
	b.logger.Info("Bot started successfully. Waiting for updates...")
	return updater.Poll(ctx, b.HandleUpdate)
}

// StartWebhook registers webhookURL as the update endpoint
func (b *Bot) StartWebhook(ctx context.Context, updater Updater, webhookURL, secret string) error {
	if err := updater.SetWebhook(ctx, webhookURL, secret); err != nil {
		return err
	}

	b.logger.Info("Bot configured for webhook mode", zap.String("webhook_url", webhookURL))
	return nil
}

// Dispatch processes the update in the background so the webhook can answer at once
func (b *Bot) Dispatch(ctx context.Context, update telegram.Update) {
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		b.HandleUpdate(ctx, update)
	}()
}

// Wait blocks until every dispatched update has been processed
func (b *Bot) Wait() {
	b.inflight.Wait()
}
