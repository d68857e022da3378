package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/redis/go-redis/v9"

	"secret_deal/internal/domain/entity"
	"secret_deal/pkg/contextx"
)

var logger = contextx.LoggerFromContextOrDefault //nolint:gochecknoglobals

const dedupTTL = 24 * time.Hour

// TelegramBot шлёт оповещения о переходах протокола. Дедупликация живёт в
// redis, чтобы рестарт сервиса не рассылал уже отправленные алерты заново.
type TelegramBot struct {
	bot    *telego.Bot
	chatID int64
	rdb    *redis.Client
}

func NewTelegramBot(token string, chatID int64, rdb *redis.Client) (*TelegramBot, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	return &TelegramBot{
		bot:    bot,
		chatID: chatID,
		rdb:    rdb,
	}, nil
}

// Run запускает обработку событий из канала.
func (b *TelegramBot) Run(ctx context.Context, events <-chan entity.NegotiationEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := b.SendEvent(ctx, event); err != nil {
				logger(ctx).Error("failed to send event", "kind", event.Kind, "error", err)
			}
		}
	}
}

func (b *TelegramBot) SendEvent(ctx context.Context, event entity.NegotiationEvent) error {
	fresh, err := b.rdb.SetNX(ctx, dedupKey(event), 1, dedupTTL).Result()
	if err != nil {
		// Redis недоступен — лучше продублировать алерт, чем потерять.
		logger(ctx).Error("dedup check failed", "error", err)
	} else if !fresh {
		return nil
	}

	msg := tu.Message(
		tu.ID(b.chatID),
		formatEvent(event),
	).WithParseMode(telego.ModeHTML)

	if _, err := b.bot.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	return nil
}

// SendText отправляет простое текстовое сообщение.
func (b *TelegramBot) SendText(ctx context.Context, text string) error {
	msg := tu.Message(tu.ID(b.chatID), text)

	_, err := b.bot.SendMessage(ctx, msg)
	return err
}

func formatEvent(event entity.NegotiationEvent) string {
	switch event.Kind {
	case entity.EventOfferSubmitted:
		return fmt.Sprintf(
			"📨 <b>Sealed offer submitted</b>\nDeal: %d\nParty: <code>%s</code>",
			event.DealID, event.Party.Hex(),
		)
	case entity.EventOfferRevealed:
		return fmt.Sprintf(
			"🔓 <b>Offer revealed</b>\nDeal: %d\nParty: <code>%s</code>\nTitle: %s",
			event.DealID, event.Party.Hex(), event.Title,
		)
	case entity.EventAllRevealed:
		return fmt.Sprintf(
			"👀 <b>All offers revealed</b>\nDeal: %d\nDeal can now be finalized",
			event.DealID,
		)
	case entity.EventDealFinalized:
		return fmt.Sprintf(
			"✅ <b>Deal finalized</b>\nDeal: %d\nAgreement recorded on-chain",
			event.DealID,
		)
	default:
		return fmt.Sprintf("Deal %d: %s", event.DealID, event.Kind)
	}
}

func dedupKey(event entity.NegotiationEvent) string {
	return fmt.Sprintf("notify:%d:%s", event.DealID, event.Key())
}
