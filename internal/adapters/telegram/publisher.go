package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/Meposy/GirlsBot/internal/domain"
	"github.com/Meposy/GirlsBot/internal/infra/metrics"
)

// Publisher публикует анкеты в публичном канале и отзывает их.
// Таймаут запросов ограничен HTTP-клиентом бота.
type Publisher struct {
	bot       *tgbotapi.BotAPI
	channelID int64
	log       zerolog.Logger
}

// NewPublisher создаёт публикатор для указанного канала.
func NewPublisher(bot *tgbotapi.BotAPI, channelID int64, logger zerolog.Logger) *Publisher {
	return &Publisher{bot: bot, channelID: channelID, log: logger}
}

var _ domain.ChannelPublisher = (*Publisher)(nil)

// Publish отправляет анкету в канал и возвращает ID сообщения.
func (p *Publisher) Publish(ctx context.Context, ownerName string, profile domain.Profile) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	text := fmt.Sprintf("📢 Новая анкета от %s\n🔗 %s\n📝 %s", ownerName, profile.URL, profile.Comment)
	msg := tgbotapi.NewMessage(p.channelID, text)
	start := time.Now()
	sent, err := p.bot.Send(msg)
	metrics.ObserveNetworkRequest("telegram_channel", "publish", start, err)
	if err != nil {
		return 0, fmt.Errorf("публикация в канале: %w", err)
	}
	p.log.Debug().Int("message", sent.MessageID).Int64("owner", profile.Owner).Msg("анкета опубликована в канале")
	return sent.MessageID, nil
}

// Retract удаляет сообщение анкеты из канала.
func (p *Publisher) Retract(ctx context.Context, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	_, err := p.bot.Request(tgbotapi.NewDeleteMessage(p.channelID, messageID))
	metrics.ObserveNetworkRequest("telegram_channel", "retract", start, err)
	if err != nil {
		return fmt.Errorf("отзыв поста в канале: %w", err)
	}
	return nil
}
