package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Meposy/GirlsBot/internal/domain"
)

const defaultRetryDelay = time.Second

// ConsumeNotices читает очередь уведомлений и передаёт их deliver. Ошибка
// чтения не роняет цикл: повтор после паузы retryDelay, чтобы при закрытом
// канале доставки потребитель не крутился вхолостую.
func ConsumeNotices(ctx context.Context, notices domain.NoticeQueue, deliver func(domain.AdminNotice) error, retryDelay time.Duration, logger zerolog.Logger) {
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	for {
		notice, err := notices.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error().Err(err).Msg("чтение очереди уведомлений")
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay):
			}
			continue
		}
		if err := deliver(notice); err != nil {
			logger.Error().Err(err).Msg("уведомление администратору не доставлено")
		}
	}
}
