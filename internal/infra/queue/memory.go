package queue

import (
	"context"

	"github.com/Meposy/GirlsBot/internal/domain"
)

// MemoryNoticeQueue — внутрипроцессная очередь уведомлений. Используется,
// когда AMQP не сконфигурирован; уведомления не переживают рестарт.
type MemoryNoticeQueue struct {
	ch chan domain.AdminNotice
}

// NewMemoryNoticeQueue создаёт очередь с буфером.
func NewMemoryNoticeQueue(size int) *MemoryNoticeQueue {
	if size <= 0 {
		size = 64
	}
	return &MemoryNoticeQueue{ch: make(chan domain.AdminNotice, size)}
}

// Enqueue кладёт уведомление; при переполненном буфере — молча отбрасывает,
// чтобы не блокировать путь подачи анкеты.
func (q *MemoryNoticeQueue) Enqueue(ctx context.Context, notice domain.AdminNotice) error {
	select {
	case q.ch <- notice:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// Pop блокирующе читает уведомление.
func (q *MemoryNoticeQueue) Pop(ctx context.Context) (domain.AdminNotice, error) {
	select {
	case notice := <-q.ch:
		return notice, nil
	case <-ctx.Done():
		return domain.AdminNotice{}, ctx.Err()
	}
}
