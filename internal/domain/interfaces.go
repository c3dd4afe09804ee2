package domain

import "context"

// SnapshotStore хранит один сериализованный снимок состояния.
type SnapshotStore interface {
	Save(ctx context.Context, data []byte) error
	// Load возвращает (nil, nil), если снимка ещё нет.
	Load(ctx context.Context) ([]byte, error)
}

// ChannelPublisher публикует анкеты в публичном канале и по возможности
// отзывает их. Retract — best-effort: его сбой не откатывает удаление.
type ChannelPublisher interface {
	Publish(ctx context.Context, ownerName string, p Profile) (messageID int, err error)
	Retract(ctx context.Context, messageID int) error
}

// NoticeQueue — очередь уведомлений администратору.
type NoticeQueue interface {
	Enqueue(ctx context.Context, notice AdminNotice) error
	// Pop блокирующе читает уведомление; возвращает ошибку контекста при отмене.
	Pop(ctx context.Context) (AdminNotice, error)
}
