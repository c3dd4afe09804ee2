package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Meposy/GirlsBot/internal/domain"
)

// RabbitNoticeQueue — очередь уведомлений администратору поверх RabbitMQ.
// Переживает рестарты процесса: очередь durable, сообщения persistent.
type RabbitNoticeQueue struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	queue      string
	deliveries <-chan amqp.Delivery
}

// NewRabbitNoticeQueue подключается, объявляет очередь и сразу подписывает
// потребителя: поля не инициализируются лениво из Pop.
func NewRabbitNoticeQueue(amqpURL, queue string) (*RabbitNoticeQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("подключение к rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("открытие канала: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("объявление очереди: %w", err)
	}
	deliveries, err := ch.Consume(queue, "", true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("подписка на очередь: %w", err)
	}
	return &RabbitNoticeQueue{conn: conn, ch: ch, queue: queue, deliveries: deliveries}, nil
}

// Enqueue публикует уведомление.
func (q *RabbitNoticeQueue) Enqueue(ctx context.Context, notice domain.AdminNotice) error {
	payload, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return q.ch.PublishWithContext(pubCtx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
}

// Pop блокирующе читает уведомление из очереди.
func (q *RabbitNoticeQueue) Pop(ctx context.Context) (domain.AdminNotice, error) {
	for {
		select {
		case <-ctx.Done():
			return domain.AdminNotice{}, ctx.Err()
		case msg, ok := <-q.deliveries:
			if !ok {
				return domain.AdminNotice{}, errors.New("канал доставки закрыт")
			}
			var notice domain.AdminNotice
			if err := json.Unmarshal(msg.Body, &notice); err != nil {
				// Битое сообщение пропускаем, очередь не должна вставать.
				continue
			}
			return notice, nil
		}
	}
}

// Close закрывает канал и подключение.
func (q *RabbitNoticeQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		_ = q.conn.Close()
		return err
	}
	return q.conn.Close()
}
