// Package rabbitmq публикует доменные события сервиса в RabbitMQ.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
)

// Ключи маршрутизации доменных событий.
const (
	RoutingUserRegistered    = "user.registered"
	RoutingPurchaseCompleted = "purchase.completed"
)

// UserRegistered публикуется после создания пользователя.
type UserRegistered struct {
	UserID       string    `json:"userId"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// PurchaseCompleted публикуется после успешной оплаты.
type PurchaseCompleted struct {
	PurchaseID       string  `json:"purchaseId"`
	UserID           string  `json:"userId"`
	ProductType      string  `json:"productType"`
	UserAssessmentID *string `json:"userAssessmentId,omitempty"`
	FinalPrice       int64   `json:"finalPrice"`
}

// PublishMessage публикует сообщение в RabbitMQ.
func PublishMessage(ch *amqp.Channel, exchange string, routingkey string, message any) error {
	const op = "rabbitmq.PublishMessage"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = ch.Publish(
		exchange,
		routingkey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Publisher публикует события в один exchange. Publisher без канала ничего
// не отправляет, так сервис работает без брокера.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// NewPublisher подключается к брокеру по url. Пустой url возвращает
// выключенный Publisher.
func NewPublisher(url, exchange string) (*Publisher, error) {
	const op = "rabbitmq.NewPublisher"
	if url == "" {
		return &Publisher{exchange: exchange}, nil
	}

	conn, err := Connect(url, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, err := SetupExchange(conn, exchange)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// Publish отправляет событие с ключом routingKey.
func (p *Publisher) Publish(ctx context.Context, routingKey string, event any) error {
	if p.ch == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return PublishMessage(p.ch, p.exchange, routingKey, event)
}

// Close закрывает канал и соединение.
func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	_ = p.ch.Close()
	return p.conn.Close()
}
