package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	dlxExchangeName  = "bulk_dispatch.dlx"
	connectionName   = "bulk-dispatch"
	reconnectBackoff = time.Second
	connectTimeout   = 15 * time.Second
	maxBackoff       = 30 * time.Second
	heartbeat        = 10 * time.Second

	// Unconsumed events expire into the DLQ after a day.
	eventTTLMillis int32 = 24 * 60 * 60 * 1000
)

// RabbitMQ owns the broker connection used to publish dispatch events. The
// event topology is declared once per connection.
type RabbitMQ struct {
	url string

	mu          sync.RWMutex
	reconnectMu sync.Mutex
	conn        *amqp.Connection
	declared    bool
}

func NewRabbitMQ(ctx context.Context, url string) (*RabbitMQ, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("rabbitmq url is required")
	}

	r := &RabbitMQ{url: url}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	ch, err := r.channel(ctx)
	if err != nil {
		return nil, err
	}
	_ = ch.Close()

	return r, nil
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.declared = false
	r.mu.Unlock()

	if conn == nil || conn.IsClosed() {
		return nil
	}

	return conn.Close()
}

// IsConnected reports whether the broker connection is open.
func (r *RabbitMQ) IsConnected() bool {
	if r == nil {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.conn != nil && !r.conn.IsClosed()
}

// channel opens a fresh channel, reconnecting once if the connection dropped.
func (r *RabbitMQ) channel(ctx context.Context) (*amqp.Channel, error) {
	conn, err := r.connection(ctx)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		r.markBroken(conn)
		if conn, err = r.connection(ctx); err != nil {
			return nil, err
		}
		if ch, err = conn.Channel(); err != nil {
			return nil, fmt.Errorf("failed to create rabbitmq channel after reconnect: %w", err)
		}
	}

	if err := r.ensureTopology(conn, ch); err != nil {
		_ = ch.Close()
		return nil, err
	}

	return ch, nil
}

func (r *RabbitMQ) connection(ctx context.Context) (*amqp.Connection, error) {
	r.mu.RLock()
	conn := r.conn
	r.mu.RUnlock()

	if conn != nil && !conn.IsClosed() {
		return conn, nil
	}

	return r.reconnectWithBackoff(ctx)
}

func (r *RabbitMQ) markBroken(conn *amqp.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == conn {
		r.conn = nil
		r.declared = false
	}
	_ = conn.Close()
}

func (r *RabbitMQ) reconnectWithBackoff(ctx context.Context) (*amqp.Connection, error) {
	r.reconnectMu.Lock()
	defer r.reconnectMu.Unlock()

	r.mu.RLock()
	conn := r.conn
	r.mu.RUnlock()
	if conn != nil && !conn.IsClosed() {
		return conn, nil
	}

	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName(connectionName)

	wait := reconnectBackoff
	for {
		newConn, err := amqp.DialConfig(r.url, amqp.Config{
			Heartbeat:  heartbeat,
			Properties: props,
		})
		if err == nil {
			r.mu.Lock()
			r.conn = newConn
			r.declared = false
			r.mu.Unlock()
			return newConn, nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("rabbitmq connect canceled: %w (last error: %v)", ctx.Err(), err)
		case <-timer.C:
		}

		wait = min(wait*2, maxBackoff)
	}
}

func (r *RabbitMQ) ensureTopology(conn *amqp.Connection, ch *amqp.Channel) error {
	r.mu.RLock()
	done := r.declared && r.conn == conn
	r.mu.RUnlock()
	if done {
		return nil
	}

	if err := declareTopology(ch); err != nil {
		return err
	}

	r.mu.Lock()
	if r.conn == conn {
		r.declared = true
	}
	r.mu.Unlock()
	return nil
}

func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(dlxExchangeName, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dlx exchange: %w", err)
	}

	for _, queueName := range eventQueues {
		dlqName := DLQName(queueName)

		if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare dlq %q: %w", dlqName, err)
		}
		if err := ch.QueueBind(dlqName, queueName, dlxExchangeName, false, nil); err != nil {
			return fmt.Errorf("failed to bind dlq %q: %w", dlqName, err)
		}
		if _, err := ch.QueueDeclare(queueName, true, false, false, false, queueArgs(queueName)); err != nil {
			return fmt.Errorf("failed to declare queue %q: %w", queueName, err)
		}
	}

	return nil
}

// queueArgs dead-letters rejected or expired events to the queue's DLQ.
func queueArgs(queueName string) amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    dlxExchangeName,
		"x-dead-letter-routing-key": queueName,
		"x-message-ttl":             eventTTLMillis,
	}
}
