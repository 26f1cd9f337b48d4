package service

import (
    "context"
    "encoding/json"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/user-management/internal/config"
    "github.com/iliyamo/user-management/internal/logging"
    "github.com/iliyamo/user-management/internal/model"
    "github.com/iliyamo/user-management/internal/queue"
)

// QueuePublisher delivers password reset requests to the email queue on
// RabbitMQ.  Each publish dials its own connection; reset requests are rare
// enough that a pooled connection is not worth its reconnect handling.
type QueuePublisher struct {
    cfg config.RabbitMQConfig
    log logging.Logger
    now func() time.Time
}

func NewQueuePublisher(cfg config.RabbitMQConfig, log logging.Logger) *QueuePublisher {
    return &QueuePublisher{cfg: cfg, log: log.With("component", "queue-publisher"), now: time.Now}
}

// NotifyPasswordReset publishes a queue.PasswordResetRequested for u with the
// recipient in the "subject" header.  Messages are persistent.
func (p *QueuePublisher) NotifyPasswordReset(ctx context.Context, u model.User, link string) error {
    body, err := resetMessage(u, link, p.now())
    if err != nil {
        return err
    }

    conn, err := amqp.Dial(p.cfg.URL)
    if err != nil {
        p.log.Error(ctx, "rabbitmq dial failed", "error", err)
        return fmt.Errorf("rabbitmq dial: %w", err)
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("rabbitmq channel: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := queue.DeclareEmailTopology(ch, p.cfg); err != nil {
        return err
    }
    if err := ch.PublishWithContext(ctx, p.cfg.Exchange, p.cfg.EmailQueue, false, false, body); err != nil {
        p.log.Error(ctx, "rabbitmq publish failed", "error", err)
        return fmt.Errorf("rabbitmq publish: %w", err)
    }
    p.log.Info(ctx, "password reset queued", "user_id", u.ID)
    return nil
}

func resetMessage(u model.User, link string, now time.Time) (amqp.Publishing, error) {
    body, err := json.Marshal(queue.PasswordResetRequested{
        UserID:             u.ID,
        ResetLink:          link,
        PublishingDatetime: now.UTC(),
    })
    if err != nil {
        return amqp.Publishing{}, fmt.Errorf("marshal reset event: %w", err)
    }
    return amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    now.UTC(),
        Headers:      amqp.Table{queue.SubjectHeader: u.Email},
        Body:         body,
    }, nil
}
