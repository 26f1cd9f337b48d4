package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/user-management/internal/config"
    "github.com/iliyamo/user-management/internal/logging"
)

// ResetLogFile is the outbox file written by the reset consumer.
const ResetLogFile = "password_reset.log"

// StartResetConsumer drains the password reset queue into
// <ConsumerLogDir>/password_reset.log, standing in for a mail sender in
// development.  It reconnects with exponential backoff and returns only when
// ctx is cancelled.  Undecodable messages are rejected without requeue so
// they land in the dead-letter exchange.
func StartResetConsumer(ctx context.Context, cfg config.RabbitMQConfig, log logging.Logger) error {
    log = log.With("component", "reset-consumer")
    backoff := time.Second
    for {
        conn, err := amqp.Dial(cfg.URL)
        if err != nil {
            log.Warn(ctx, "dial broker failed", "error", err, "retry_in", backoff.String())
            select {
            case <-ctx.Done():
                return ctx.Err()
            case <-time.After(backoff):
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = consumeLoop(ctx, conn, cfg, log)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Warn(ctx, "consume loop ended, reconnecting", "error", err)
        select {
        case <-ctx.Done():
            return ctx.Err()
        case <-time.After(2 * time.Second):
        }
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, cfg config.RabbitMQConfig, log logging.Logger) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(3, 0, false); err != nil {
        log.Warn(ctx, "set QoS failed", "error", err)
    }
    if err := DeclareEmailTopology(ch, cfg); err != nil {
        return err
    }

    msgs, err := ch.Consume(cfg.EmailQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }
    // Closing the channel ends the deliveries range below.
    stop := context.AfterFunc(ctx, func() { _ = ch.Close() })
    defer stop()
    log.Info(ctx, "consuming", "queue", cfg.EmailQueue)

    for d := range msgs {
        subject, _ := d.Headers[SubjectHeader].(string)
        if err := handleMessage(cfg.ConsumerLogDir, subject, d.Body); err != nil {
            log.Error(ctx, "handle message failed", "error", err)
            _ = d.Nack(false, false)
            continue
        }
        _ = d.Ack(false)
    }
    return errors.New("deliveries channel closed")
}

// handleMessage appends one line per reset request to the outbox file.
func handleMessage(dir, subject string, body []byte) error {
    var ev PasswordResetRequested
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.UserID == "" || ev.ResetLink == "" {
        return errors.New("incomplete reset event")
    }
    if err := os.MkdirAll(dir, 0o755); err != nil {
        return fmt.Errorf("mkdir %s: %w", dir, err)
    }
    f, err := os.OpenFile(filepath.Join(dir, ResetLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    line := fmt.Sprintf("[%s] Password reset requested | user_id=%s | to=%q | link=%s\n",
        ev.PublishingDatetime.UTC().Format(time.RFC3339), ev.UserID, subject, ev.ResetLink)
    if _, err := f.WriteString(line); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}
