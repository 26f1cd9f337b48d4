package queue

import (
    "fmt"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/user-management/internal/config"
)

// DeclareEmailTopology declares the email exchange, its dead-letter exchange
// and the durable quorum queue bound to it.  Every declaration is idempotent,
// so both the publisher and the consumer call it before use.
func DeclareEmailTopology(ch *amqp.Channel, cfg config.RabbitMQConfig) error {
    if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
        return fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
    }
    if err := ch.ExchangeDeclare(cfg.DeadLetter, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
        return fmt.Errorf("declare exchange %s: %w", cfg.DeadLetter, err)
    }
    if _, err := ch.QueueDeclare(cfg.EmailQueue, true, false, false, false, amqp.Table{
        "x-queue-type":           "quorum",
        "x-dead-letter-exchange": cfg.DeadLetter,
    }); err != nil {
        return fmt.Errorf("declare queue %s: %w", cfg.EmailQueue, err)
    }
    if err := ch.QueueBind(cfg.EmailQueue, cfg.EmailQueue, cfg.Exchange, false, nil); err != nil {
        return fmt.Errorf("bind queue %s: %w", cfg.EmailQueue, err)
    }
    return nil
}
