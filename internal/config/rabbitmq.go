package config

// RabbitMQConfig describes the broker used to hand password reset requests
// to the mail worker.  An empty URL disables delivery.
type RabbitMQConfig struct {
    URL             string
    EmailQueue      string
    Exchange        string
    DeadLetter      string
    ConsumerEnabled bool   // drain the queue into a local outbox log (development)
    ConsumerLogDir  string
}

func LoadRabbitMQConfig() RabbitMQConfig {
    return RabbitMQConfig{
        URL:             envStr("RABBITMQ_URL", ""),
        EmailQueue:      envStr("RABBITMQ_EMAIL_QUEUE", "email.password-reset"),
        Exchange:        envStr("RABBITMQ_EMAIL_EXCHANGE", "email-x"),
        DeadLetter:      envStr("RABBITMQ_EMAIL_DLX", "email-dlx"),
        ConsumerEnabled: envBool("RESET_CONSUMER_ENABLED", false),
        ConsumerLogDir:  envStr("RESET_CONSUMER_LOG_DIR", "logs"),
    }
}
