// Package queue defines message payloads exchanged over the message broker.
package queue

import "time"

// PasswordResetRequested is published when a user asks for a password reset.
// The recipient address travels in the "subject" header, not in the body.
type PasswordResetRequested struct {
    UserID             string    `json:"user_id"`
    ResetLink          string    `json:"reset_link"`
    PublishingDatetime time.Time `json:"publishing_datetime"`
}

// SubjectHeader is the AMQP header carrying the recipient email.
const SubjectHeader = "subject"
