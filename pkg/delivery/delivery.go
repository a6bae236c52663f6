// Package delivery defines the outbound message channels used by workflow
// actions and batch campaigns.
package delivery

import "context"

// EmailMessage is a fully rendered email ready to hand to a provider.
type EmailMessage struct {
	To      string
	Subject string
	Body    string
}

// SMSMessage is a fully rendered text message.
type SMSMessage struct {
	To   string
	Body string
}

// Result reports a provider send. ExternalID is the provider's message
// identifier when one was returned.
type Result struct {
	ExternalID string
}

// EmailChannel sends email through a provider.
type EmailChannel interface {
	SendEmail(ctx context.Context, message EmailMessage) (Result, error)
}

// SMSChannel sends text messages through a provider.
type SMSChannel interface {
	SendSMS(ctx context.Context, message SMSMessage) (Result, error)
}
