package mailer

import "context"

// Message is one transactional email.
type Message struct {
	From    string
	To      []string
	ReplyTo string
	Subject string
	HTML    string
}

// Client is the transactional-mail provider boundary. Send failures are
// always absorbed by callers (logged, never propagated to the customer).
type Client interface {
	Send(ctx context.Context, msg Message) error
}
