package notifications

import "context"

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Message is one delivery on one channel. ToAdmin messages are addressed by
// the dispatcher to the configured admin contact for that channel.
type Message struct {
	Kind    string
	Channel Channel
	To      string
	ToAdmin bool
	Subject string
	Body    string
}

type Sink interface {
	Send(ctx context.Context, msg Message) error
}

type SinkFunc func(ctx context.Context, msg Message) error

func (f SinkFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }
