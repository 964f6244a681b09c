// Package notify defines the outbound notification surface and the inbound
// message type for the command surface. The Telegram implementation lives in
// notify/telegram.
package notify

import "context"

// Link is a tappable label/URL pair rendered as an inline button.
type Link struct {
	Label string
	URL   string
}

// Inbound is a text message received from the chat service.
type Inbound struct {
	ChatID int64
	Text   string
}

// Notifier is the outbound capability surface the engine and command
// surface require. Sends are best-effort: the caller logs failures and
// never retries automatically.
type Notifier interface {
	// SendMessage delivers text to a chat. html enables rich-text parsing.
	SendMessage(ctx context.Context, chatID int64, text string, html bool) error
	// SendLinkList delivers a header plus a list of tappable links.
	SendLinkList(ctx context.Context, chatID int64, header string, links []Link) error
	// SendMenu delivers text together with the persistent command keyboard.
	SendMenu(ctx context.Context, chatID int64, text string) error
	// SendRemoveMenu delivers text and removes the command keyboard.
	SendRemoveMenu(ctx context.Context, chatID int64, text string, html bool) error
}

// Listener yields inbound messages for the command surface.
type Listener interface {
	// Updates returns a channel of inbound messages. The channel closes
	// when ctx is cancelled.
	Updates(ctx context.Context) <-chan Inbound
}
