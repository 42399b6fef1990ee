// Package gateway adapts chat updates to swap engine calls. It is
// transport-agnostic: a Messenger implementation carries replies back to
// whatever chat platform delivers the updates.
package gateway

import "context"

// Update is one inbound chat message.
type Update struct {
	UserID int64
	ChatID int64
	Text   string
}

// Messenger delivers replies to a chat.
type Messenger interface {
	Send(ctx context.Context, chatID int64, text string) error
}
