// Package telegram walks message-source channels and resolves posts through
// an authenticated Session collaborator. The session owns all protocol and
// authentication concerns; this package owns pagination and failure isolation.
package telegram

import (
	"context"
	"fmt"
	"io"
)

// Channel is a resolved message-source entity
type Channel struct {
	ID     int64
	Title  string
	Handle string
}

// Message is one post record in a channel history
type Message struct {
	ID        int64
	ChannelID int64
	Text      string
	HasMedia  bool
}

// Session is the authenticated message-source collaborator. Implementations
// return typed errors from pkg/errors: ErrorTypeResolution when an entity
// cannot be found, ErrorTypeForbidden when the session is not a member.
type Session interface {
	// Resolve maps a handle (@name) to a channel entity
	Resolve(ctx context.Context, handle string) (*Channel, error)

	// ResolveID maps a numeric channel id to a channel entity
	ResolveID(ctx context.Context, id int64) (*Channel, error)

	// Channels enumerates every channel and group visible to the session
	Channels(ctx context.Context) ([]*Channel, error)

	// History returns one page of messages strictly older than offsetID,
	// newest first. offsetID 0 starts from the newest message. An empty page
	// means the history is exhausted.
	History(ctx context.Context, channelID, offsetID int64, limit int) ([]Message, error)

	// Message fetches a single post by channel and post id
	Message(ctx context.Context, channelID, postID int64) (*Message, error)

	// Media streams the media blob attached to a post. The returned name
	// suggests a filename extension. The caller must close the reader.
	Media(ctx context.Context, channelID, postID int64) (io.ReadCloser, string, error)
}

// MediaKey builds the dedup key for a post's media blob. Message media has no
// stable URL, so the key is a scheme-qualified composite of the ids.
func MediaKey(channelID, postID int64, ordinal int) string {
	return fmt.Sprintf("tg:%d:%d:%d", channelID, postID, ordinal)
}
