package telegram

import (
	"context"
	"io"

	"tgrab/pkg/errors"
	"tgrab/pkg/logger"
	"tgrab/pkg/ratelimit"
)

// DefaultPageSize is the number of messages requested per history page
const DefaultPageSize = 100

// Fetcher resolves channels and walks their message histories. All session
// calls go through the shared rate limiter.
type Fetcher struct {
	session  Session
	limiter  ratelimit.Limiter
	pageSize int
	logger   logger.Logger
}

// NewFetcher creates a message fetcher backed by an authenticated session
func NewFetcher(session Session, limiter ratelimit.Limiter, log logger.Logger) *Fetcher {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Fetcher{
		session:  session,
		limiter:  limiter,
		pageSize: DefaultPageSize,
		logger:   log,
	}
}

func (f *Fetcher) wait(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return errors.New(errors.ErrorTypeTransport, "rate limit wait: %v", err)
	}
	return nil
}

// ResolveChannel maps a handle to a channel entity
func (f *Fetcher) ResolveChannel(ctx context.Context, handle string) (*Channel, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.session.Resolve(ctx, handle)
}

// AllChannels lists every channel and group visible to the session
func (f *Fetcher) AllChannels(ctx context.Context) ([]*Channel, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.session.Channels(ctx)
}

// FetchPost retrieves a single post by channel and post id
func (f *Fetcher) FetchPost(ctx context.Context, channelID, postID int64) (*Message, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}

	msg, err := f.session.Message(ctx, channelID, postID)
	if err != nil {
		return nil, err
	}

	f.logger.WithFields(map[string]interface{}{
		"channel_id": channelID,
		"post_id":    postID,
		"has_media":  msg.HasMedia,
	}).Debug("post fetched")

	return msg, nil
}

// DownloadMedia streams the media blob attached to a post. The returned name
// suggests a filename extension. The caller must close the reader.
func (f *Fetcher) DownloadMedia(ctx context.Context, channelID, postID int64) (io.ReadCloser, string, error) {
	if err := f.wait(ctx); err != nil {
		return nil, "", err
	}
	return f.session.Media(ctx, channelID, postID)
}

// WalkChannel visits a channel's messages newest first, calling fn for each.
// When full is false only the newest history page is visited. The walk always
// starts from the newest message; there is no persisted cursor, dedup happens
// downstream per link. fn returning an error stops the walk.
func (f *Fetcher) WalkChannel(ctx context.Context, channelID int64, full bool, fn func(Message) error) error {
	var offsetID int64
	visited := 0

	for {
		if err := f.wait(ctx); err != nil {
			return err
		}

		page, err := f.session.History(ctx, channelID, offsetID, f.pageSize)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			break
		}

		for _, msg := range page {
			if err := fn(msg); err != nil {
				return err
			}
		}

		visited += len(page)
		offsetID = page[len(page)-1].ID
		if !full {
			break
		}
	}

	f.logger.WithFields(map[string]interface{}{
		"channel_id": channelID,
		"messages":   visited,
		"full":       full,
	}).Debug("channel walk complete")

	return nil
}
