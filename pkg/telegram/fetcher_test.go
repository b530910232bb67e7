package telegram

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tgrab/pkg/errors"
)

// mockSession serves a fixed newest-first history per channel
type mockSession struct {
	channels  []*Channel
	histories map[int64][]Message
	media     map[int64]string
	calls     int
}

func (m *mockSession) Resolve(_ context.Context, handle string) (*Channel, error) {
	for _, ch := range m.channels {
		if ch.Handle == handle {
			return ch, nil
		}
	}
	return nil, errors.New(errors.ErrorTypeResolution, "no such channel: %s", handle)
}

func (m *mockSession) ResolveID(_ context.Context, id int64) (*Channel, error) {
	for _, ch := range m.channels {
		if ch.ID == id {
			return ch, nil
		}
	}
	return nil, errors.New(errors.ErrorTypeResolution, "no such channel: %d", id)
}

func (m *mockSession) Channels(_ context.Context) ([]*Channel, error) {
	return m.channels, nil
}

func (m *mockSession) History(_ context.Context, channelID, offsetID int64, limit int) ([]Message, error) {
	m.calls++
	history, ok := m.histories[channelID]
	if !ok {
		return nil, errors.New(errors.ErrorTypeForbidden, "not a member of %d", channelID)
	}

	var page []Message
	for _, msg := range history {
		if offsetID != 0 && msg.ID >= offsetID {
			continue
		}
		page = append(page, msg)
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

func (m *mockSession) Message(_ context.Context, channelID, postID int64) (*Message, error) {
	for _, msg := range m.histories[channelID] {
		if msg.ID == postID {
			return &msg, nil
		}
	}
	return nil, errors.New(errors.ErrorTypeResolution, "no such post: %d/%d", channelID, postID)
}

func (m *mockSession) Media(_ context.Context, channelID, postID int64) (io.ReadCloser, string, error) {
	blob, ok := m.media[postID]
	if !ok {
		return nil, "", errors.New(errors.ErrorTypeResolution, "post %d/%d has no media", channelID, postID)
	}
	return io.NopCloser(strings.NewReader(blob)), "photo.jpg", nil
}

func newestFirst(ids ...int64) []Message {
	msgs := make([]Message, 0, len(ids))
	for _, id := range ids {
		msgs = append(msgs, Message{ID: id, ChannelID: 100})
	}
	return msgs
}

func TestWalkChannelVisitsEveryMessageOnce(t *testing.T) {
	session := &mockSession{
		histories: map[int64][]Message{100: newestFirst(50, 40, 30, 20, 10)},
	}
	fetcher := NewFetcher(session, nil, nil)
	fetcher.pageSize = 2

	var visited []int64
	err := fetcher.WalkChannel(context.Background(), 100, true, func(msg Message) error {
		visited = append(visited, msg.ID)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int64{50, 40, 30, 20, 10}, visited)
}

func TestWalkChannelShallowStopsAfterFirstPage(t *testing.T) {
	session := &mockSession{
		histories: map[int64][]Message{100: newestFirst(50, 40, 30, 20, 10)},
	}
	fetcher := NewFetcher(session, nil, nil)
	fetcher.pageSize = 2

	var visited []int64
	err := fetcher.WalkChannel(context.Background(), 100, false, func(msg Message) error {
		visited = append(visited, msg.ID)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int64{50, 40}, visited)
	assert.Equal(t, 1, session.calls)
}

func TestWalkChannelForbidden(t *testing.T) {
	fetcher := NewFetcher(&mockSession{histories: map[int64][]Message{}}, nil, nil)

	err := fetcher.WalkChannel(context.Background(), 999, true, func(Message) error {
		t.Fatal("callback should not run for a forbidden channel")
		return nil
	})

	var terr *errors.Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, errors.ErrorTypeForbidden, terr.Type)
}

func TestWalkChannelCallbackErrorStopsWalk(t *testing.T) {
	session := &mockSession{
		histories: map[int64][]Message{100: newestFirst(50, 40, 30)},
	}
	fetcher := NewFetcher(session, nil, nil)

	stop := errors.New(errors.ErrorTypeUnknown, "stop")
	visited := 0
	err := fetcher.WalkChannel(context.Background(), 100, true, func(Message) error {
		visited++
		if visited == 2 {
			return stop
		}
		return nil
	})

	assert.Equal(t, stop, err)
	assert.Equal(t, 2, visited)
}

func TestFetchPost(t *testing.T) {
	session := &mockSession{
		histories: map[int64][]Message{100: {{ID: 42, ChannelID: 100, HasMedia: true}}},
	}
	fetcher := NewFetcher(session, nil, nil)

	msg, err := fetcher.FetchPost(context.Background(), 100, 42)
	require.NoError(t, err)
	assert.True(t, msg.HasMedia)

	_, err = fetcher.FetchPost(context.Background(), 100, 7)
	var terr *errors.Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, errors.ErrorTypeResolution, terr.Type)
}

func TestDownloadMedia(t *testing.T) {
	session := &mockSession{
		histories: map[int64][]Message{100: {{ID: 42, ChannelID: 100, HasMedia: true}}},
		media:     map[int64]string{42: "jpeg-bytes"},
	}
	fetcher := NewFetcher(session, nil, nil)

	body, name, err := fetcher.DownloadMedia(context.Background(), 100, 42)
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
	assert.Equal(t, "photo.jpg", name)
}

func TestResolveChannel(t *testing.T) {
	session := &mockSession{
		channels: []*Channel{{ID: 100, Handle: "@archive", Title: "Archive"}},
	}
	fetcher := NewFetcher(session, nil, nil)

	ch, err := fetcher.ResolveChannel(context.Background(), "@archive")
	require.NoError(t, err)
	assert.Equal(t, int64(100), ch.ID)

	_, err = fetcher.ResolveChannel(context.Background(), "@missing")
	var terr *errors.Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, errors.ErrorTypeResolution, terr.Type)
}

func TestMediaKey(t *testing.T) {
	assert.Equal(t, "tg:100:42:1", MediaKey(100, 42, 1))
}
