package emote

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DiscordEmotes/website/internal/models"
)

type fakeFileStore struct {
	puts    []string
	deleted []string
	err     error
}

func (f *fakeFileStore) Put(ctx context.Context, objectKey string, data []byte, contentType string) error {
	f.puts = append(f.puts, objectKey)
	return nil
}

func (f *fakeFileStore) Get(ctx context.Context, objectKey string) (io.ReadCloser, string, error) {
	return nil, "", errors.New("not implemented")
}

func (f *fakeFileStore) Delete(ctx context.Context, objectKey string) error {
	f.deleted = append(f.deleted, objectKey)
	return f.err
}

func (f *fakeFileStore) URL(objectKey string) string { return "" }

type fakeNotifier struct {
	channels []string
	messages []string
	err      error
}

func (f *fakeNotifier) SendGuildMessage(ctx context.Context, channelID, content string) error {
	f.channels = append(f.channels, channelID)
	f.messages = append(f.messages, content)
	return f.err
}

func testEmote(name string) *models.Emote {
	return &models.Emote{
		ID:       uuid.New(),
		OwnerID:  "123456789012345678",
		Name:     name,
		Filename: "aabbccddeeff00112233445566778899aabbccddeeff001122334455.png",
	}
}

func TestDispatcherOrder(t *testing.T) {
	var order []string
	d := NewDispatcher()
	d.Register(func(ctx context.Context, c Change) { order = append(order, "first") })
	d.Register(func(ctx context.Context, c Change) { order = append(order, "second") })
	d.Register(func(ctx context.Context, c Change) { order = append(order, "third") })

	d.Dispatch(context.Background(), Change{Before: testEmote("pog")})

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestDispatcherExactlyOncePerDispatch(t *testing.T) {
	calls := 0
	d := NewDispatcher()
	d.Register(func(ctx context.Context, c Change) { calls++ })

	d.Dispatch(context.Background(), Change{Before: testEmote("pog")})
	assert.Equal(t, 1, calls)
}

func TestChangeDeleted(t *testing.T) {
	e := testEmote("pog")
	assert.True(t, Change{Before: e}.Deleted())
	assert.False(t, Change{After: e}.Deleted())
	assert.False(t, Change{Before: e, After: e}.Deleted())
}

func TestChangeVerifiedFlip(t *testing.T) {
	before := testEmote("pog")
	after := *before
	after.Verified = true

	verified, flipped := Change{Before: before, After: &after}.VerifiedFlip()
	assert.True(t, flipped)
	assert.True(t, verified)

	_, flipped = Change{Before: before, After: before}.VerifiedFlip()
	assert.False(t, flipped)

	_, flipped = Change{After: &after}.VerifiedFlip()
	assert.False(t, flipped)
}

func TestCleanupHook(t *testing.T) {
	t.Run("deletes file on deletion", func(t *testing.T) {
		files := &fakeFileStore{}
		e := testEmote("pog")

		CleanupHook(files)(context.Background(), Change{Before: e})

		require.Len(t, files.deleted, 1)
		assert.Equal(t, e.ObjectKey(), files.deleted[0])
	})

	t.Run("ignores non-deletions", func(t *testing.T) {
		files := &fakeFileStore{}
		e := testEmote("pog")

		CleanupHook(files)(context.Background(), Change{Before: e, After: e})

		assert.Empty(t, files.deleted)
	})

	t.Run("storage error does not panic", func(t *testing.T) {
		files := &fakeFileStore{err: errors.New("bucket gone")}
		CleanupHook(files)(context.Background(), Change{Before: testEmote("pog")})
	})
}

func TestNotifyHook(t *testing.T) {
	t.Run("deletion message", func(t *testing.T) {
		n := &fakeNotifier{}
		e := testEmote("pog")

		NotifyHook(n)(context.Background(), Change{Before: e})

		require.Len(t, n.messages, 1)
		assert.Equal(t, `Emote "pog" has been deleted and can no longer be used.`, n.messages[0])
		assert.Equal(t, e.OwnerID, n.channels[0])
	})

	t.Run("verification messages", func(t *testing.T) {
		before := testEmote("pog")
		verified := *before
		verified.Verified = true

		n := &fakeNotifier{}
		NotifyHook(n)(context.Background(), Change{Before: before, After: &verified})
		require.Len(t, n.messages, 1)
		assert.Equal(t, `Emote "pog" has been verified and can now be used.`, n.messages[0])

		n = &fakeNotifier{}
		NotifyHook(n)(context.Background(), Change{Before: &verified, After: before})
		require.Len(t, n.messages, 1)
		assert.Equal(t, `Emote "pog" has been unverified and can no longer be used.`, n.messages[0])
	})

	t.Run("silent when verified unchanged", func(t *testing.T) {
		e := testEmote("pog")
		n := &fakeNotifier{}

		NotifyHook(n)(context.Background(), Change{Before: e, After: e})

		assert.Empty(t, n.messages)
	})

	t.Run("delivery failure is swallowed", func(t *testing.T) {
		n := &fakeNotifier{err: errors.New("discord down")}
		NotifyHook(n)(context.Background(), Change{Before: testEmote("pog")})
		assert.Len(t, n.messages, 1)
	})
}
