package emote

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/DiscordEmotes/website/internal/models"
)

// Change is one committed emote state transition, handed to hooks with the
// before and after state. Before is nil on create, After is nil on delete.
type Change struct {
	Before *models.Emote
	After  *models.Emote
}

// Deleted reports whether the change removed the record.
func (c Change) Deleted() bool {
	return c.Before != nil && c.After == nil
}

// VerifiedFlip returns the new verified value and whether it actually
// changed.
func (c Change) VerifiedFlip() (bool, bool) {
	if c.Before == nil || c.After == nil {
		return false, false
	}
	return c.After.Verified, c.Before.Verified != c.After.Verified
}

// HookFunc is a side effect fired after a state change is durably
// committed. Hooks must tolerate failure on their own; the write they react
// to has already happened and will not be rolled back.
type HookFunc func(ctx context.Context, change Change)

// Dispatcher invokes registered hooks in registration order, exactly once
// per committed change. It replaces implicit persistence-layer signals: the
// write path calls Dispatch itself, strictly after commit, which is what
// makes the ordering and at-most-once behavior visible and testable.
type Dispatcher struct {
	hooks []HookFunc
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

func (d *Dispatcher) Register(h HookFunc) {
	d.hooks = append(d.hooks, h)
}

func (d *Dispatcher) Dispatch(ctx context.Context, change Change) {
	for _, h := range d.hooks {
		h(ctx, change)
	}
}

// Notifier is the outbound notification sink. The production implementation
// is the Discord client posting to the guild's channel.
type Notifier interface {
	SendGuildMessage(ctx context.Context, channelID, content string) error
}

// CleanupHook removes the backing file once a deletion is committed. It is
// registered before NotifyHook so the file is gone before the guild is
// told. A missing object is fine; an orphaned file after a crash is
// reconcilable offline.
func CleanupHook(files FileStore) HookFunc {
	return func(ctx context.Context, change Change) {
		if !change.Deleted() {
			return
		}
		key := change.Before.ObjectKey()
		if err := files.Delete(ctx, key); err != nil {
			log.Error().Err(err).Str("object", key).Msg("Failed to delete emote file")
		}
	}
}

// NotifyHook tells the owning guild about deletions and verification flips.
// Delivery failures are logged and swallowed; they never unwind the state
// change that triggered them.
func NotifyHook(notifier Notifier) HookFunc {
	return func(ctx context.Context, change Change) {
		var target *models.Emote
		var message string

		switch {
		case change.Deleted():
			target = change.Before
			message = fmt.Sprintf("Emote %q has been deleted and can no longer be used.", target.Name)
		default:
			verified, flipped := change.VerifiedFlip()
			if !flipped {
				return
			}
			target = change.After
			if verified {
				message = fmt.Sprintf("Emote %q has been verified and can now be used.", target.Name)
			} else {
				message = fmt.Sprintf("Emote %q has been unverified and can no longer be used.", target.Name)
			}
		}

		if err := notifier.SendGuildMessage(ctx, target.OwnerID, message); err != nil {
			log.Warn().Err(err).Str("guildId", target.OwnerID).Str("emote", target.Name).
				Msg("Failed to notify guild")
		}
	}
}
