package models

import (
	"time"

	"github.com/google/uuid"
)

// Emote is a guild-owned image asset. Filename is derived from the image
// content (SHA-224 hex plus extension, at most 60 characters), so identical
// pixel data always maps to the same object key.
type Emote struct {
	ID        uuid.UUID `json:"id" db:"id"`
	OwnerID   string    `json:"ownerId" db:"owner_id"`
	Name      string    `json:"name" db:"name"`
	Shared    bool      `json:"shared" db:"shared"`
	Verified  bool      `json:"verified" db:"verified"`
	Filename  string    `json:"filename" db:"filename"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	// ImageURL is computed from the CDN base and the object key; it is not
	// persisted.
	ImageURL string `json:"imageUrl,omitempty" db:"-"`
}

// ObjectKey is the storage key for the backing file.
func (e *Emote) ObjectKey() string {
	return e.OwnerID + "/" + e.Filename
}

// Shareable reports whether the emote may be linked into other guilds.
func (e *Emote) Shareable() bool {
	return e.Shared && e.Verified
}

// EmoteShare links an already shared and verified emote into a non-owning
// guild's usable set.
type EmoteShare struct {
	GuildID   string    `json:"guildId" db:"guild_id"`
	EmoteID   uuid.UUID `json:"emoteId" db:"emote_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
