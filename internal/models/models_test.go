package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscordGuildPermissions(t *testing.T) {
	// Discord serializes the bitmask as a decimal string.
	var g DiscordGuild
	require.NoError(t, json.Unmarshal([]byte(`{"id":"100","name":"Test","permissions":"2147483647"}`), &g))
	assert.Equal(t, int64(2147483647), g.Permissions)
	assert.True(t, g.CanManage())

	require.NoError(t, json.Unmarshal([]byte(`{"id":"200","permissions":"104320577"}`), &g))
	assert.False(t, g.CanManage())

	g = DiscordGuild{Permissions: PermissionManageGuild}
	assert.True(t, g.CanManage())
}

func TestDiscordUserAvatarURL(t *testing.T) {
	withAvatar := DiscordUser{ID: "42", Avatar: "abc123"}
	assert.Equal(t, "https://cdn.discordapp.com/avatars/42/abc123.jpg", withAvatar.AvatarURL())

	noAvatar := DiscordUser{ID: "42", Discriminator: "0007"}
	assert.Equal(t, "https://cdn.discordapp.com/embed/avatars/2.png", noAvatar.AvatarURL())
}

func TestEmoteObjectKey(t *testing.T) {
	e := Emote{
		OwnerID:  "123456789012345678",
		Filename: "aabbccddeeff00112233445566778899aabbccddeeff001122334455.png",
	}
	assert.Equal(t, "123456789012345678/aabbccddeeff00112233445566778899aabbccddeeff001122334455.png", e.ObjectKey())
}

func TestEmoteShareable(t *testing.T) {
	assert.False(t, (&Emote{}).Shareable())
	assert.False(t, (&Emote{Shared: true}).Shareable())
	assert.False(t, (&Emote{Verified: true}).Shareable())
	assert.True(t, (&Emote{Shared: true, Verified: true}).Shareable())
}

func TestGuildIconURL(t *testing.T) {
	icon := "deadbeef"
	g := Guild{ID: "100", Icon: &icon}
	assert.Equal(t, "https://cdn.discordapp.com/icons/100/deadbeef.jpg", g.IconURL())

	assert.Empty(t, (&Guild{ID: "100"}).IconURL())
	empty := ""
	assert.Empty(t, (&Guild{ID: "100", Icon: &empty}).IconURL())
}
