package models

import (
	"fmt"
	"strconv"
)

// PermissionManageGuild is the Discord MANAGE_GUILD bit. Holding it on a
// guild is what makes a user a "guild admin" for this application.
const PermissionManageGuild int64 = 0x20

// DiscordUser is the identity provider's /users/@me payload.
type DiscordUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	Email         string `json:"email"`
	Avatar        string `json:"avatar"`
	Verified      bool   `json:"verified"`
	MFAEnabled    bool   `json:"mfa_enabled"`
}

// AvatarURL returns the user's avatar, falling back to one of the default
// embed avatars the way the Discord CDN does.
func (u *DiscordUser) AvatarURL() string {
	if u.Avatar == "" {
		d, _ := strconv.Atoi(u.Discriminator)
		return fmt.Sprintf("https://cdn.discordapp.com/embed/avatars/%d.png", d%5)
	}
	return fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.jpg", u.ID, u.Avatar)
}

// DiscordGuild is one entry of the /users/@me/guilds payload. Permissions
// is the caller's permission bitmask within that guild.
type DiscordGuild struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Owner       bool   `json:"owner"`
	Permissions int64  `json:"permissions,string"`
}

// CanManage reports whether the bitmask carries MANAGE_GUILD.
func (g *DiscordGuild) CanManage() bool {
	return g.Permissions&PermissionManageGuild == PermissionManageGuild
}
