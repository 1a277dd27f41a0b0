package models

import "fmt"

// Guild is cached display metadata for a Discord guild. The id is the
// provider's snowflake and is never generated locally; rows are upserted
// from the identity provider and never deleted.
type Guild struct {
	ID     string  `json:"id" db:"id"`
	Name   string  `json:"name" db:"name"`
	Icon   *string `json:"icon" db:"icon"`
	Public bool    `json:"public" db:"public"`
}

// IconURL returns the CDN URL for the guild icon, or "" when none is set.
func (g *Guild) IconURL() string {
	if g.Icon == nil || *g.Icon == "" {
		return ""
	}
	return fmt.Sprintf("https://cdn.discordapp.com/icons/%s/%s.jpg", g.ID, *g.Icon)
}
