package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/DiscordEmotes/website/config"
)

func TestNewServiceOAuthEndpoints(t *testing.T) {
	cfg := &config.Config{}
	cfg.Discord.ClientID = "client-id"
	cfg.Discord.RedirectURL = "http://localhost:8080/api/v1/auth/callback"
	cfg.Discord.APIBaseURL = "https://discord.com/api/v10"
	cfg.Discord.AuthorizeURL = "https://discord.com/oauth2/authorize"

	s := NewService(cfg, nil, nil, nil)

	// The authorize URL points at the bare discord.com host; only the
	// token exchange goes through the API base.
	assert.Equal(t, "https://discord.com/oauth2/authorize", s.oauth.Endpoint.AuthURL)
	assert.Equal(t, "https://discord.com/api/v10/oauth2/token", s.oauth.Endpoint.TokenURL)
	assert.Equal(t, "http://localhost:8080/api/v1/auth/callback", s.oauth.RedirectURL)
}
