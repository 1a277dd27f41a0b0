package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/DiscordEmotes/website/config"
	"github.com/DiscordEmotes/website/internal/models"
	"github.com/DiscordEmotes/website/pkg/auth"
	"github.com/DiscordEmotes/website/pkg/database"
)

var (
	// ErrUnauthenticated means the provider rejected the token (401); the
	// caller should drop the session and treat the user as anonymous.
	ErrUnauthenticated = errors.New("discord token is no longer valid")
	// ErrUpstream covers transient provider failures.
	ErrUpstream = errors.New("discord api unavailable")
)

// Client is a thin Discord REST client: identity lookups on behalf of a
// user token, and bot-authenticated channel messages as the notification
// sink. Identity responses are cached in Redis with a short TTL.
type Client struct {
	http     *http.Client
	baseURL  string
	botToken string
	redis    *redis.Client
	cacheTTL time.Duration
}

func NewClient(cfg *config.Config, redisClient *redis.Client) *Client {
	return &Client{
		http:     &http.Client{Timeout: 10 * time.Second},
		baseURL:  cfg.Discord.APIBaseURL,
		botToken: cfg.Discord.BotToken,
		redis:    redisClient,
		cacheTTL: cfg.Discord.CacheTTL,
	}
}

// CurrentUser resolves the identity behind an OAuth access token.
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (*models.DiscordUser, error) {
	var user models.DiscordUser
	err := c.cachedGet(ctx, "user:"+auth.HashToken(accessToken), "/users/@me", accessToken, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UserGuilds returns every guild membership of the token's user, with the
// caller's permission bitmask per guild.
func (c *Client) UserGuilds(ctx context.Context, accessToken string) ([]models.DiscordGuild, error) {
	var guilds []models.DiscordGuild
	err := c.cachedGet(ctx, "guilds:"+auth.HashToken(accessToken), "/users/@me/guilds", accessToken, &guilds)
	if err != nil {
		return nil, err
	}
	return guilds, nil
}

// ManagedGuilds filters UserGuilds down to guilds where the user holds
// MANAGE_GUILD.
func (c *Client) ManagedGuilds(ctx context.Context, accessToken string) ([]models.DiscordGuild, error) {
	guilds, err := c.UserGuilds(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	managed := make([]models.DiscordGuild, 0, len(guilds))
	for _, g := range guilds {
		if g.CanManage() {
			managed = append(managed, g)
		}
	}
	return managed, nil
}

// InvalidateToken drops cached identity data for a token, used when the
// provider returns 401 or the user logs out.
func (c *Client) InvalidateToken(ctx context.Context, accessToken string) {
	hash := auth.HashToken(accessToken)
	if err := database.DeleteCachedIdentity(ctx, c.redis, "user:"+hash, "guilds:"+hash); err != nil {
		log.Warn().Err(err).Msg("Failed to invalidate cached identity")
	}
}

// SendGuildMessage delivers a notification to the guild's configured
// channel. Without a bot token this is a silent no-op; delivery is
// best-effort and never blocks the caller's state change.
func (c *Client) SendGuildMessage(ctx context.Context, channelID, content string) error {
	if c.botToken == "" {
		return nil
	}

	payload, err := json.Marshal(map[string]any{
		"content": content,
		"tts":     false,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message payload: %w", err)
	}

	url := fmt.Sprintf("%s/channels/%s/messages", c.baseURL, channelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build message request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.botToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: message delivery returned %d", ErrUpstream, resp.StatusCode)
	}
	return nil
}

// cachedGet serves path from the identity cache when possible, falling back
// to a live call. Only successful responses are cached.
func (c *Client) cachedGet(ctx context.Context, cacheKey, path, accessToken string, out any) error {
	if data, err := database.GetCachedIdentity(ctx, c.redis, cacheKey); err == nil {
		if jsonErr := json.Unmarshal(data, out); jsonErr == nil {
			return nil
		}
		// Corrupt cache entry, fall through to a live call.
	} else if !errors.Is(err, database.ErrCacheMiss) {
		log.Warn().Err(err).Msg("Identity cache read failed, falling back to live call")
	}

	body, err := c.get(ctx, path, accessToken)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode discord response: %w", err)
	}

	if err := database.SetCachedIdentity(ctx, c.redis, cacheKey, body, c.cacheTTL); err != nil {
		log.Warn().Err(err).Msg("Failed to cache identity response")
	}
	return nil
}

func (c *Client) get(ctx context.Context, path, accessToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthenticated
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: %s returned %d", ErrUpstream, path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read discord response: %w", err)
	}
	return body, nil
}
