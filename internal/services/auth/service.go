package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/DiscordEmotes/website/config"
	"github.com/DiscordEmotes/website/internal/models"
	"github.com/DiscordEmotes/website/internal/services/discord"
	"github.com/DiscordEmotes/website/pkg/auth"
	"github.com/DiscordEmotes/website/pkg/database"
	"github.com/DiscordEmotes/website/pkg/encryption"
)

var (
	ErrInvalidState   = errors.New("invalid or expired oauth state")
	ErrExchangeFailed = errors.New("authorization code exchange failed")
	ErrNoSession      = errors.New("no active session")
)

const oauthStateTTL = 10 * time.Minute

// Service drives the Discord OAuth2 login and owns server-side sessions.
// A session is a Redis entry holding the user's OAuth token, sealed with
// AES-GCM; the browser only ever sees a signed JWT naming the session.
type Service struct {
	oauth      *oauth2.Config
	discord    *discord.Client
	redis      *redis.Client
	encKey     []byte
	secret     string
	sessionTTL time.Duration
}

func NewService(cfg *config.Config, redisClient *redis.Client, discordClient *discord.Client, encKey []byte) *Service {
	return &Service{
		oauth: &oauth2.Config{
			ClientID:     cfg.Discord.ClientID,
			ClientSecret: cfg.Discord.ClientSecret,
			RedirectURL:  cfg.Discord.RedirectURL,
			Scopes:       []string{"identify", "email", "guilds"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.Discord.AuthorizeURL,
				TokenURL: cfg.Discord.APIBaseURL + "/oauth2/token",
			},
		},
		discord:    discordClient,
		redis:      redisClient,
		encKey:     encKey,
		secret:     cfg.Session.Secret,
		sessionTTL: cfg.Session.TTL,
	}
}

// LoginURL builds the provider authorize redirect with a fresh single-use
// state token.
func (s *Service) LoginURL(ctx context.Context) (string, error) {
	state, err := auth.GenerateSecureToken(16)
	if err != nil {
		return "", fmt.Errorf("failed to generate oauth state: %w", err)
	}
	if err := database.SetOAuthState(ctx, s.redis, state, oauthStateTTL); err != nil {
		return "", fmt.Errorf("failed to store oauth state: %w", err)
	}
	return s.oauth.AuthCodeURL(state), nil
}

// HandleCallback completes the login: state check, code exchange, identity
// lookup, session creation. Returns the signed cookie token and the user.
func (s *Service) HandleCallback(ctx context.Context, state, code string) (string, *models.DiscordUser, error) {
	ok, err := database.ConsumeOAuthState(ctx, s.redis, state)
	if err != nil {
		return "", nil, fmt.Errorf("failed to check oauth state: %w", err)
	}
	if !ok {
		return "", nil, ErrInvalidState
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	user, err := s.discord.CurrentUser(ctx, token.AccessToken)
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve identity: %w", err)
	}

	sessionID := uuid.New().String()
	if err := s.storeToken(ctx, sessionID, token); err != nil {
		return "", nil, err
	}

	cookieToken, err := auth.GenerateSessionToken(sessionID, user.ID, s.secret, s.sessionTTL)
	if err != nil {
		return "", nil, err
	}

	return cookieToken, user, nil
}

// AccessToken resolves a session id to a usable OAuth access token,
// refreshing it through the provider when expired. A missing session or a
// failed refresh yields ErrNoSession so callers degrade to anonymous.
func (s *Service) AccessToken(ctx context.Context, sessionID string) (string, error) {
	token, err := s.loadToken(ctx, sessionID)
	if err != nil {
		return "", err
	}

	if token.Valid() {
		return token.AccessToken, nil
	}

	refreshed, err := s.oauth.TokenSource(ctx, token).Token()
	if err != nil {
		// Refresh token rejected: the credential is gone for good.
		s.destroy(ctx, sessionID, token.AccessToken)
		return "", ErrNoSession
	}

	if refreshed.AccessToken != token.AccessToken {
		if err := s.storeToken(ctx, sessionID, refreshed); err != nil {
			log.Warn().Err(err).Msg("Failed to persist refreshed oauth token")
		}
	}
	return refreshed.AccessToken, nil
}

// CurrentUser resolves the session to its Discord identity. A provider 401
// destroys the session and reads as "not logged in".
func (s *Service) CurrentUser(ctx context.Context, sessionID string) (*models.DiscordUser, error) {
	accessToken, err := s.AccessToken(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	user, err := s.discord.CurrentUser(ctx, accessToken)
	if err != nil {
		if errors.Is(err, discord.ErrUnauthenticated) {
			s.destroy(ctx, sessionID, accessToken)
			return nil, ErrNoSession
		}
		return nil, err
	}
	return user, nil
}

// Invalidate tears down a session whose token the provider rejected.
func (s *Service) Invalidate(ctx context.Context, sessionID string) {
	token, err := s.loadToken(ctx, sessionID)
	if err != nil {
		return
	}
	s.destroy(ctx, sessionID, token.AccessToken)
}

// Logout destroys the session explicitly.
func (s *Service) Logout(ctx context.Context, sessionID string) {
	s.Invalidate(ctx, sessionID)
}

func (s *Service) destroy(ctx context.Context, sessionID, accessToken string) {
	s.discord.InvalidateToken(ctx, accessToken)
	if err := database.DeleteSession(ctx, s.redis, sessionID); err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("Failed to delete session")
	}
}

func (s *Service) storeToken(ctx context.Context, sessionID string, token *oauth2.Token) error {
	raw, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal oauth token: %w", err)
	}

	sealed, err := encryption.Seal(raw, s.encKey)
	if err != nil {
		return fmt.Errorf("failed to seal oauth token: %w", err)
	}

	if err := database.SetSession(ctx, s.redis, sessionID, sealed, s.sessionTTL); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (s *Service) loadToken(ctx context.Context, sessionID string) (*oauth2.Token, error) {
	sealed, err := database.GetSession(ctx, s.redis, sessionID)
	if err != nil {
		if errors.Is(err, database.ErrCacheMiss) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	raw, err := encryption.Open(sealed, s.encKey)
	if err != nil {
		// Key rotation or corruption; either way the session is unusable.
		return nil, ErrNoSession
	}

	var token oauth2.Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, ErrNoSession
	}
	return &token, nil
}
