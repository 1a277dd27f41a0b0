package guild

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/DiscordEmotes/website/internal/models"
	"github.com/DiscordEmotes/website/internal/services/auth"
	"github.com/DiscordEmotes/website/internal/services/discord"
	"github.com/DiscordEmotes/website/pkg/database"
)

var (
	ErrGuildNotFound = errors.New("guild not found")
	ErrNotManaged    = errors.New("user does not manage this guild")
)

// UpdateSettingsRequest toggles anonymous visibility of the guild page.
type UpdateSettingsRequest struct {
	Public *bool `json:"public" validate:"required"`
}

// Service resolves guild membership and manages the locally cached guild
// rows. Display metadata (name, icon) is refreshed opportunistically from
// the identity provider whenever the managed list is fetched; rows are
// never deleted.
type Service struct {
	db       *pgxpool.Pool
	discord  *discord.Client
	sessions *auth.Service
}

func NewService(db *pgxpool.Pool, discordClient *discord.Client, sessions *auth.Service) *Service {
	return &Service{db: db, discord: discordClient, sessions: sessions}
}

// ManagedGuilds lists guilds the session user holds MANAGE_GUILD on, and
// upserts their metadata. A provider 401 invalidates the session and reads
// as auth.ErrNoSession.
func (s *Service) ManagedGuilds(ctx context.Context, sessionID string) ([]models.DiscordGuild, error) {
	accessToken, err := s.sessions.AccessToken(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	managed, err := s.discord.ManagedGuilds(ctx, accessToken)
	if err != nil {
		if errors.Is(err, discord.ErrUnauthenticated) {
			s.sessions.Invalidate(ctx, sessionID)
			return nil, auth.ErrNoSession
		}
		return nil, err
	}

	if err := s.upsertAll(ctx, managed); err != nil {
		// Metadata refresh is opportunistic; the listing still stands.
		log.Warn().Err(err).Msg("Failed to upsert guild metadata")
	}

	return managed, nil
}

// RequireManaged is the guild-admin precondition: the session user must
// hold MANAGE_GUILD on guildID.
func (s *Service) RequireManaged(ctx context.Context, sessionID, guildID string) (*models.DiscordGuild, error) {
	managed, err := s.ManagedGuilds(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for i := range managed {
		if managed[i].ID == guildID {
			return &managed[i], nil
		}
	}
	return nil, ErrNotManaged
}

// Get returns the locally cached guild row.
func (s *Service) Get(ctx context.Context, guildID string) (*models.Guild, error) {
	g := &models.Guild{}
	err := s.db.QueryRow(ctx,
		`SELECT id, name, icon, public FROM guilds WHERE id = $1`,
		guildID,
	).Scan(&g.ID, &g.Name, &g.Icon, &g.Public)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGuildNotFound
		}
		return nil, fmt.Errorf("failed to fetch guild: %w", err)
	}
	return g, nil
}

// CanView gates a guild's emote page: public guilds are open to everyone,
// private ones only to their managers. Private guilds read as not found so
// their existence is not leaked.
func (s *Service) CanView(ctx context.Context, sessionID, guildID string) error {
	g, err := s.Get(ctx, guildID)
	if err != nil {
		return err
	}
	if g.Public {
		return nil
	}
	if sessionID == "" {
		return ErrGuildNotFound
	}
	if _, err := s.RequireManaged(ctx, sessionID, guildID); err != nil {
		if errors.Is(err, ErrNotManaged) || errors.Is(err, auth.ErrNoSession) {
			return ErrGuildNotFound
		}
		return err
	}
	return nil
}

// SetPublic toggles whether non-members may view the guild's emote page.
func (s *Service) SetPublic(ctx context.Context, sessionID, guildID string, public bool) (*models.Guild, error) {
	if _, err := s.RequireManaged(ctx, sessionID, guildID); err != nil {
		return nil, err
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE guilds SET public = $1 WHERE id = $2`,
		public, guildID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update guild: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrGuildNotFound
	}

	return s.Get(ctx, guildID)
}

// upsertAll refreshes id/name/icon for the given guilds in one transaction.
// The public flag is locally owned and left untouched on conflict.
func (s *Service) upsertAll(ctx context.Context, guilds []models.DiscordGuild) error {
	if len(guilds) == 0 {
		return nil
	}

	return database.WithTransaction(ctx, s.db, func(ctx context.Context, tx pgx.Tx) error {
		for _, g := range guilds {
			var icon *string
			if g.Icon != "" {
				icon = &g.Icon
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO guilds (id, name, icon)
				VALUES ($1, $2, $3)
				ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, icon = EXCLUDED.icon`,
				g.ID, g.Name, icon,
			)
			if err != nil {
				return fmt.Errorf("failed to upsert guild %s: %w", g.ID, err)
			}
		}
		return nil
	})
}
