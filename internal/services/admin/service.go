package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DiscordEmotes/website/config"
	"github.com/DiscordEmotes/website/internal/models"
	"github.com/DiscordEmotes/website/internal/services/emote"
)

var ErrNotAdmin = errors.New("not an administrator")

// SetVerifiedRequest carries the moderation verdict.
type SetVerifiedRequest struct {
	Verified *bool `json:"verified" validate:"required"`
}

// ListFilter narrows the moderation queue.
type ListFilter struct {
	Search   string
	Verified *bool
	Shared   *bool
}

type Service struct {
	db     *pgxpool.Pool
	cfg    *config.Config
	emotes *emote.Service
}

func NewService(db *pgxpool.Pool, cfg *config.Config, emotes *emote.Service) *Service {
	return &Service{db: db, cfg: cfg, emotes: emotes}
}

// Require rejects callers whose Discord user id is not on the admin list.
func (s *Service) Require(userID string) error {
	if !s.cfg.IsAdmin(userID) {
		return ErrNotAdmin
	}
	return nil
}

// ListEmotes returns every emote matching the filter, newest first.
func (s *Service) ListEmotes(ctx context.Context, userID string, filter ListFilter) ([]models.Emote, error) {
	if err := s.Require(userID); err != nil {
		return nil, err
	}

	query := `SELECT e.id, e.owner_id, e.name, e.shared, e.verified, e.filename, e.created_at, e.updated_at
		FROM emotes e`
	var conds []string
	var args []any

	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conds = append(conds, fmt.Sprintf("(LOWER(e.name) LIKE $%d OR e.owner_id LIKE $%d)", len(args), len(args)))
	}
	if filter.Verified != nil {
		args = append(args, *filter.Verified)
		conds = append(conds, fmt.Sprintf("e.verified = $%d", len(args)))
	}
	if filter.Shared != nil {
		args = append(args, *filter.Shared)
		conds = append(conds, fmt.Sprintf("e.shared = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY e.created_at DESC, e.id"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list emotes: %w", err)
	}
	defer rows.Close()

	var emotes []models.Emote
	for rows.Next() {
		var e models.Emote
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.Name, &e.Shared, &e.Verified, &e.Filename, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan emote: %w", err)
		}
		emotes = append(emotes, e)
	}
	return emotes, rows.Err()
}

// SetVerified flips an emote's verified flag and fires the owner notification.
func (s *Service) SetVerified(ctx context.Context, userID string, emoteID uuid.UUID, verified bool) (*models.Emote, error) {
	if err := s.Require(userID); err != nil {
		return nil, err
	}
	return s.emotes.SetVerified(ctx, emoteID, verified)
}

// DeleteEmote removes any emote regardless of ownership.
func (s *Service) DeleteEmote(ctx context.Context, userID string, emoteID uuid.UUID) error {
	if err := s.Require(userID); err != nil {
		return err
	}
	return s.emotes.ForceDelete(ctx, emoteID)
}
