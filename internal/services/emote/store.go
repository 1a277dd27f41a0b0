package emote

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DiscordEmotes/website/internal/models"
	"github.com/DiscordEmotes/website/pkg/database"
)

// Store is the persistence surface of the emote pipeline. Reads outside a
// transaction always see committed state; the Tx variants run the callback
// inside one transaction so quota and uniqueness checks are atomic with
// their insert.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx StoreTx) error) error
	InSerializableTx(ctx context.Context, fn func(ctx context.Context, tx StoreTx) error) error

	GetEmote(ctx context.Context, emoteID uuid.UUID) (*models.Emote, error)
	GuildEmotes(ctx context.Context, guildID string) ([]models.Emote, error)
	SharedEmotes(ctx context.Context) ([]models.Emote, error)
	UpdateShared(ctx context.Context, emoteID uuid.UUID, shared bool) error
	// FlipVerified is a guarded update; it reports whether the row actually
	// changed so a concurrent duplicate flip dispatches nothing.
	FlipVerified(ctx context.Context, emoteID uuid.UUID, verified bool) (bool, error)
	DeleteLink(ctx context.Context, guildID string, emoteID uuid.UUID) (bool, error)
}

// StoreTx is the query surface available inside a transaction.
type StoreTx interface {
	EffectiveCount(ctx context.Context, guildID string) (int, error)
	FilenameInEffectiveSet(ctx context.Context, guildID, filename string) (bool, error)
	InsertEmote(ctx context.Context, e *models.Emote) error
	GetEmote(ctx context.Context, emoteID uuid.UUID) (*models.Emote, error)
	LinkExists(ctx context.Context, guildID string, emoteID uuid.UUID) (bool, error)
	InsertLink(ctx context.Context, guildID string, emoteID uuid.UUID) error
	DeleteEmoteLinks(ctx context.Context, emoteID uuid.UUID) error
	DeleteEmote(ctx context.Context, emoteID uuid.UUID) (bool, error)
}

const emoteColumns = `id, owner_id, name, shared, verified, filename, created_at, updated_at`

type postgresStore struct {
	db *pgxpool.Pool
}

// NewStore returns the pgx-backed Store.
func NewStore(db *pgxpool.Pool) Store {
	return &postgresStore{db: db}
}

func (p *postgresStore) InTx(ctx context.Context, fn func(ctx context.Context, tx StoreTx) error) error {
	return database.WithTransaction(ctx, p.db, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &postgresTx{tx: tx})
	})
}

func (p *postgresStore) InSerializableTx(ctx context.Context, fn func(ctx context.Context, tx StoreTx) error) error {
	return database.WithSerializableTx(ctx, p.db, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &postgresTx{tx: tx})
	})
}

func (p *postgresStore) GetEmote(ctx context.Context, emoteID uuid.UUID) (*models.Emote, error) {
	return scanEmote(p.db.QueryRow(ctx,
		`SELECT `+emoteColumns+` FROM emotes WHERE id = $1`, emoteID))
}

func (p *postgresStore) GuildEmotes(ctx context.Context, guildID string) ([]models.Emote, error) {
	rows, err := p.db.Query(ctx,
		`SELECT e.id, e.owner_id, e.name, e.shared, e.verified, e.filename, e.created_at, e.updated_at
		FROM emotes e
		WHERE e.owner_id = $1
		UNION
		SELECT e.id, e.owner_id, e.name, e.shared, e.verified, e.filename, e.created_at, e.updated_at
		FROM emotes e
		JOIN emote_shares s ON s.emote_id = e.id
		WHERE s.guild_id = $1
		ORDER BY name, id`,
		guildID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch guild emotes: %w", err)
	}
	defer rows.Close()

	return collectEmotes(rows)
}

func (p *postgresStore) SharedEmotes(ctx context.Context) ([]models.Emote, error) {
	rows, err := p.db.Query(ctx,
		`SELECT `+emoteColumns+`
		FROM emotes
		WHERE shared AND verified
		ORDER BY name, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch shared emotes: %w", err)
	}
	defer rows.Close()

	return collectEmotes(rows)
}

func (p *postgresStore) UpdateShared(ctx context.Context, emoteID uuid.UUID, shared bool) error {
	_, err := p.db.Exec(ctx,
		`UPDATE emotes SET shared = $1, updated_at = NOW() WHERE id = $2`,
		shared, emoteID,
	)
	if err != nil {
		return fmt.Errorf("failed to update emote: %w", err)
	}
	return nil
}

func (p *postgresStore) FlipVerified(ctx context.Context, emoteID uuid.UUID, verified bool) (bool, error) {
	tag, err := p.db.Exec(ctx,
		`UPDATE emotes SET verified = $1, updated_at = NOW() WHERE id = $2 AND verified <> $1`,
		verified, emoteID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update emote: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (p *postgresStore) DeleteLink(ctx context.Context, guildID string, emoteID uuid.UUID) (bool, error) {
	tag, err := p.db.Exec(ctx,
		`DELETE FROM emote_shares WHERE guild_id = $1 AND emote_id = $2`,
		guildID, emoteID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to unlink emote: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

type postgresTx struct {
	tx pgx.Tx
}

func (p *postgresTx) EffectiveCount(ctx context.Context, guildID string) (int, error) {
	var count int
	err := p.tx.QueryRow(ctx,
		`SELECT (SELECT COUNT(*) FROM emotes WHERE owner_id = $1)
		      + (SELECT COUNT(*) FROM emote_shares WHERE guild_id = $1)`,
		guildID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count emotes: %w", err)
	}
	return count, nil
}

func (p *postgresTx) FilenameInEffectiveSet(ctx context.Context, guildID, filename string) (bool, error) {
	var exists bool
	err := p.tx.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM emotes WHERE owner_id = $1 AND filename = $2
			UNION
			SELECT 1 FROM emotes e
			JOIN emote_shares s ON s.emote_id = e.id
			WHERE s.guild_id = $1 AND e.filename = $2
		)`,
		guildID, filename,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check duplicate content: %w", err)
	}
	return exists, nil
}

func (p *postgresTx) InsertEmote(ctx context.Context, e *models.Emote) error {
	_, err := p.tx.Exec(ctx,
		`INSERT INTO emotes (id, owner_id, name, shared, verified, filename, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.OwnerID, e.Name, e.Shared, e.Verified, e.Filename, e.CreatedAt, e.UpdatedAt,
	)
	return err
}

func (p *postgresTx) GetEmote(ctx context.Context, emoteID uuid.UUID) (*models.Emote, error) {
	return scanEmote(p.tx.QueryRow(ctx,
		`SELECT `+emoteColumns+` FROM emotes WHERE id = $1`, emoteID))
}

func (p *postgresTx) LinkExists(ctx context.Context, guildID string, emoteID uuid.UUID) (bool, error) {
	var linked bool
	err := p.tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM emote_shares WHERE guild_id = $1 AND emote_id = $2)`,
		guildID, emoteID,
	).Scan(&linked)
	if err != nil {
		return false, fmt.Errorf("failed to check link: %w", err)
	}
	return linked, nil
}

func (p *postgresTx) InsertLink(ctx context.Context, guildID string, emoteID uuid.UUID) error {
	_, err := p.tx.Exec(ctx,
		`INSERT INTO emote_shares (guild_id, emote_id, created_at) VALUES ($1, $2, NOW())`,
		guildID, emoteID,
	)
	return err
}

func (p *postgresTx) DeleteEmoteLinks(ctx context.Context, emoteID uuid.UUID) error {
	_, err := p.tx.Exec(ctx, `DELETE FROM emote_shares WHERE emote_id = $1`, emoteID)
	return err
}

func (p *postgresTx) DeleteEmote(ctx context.Context, emoteID uuid.UUID) (bool, error) {
	tag, err := p.tx.Exec(ctx, `DELETE FROM emotes WHERE id = $1`, emoteID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanEmote(row pgx.Row) (*models.Emote, error) {
	e := &models.Emote{}
	err := row.Scan(&e.ID, &e.OwnerID, &e.Name, &e.Shared, &e.Verified, &e.Filename, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEmoteNotFound
		}
		return nil, fmt.Errorf("failed to fetch emote: %w", err)
	}
	return e, nil
}

func collectEmotes(rows pgx.Rows) ([]models.Emote, error) {
	var emotes []models.Emote
	for rows.Next() {
		var e models.Emote
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.Name, &e.Shared, &e.Verified, &e.Filename, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan emote: %w", err)
		}
		emotes = append(emotes, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read emotes: %w", err)
	}

	if emotes == nil {
		emotes = []models.Emote{}
	}
	return emotes, nil
}
