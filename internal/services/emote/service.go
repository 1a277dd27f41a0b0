package emote

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/DiscordEmotes/website/internal/models"
	"github.com/DiscordEmotes/website/internal/utils"
	"github.com/DiscordEmotes/website/pkg/database"
)

var (
	ErrEmoteNotFound    = errors.New("emote not found")
	ErrInvalidImage     = errors.New("emote must be a PNG or JPEG image at most 128x128")
	ErrInvalidName      = errors.New("emote name must be 3-20 alphanumeric or underscore characters, not starting with or repeating underscores")
	ErrNameTaken        = errors.New("an emote with that name already exists in this guild")
	ErrQuotaExceeded    = errors.New("guild has reached the emote limit")
	ErrDuplicateContent = errors.New("this image is already in the guild's emote set")
	ErrNotShareable     = errors.New("emote is not shared and verified")
	ErrOwnEmote         = errors.New("guild already owns this emote")
	ErrAlreadyLinked    = errors.New("emote is already linked to this guild")
	ErrNotLinked        = errors.New("emote is not linked to this guild")
)

// MaxEmotesPerGuild caps a guild's effective set (owned plus linked). The
// ceiling is strict: the check is count >= 10 before insert, so a tenth
// emote succeeds and an eleventh does not.
const MaxEmotesPerGuild = 10

// Unique constraints backing the in-transaction checks; collisions on them
// are translated back into service sentinels.
const (
	constraintOwnerName     = "emotes_owner_name_idx"
	constraintOwnerFilename = "emotes_owner_filename_key"
	constraintSharePK       = "emote_shares_pkey"
)

// UploadRequest carries the multipart form fields of an emote upload.
type UploadRequest struct {
	GuildID string `json:"guildId" validate:"required,snowflake"`
	Name    string `json:"name" validate:"required,emotename"`
	Shared  bool   `json:"shared"`
}

// UpdateEmoteRequest toggles the owner's shared flag.
type UpdateEmoteRequest struct {
	Shared *bool `json:"shared" validate:"required"`
}

// LinkRequest names the emote to link into the requesting guild.
type LinkRequest struct {
	EmoteID string `json:"emoteId" validate:"required,uuid"`
}

// GuildAccess is the subset of the guild service the emote pipeline needs:
// the guild-admin precondition and the public-page gate.
type GuildAccess interface {
	RequireManaged(ctx context.Context, sessionID, guildID string) (*models.DiscordGuild, error)
	CanView(ctx context.Context, sessionID, guildID string) error
}

// FileStore is the object storage surface used by the pipeline and hooks.
type FileStore interface {
	Put(ctx context.Context, objectKey string, data []byte, contentType string) error
	Get(ctx context.Context, objectKey string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, objectKey string) error
	URL(objectKey string) string
}

type Service struct {
	store      Store
	files      FileStore
	guilds     GuildAccess
	dispatcher *Dispatcher
}

func NewService(store Store, files FileStore, guilds GuildAccess, dispatcher *Dispatcher) *Service {
	return &Service{store: store, files: files, guilds: guilds, dispatcher: dispatcher}
}

// Upload runs the ingestion pipeline: validate, derive the content name,
// enforce uniqueness and quota atomically with the insert, persist. The
// object is written before the row so a committed record always has a
// backing file.
func (s *Service) Upload(ctx context.Context, sessionID, guildID, name string, shared bool, data []byte) (*models.Emote, error) {
	if _, err := s.guilds.RequireManaged(ctx, sessionID, guildID); err != nil {
		return nil, err
	}

	name = utils.SanitizeString(name)
	if !utils.IsValidEmoteName(name) {
		return nil, ErrInvalidName
	}

	img, err := DecodeUpload(data)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	e := &models.Emote{
		ID:        uuid.New(),
		OwnerID:   guildID,
		Name:      name,
		Shared:    shared,
		Verified:  false,
		Filename:  img.ContentFilename(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Content-addressed, so re-writing identical bytes is a no-op even if
	// two uploads of the same image race.
	if err := s.files.Put(ctx, e.ObjectKey(), img.Data, img.ContentType()); err != nil {
		return nil, err
	}

	err = s.store.InSerializableTx(ctx, func(ctx context.Context, tx StoreTx) error {
		// Duplicate content is checked before the quota. The order matters:
		// when the filename is already in the effective set, the object key
		// just written is the live emote's key, and the rejection must not
		// reach the cleanup below.
		dup, err := tx.FilenameInEffectiveSet(ctx, guildID, e.Filename)
		if err != nil {
			return err
		}
		if dup {
			return ErrDuplicateContent
		}

		count, err := tx.EffectiveCount(ctx, guildID)
		if err != nil {
			return err
		}
		if count >= MaxEmotesPerGuild {
			return ErrQuotaExceeded
		}

		return tx.InsertEmote(ctx, e)
	})
	if err != nil {
		err = mapConstraint(err)
		// Leave the object alone on duplicate content: the record that got
		// there first owns it.
		if !errors.Is(err, ErrDuplicateContent) {
			if cleanupErr := s.files.Delete(ctx, e.ObjectKey()); cleanupErr != nil {
				log.Warn().Err(cleanupErr).Str("object", e.ObjectKey()).Msg("Failed to clean up emote file")
			}
		}
		return nil, err
	}

	e.ImageURL = s.files.URL(e.ObjectKey())
	return e, nil
}

// Delete removes an emote on behalf of a guild admin of the owning guild.
func (s *Service) Delete(ctx context.Context, sessionID string, emoteID uuid.UUID) error {
	e, err := s.Get(ctx, emoteID)
	if err != nil {
		return err
	}
	if _, err := s.guilds.RequireManaged(ctx, sessionID, e.OwnerID); err != nil {
		return err
	}
	return s.delete(ctx, e)
}

// ForceDelete removes an emote without an ownership check; the admin
// surface gates access before calling it.
func (s *Service) ForceDelete(ctx context.Context, emoteID uuid.UUID) error {
	e, err := s.Get(ctx, emoteID)
	if err != nil {
		return err
	}
	return s.delete(ctx, e)
}

// delete removes the row and its share links in one transaction, then
// fires the post-commit hooks (file removal first, then notification).
func (s *Service) delete(ctx context.Context, e *models.Emote) error {
	err := s.store.InTx(ctx, func(ctx context.Context, tx StoreTx) error {
		// Association rows go explicitly with the emote.
		if err := tx.DeleteEmoteLinks(ctx, e.ID); err != nil {
			return err
		}
		removed, err := tx.DeleteEmote(ctx, e.ID)
		if err != nil {
			return err
		}
		if !removed {
			return ErrEmoteNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.dispatcher.Dispatch(ctx, Change{Before: e})
	return nil
}

// SetShared toggles the owner's sharing opt-in. Unsharing does not retract
// existing links; it only stops new ones.
func (s *Service) SetShared(ctx context.Context, sessionID string, emoteID uuid.UUID, shared bool) (*models.Emote, error) {
	e, err := s.Get(ctx, emoteID)
	if err != nil {
		return nil, err
	}
	if _, err := s.guilds.RequireManaged(ctx, sessionID, e.OwnerID); err != nil {
		return nil, err
	}

	if e.Shared == shared {
		return e, nil
	}

	if err := s.store.UpdateShared(ctx, emoteID, shared); err != nil {
		return nil, err
	}

	e.Shared = shared
	return e, nil
}

// SetVerified flips the moderator verification flag and, when the value
// actually changed, fires the notification hooks exactly once. The guarded
// update makes a concurrent duplicate flip a no-op with no dispatch.
func (s *Service) SetVerified(ctx context.Context, emoteID uuid.UUID, verified bool) (*models.Emote, error) {
	before, err := s.Get(ctx, emoteID)
	if err != nil {
		return nil, err
	}

	changed, err := s.store.FlipVerified(ctx, emoteID, verified)
	if err != nil {
		return nil, err
	}
	if !changed {
		before.Verified = verified
		return before, nil
	}

	after := *before
	after.Verified = verified
	before.Verified = !verified

	s.dispatcher.Dispatch(ctx, Change{Before: before, After: &after})
	return &after, nil
}

// GuildEmotes resolves the guild's effective emote set: owned plus linked,
// stably ordered, always read from committed state.
func (s *Service) GuildEmotes(ctx context.Context, sessionID, guildID string) ([]models.Emote, error) {
	if err := s.guilds.CanView(ctx, sessionID, guildID); err != nil {
		return nil, err
	}

	emotes, err := s.store.GuildEmotes(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return s.withURLs(emotes), nil
}

// SharedEmotes lists every emote eligible for linking.
func (s *Service) SharedEmotes(ctx context.Context) ([]models.Emote, error) {
	emotes, err := s.store.SharedEmotes(ctx)
	if err != nil {
		return nil, err
	}
	return s.withURLs(emotes), nil
}

// Link adds a shared, verified emote to another guild's usable set,
// atomically with the same quota ceiling as uploads.
func (s *Service) Link(ctx context.Context, sessionID, guildID string, emoteID uuid.UUID) error {
	if _, err := s.guilds.RequireManaged(ctx, sessionID, guildID); err != nil {
		return err
	}

	err := s.store.InSerializableTx(ctx, func(ctx context.Context, tx StoreTx) error {
		e, err := tx.GetEmote(ctx, emoteID)
		if err != nil {
			return err
		}

		if !e.Shareable() {
			return ErrNotShareable
		}
		if e.OwnerID == guildID {
			return ErrOwnEmote
		}

		count, err := tx.EffectiveCount(ctx, guildID)
		if err != nil {
			return err
		}
		if count >= MaxEmotesPerGuild {
			return ErrQuotaExceeded
		}

		linked, err := tx.LinkExists(ctx, guildID, emoteID)
		if err != nil {
			return err
		}
		if linked {
			return ErrAlreadyLinked
		}

		return tx.InsertLink(ctx, guildID, emoteID)
	})
	return mapConstraint(err)
}

// Unlink removes a share link.
func (s *Service) Unlink(ctx context.Context, sessionID, guildID string, emoteID uuid.UUID) error {
	if _, err := s.guilds.RequireManaged(ctx, sessionID, guildID); err != nil {
		return err
	}

	removed, err := s.store.DeleteLink(ctx, guildID, emoteID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotLinked
	}
	return nil
}

// Get fetches a single emote by id.
func (s *Service) Get(ctx context.Context, emoteID uuid.UUID) (*models.Emote, error) {
	e, err := s.store.GetEmote(ctx, emoteID)
	if err != nil {
		return nil, err
	}
	e.ImageURL = s.files.URL(e.ObjectKey())
	return e, nil
}

// OpenFile streams the backing file for serving.
func (s *Service) OpenFile(ctx context.Context, guildID, filename string) (io.ReadCloser, string, error) {
	return s.files.Get(ctx, guildID+"/"+filename)
}

func (s *Service) withURLs(emotes []models.Emote) []models.Emote {
	for i := range emotes {
		emotes[i].ImageURL = s.files.URL(emotes[i].ObjectKey())
	}
	return emotes
}

// mapConstraint turns unique-constraint collisions into the matching
// sentinel so callers never see raw storage errors.
func mapConstraint(err error) error {
	switch database.UniqueViolationConstraint(err) {
	case constraintOwnerName:
		return ErrNameTaken
	case constraintOwnerFilename:
		return ErrDuplicateContent
	case constraintSharePK:
		return ErrAlreadyLinked
	}
	return err
}
