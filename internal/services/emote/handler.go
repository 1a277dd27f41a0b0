package emote

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nfnt/resize"
	"github.com/rs/zerolog/log"

	"github.com/DiscordEmotes/website/internal/middleware"
	"github.com/DiscordEmotes/website/internal/services/auth"
	"github.com/DiscordEmotes/website/internal/services/discord"
	"github.com/DiscordEmotes/website/internal/services/guild"
	"github.com/DiscordEmotes/website/internal/utils"
	"github.com/DiscordEmotes/website/pkg/storage"
)

const thumbnailSize = 64

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	// Browse emotes eligible for linking
	r.Get("/shared", h.ListShared)

	// Guild-scoped operations
	r.Route("/guilds/{guildID}", func(r chi.Router) {
		r.Get("/", h.ListGuildEmotes)
		r.Post("/", h.Upload)
		r.Post("/links", h.Link)
		r.Delete("/links/{emoteID}", h.Unlink)
	})

	// Single emote operations
	r.Get("/{emoteID}", h.GetEmote)
	r.Patch("/{emoteID}", h.UpdateEmote)
	r.Delete("/{emoteID}", h.DeleteEmote)

	return r
}

// FileRoutes serves the emote images themselves.
func (h *Handler) FileRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{guildID}/{filename}", h.ServeFile)
	r.Get("/{guildID}/{filename}/thumb", h.ServeThumbnail)
	return r
}

// Upload ingests a new emote for a guild.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	sessionID, _, err := middleware.RequireSession(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	// Extra room beyond the image cap for the other form fields.
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize+4096)
	if err := r.ParseMultipartForm(MaxUploadSize + 4096); err != nil {
		utils.RespondError(w, http.StatusRequestEntityTooLarge, "Upload too large")
		return
	}

	req := UploadRequest{
		GuildID: chi.URLParam(r, "guildID"),
		Name:    r.FormValue("name"),
	}
	req.Shared, _ = strconv.ParseBool(r.FormValue("shared"))

	if err := utils.Validate(&req); err != nil {
		utils.RespondValidationError(w, utils.FormatValidationErrors(err))
		return
	}

	file, _, err := r.FormFile("emote")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Emote image is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Failed to read upload")
		return
	}

	e, err := h.service.Upload(r.Context(), sessionID, req.GuildID, req.Name, req.Shared, data)
	if err != nil {
		respondEmoteError(w, err, "Failed to upload emote")
		return
	}

	utils.RespondCreated(w, e)
}

// ListGuildEmotes returns the guild's effective set (owned plus linked).
func (h *Handler) ListGuildEmotes(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := middleware.GetSessionID(r.Context())

	emotes, err := h.service.GuildEmotes(r.Context(), sessionID, chi.URLParam(r, "guildID"))
	if err != nil {
		respondEmoteError(w, err, "Failed to fetch emotes")
		return
	}

	utils.RespondSuccess(w, emotes)
}

// ListShared returns every shared, verified emote.
func (h *Handler) ListShared(w http.ResponseWriter, r *http.Request) {
	emotes, err := h.service.SharedEmotes(r.Context())
	if err != nil {
		respondEmoteError(w, err, "Failed to fetch shared emotes")
		return
	}

	utils.RespondSuccess(w, emotes)
}

// GetEmote resolves a single emote by id.
func (h *Handler) GetEmote(w http.ResponseWriter, r *http.Request) {
	emoteID, err := uuid.Parse(chi.URLParam(r, "emoteID"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid emote ID")
		return
	}

	e, err := h.service.Get(r.Context(), emoteID)
	if err != nil {
		respondEmoteError(w, err, "Failed to fetch emote")
		return
	}

	utils.RespondSuccess(w, e)
}

// UpdateEmote toggles the owner's shared flag.
func (h *Handler) UpdateEmote(w http.ResponseWriter, r *http.Request) {
	sessionID, _, err := middleware.RequireSession(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	emoteID, err := uuid.Parse(chi.URLParam(r, "emoteID"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid emote ID")
		return
	}

	var req UpdateEmoteRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := utils.Validate(&req); err != nil {
		utils.RespondValidationError(w, utils.FormatValidationErrors(err))
		return
	}

	e, err := h.service.SetShared(r.Context(), sessionID, emoteID, *req.Shared)
	if err != nil {
		respondEmoteError(w, err, "Failed to update emote")
		return
	}

	utils.RespondSuccess(w, e)
}

// DeleteEmote removes an emote, its file, and its share links.
func (h *Handler) DeleteEmote(w http.ResponseWriter, r *http.Request) {
	sessionID, _, err := middleware.RequireSession(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	emoteID, err := uuid.Parse(chi.URLParam(r, "emoteID"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid emote ID")
		return
	}

	if err := h.service.Delete(r.Context(), sessionID, emoteID); err != nil {
		respondEmoteError(w, err, "Failed to delete emote")
		return
	}

	utils.RespondNoContent(w)
}

// Link adds a shared, verified emote to the requesting guild's set.
func (h *Handler) Link(w http.ResponseWriter, r *http.Request) {
	sessionID, _, err := middleware.RequireSession(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req LinkRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := utils.Validate(&req); err != nil {
		utils.RespondValidationError(w, utils.FormatValidationErrors(err))
		return
	}

	emoteID, err := uuid.Parse(req.EmoteID)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid emote ID")
		return
	}

	if err := h.service.Link(r.Context(), sessionID, chi.URLParam(r, "guildID"), emoteID); err != nil {
		respondEmoteError(w, err, "Failed to link emote")
		return
	}

	utils.RespondNoContent(w)
}

// Unlink removes a share link from the requesting guild.
func (h *Handler) Unlink(w http.ResponseWriter, r *http.Request) {
	sessionID, _, err := middleware.RequireSession(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	emoteID, err := uuid.Parse(chi.URLParam(r, "emoteID"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid emote ID")
		return
	}

	if err := h.service.Unlink(r.Context(), sessionID, chi.URLParam(r, "guildID"), emoteID); err != nil {
		respondEmoteError(w, err, "Failed to unlink emote")
		return
	}

	utils.RespondNoContent(w)
}

// ServeFile streams the stored image. The name is content-derived, so the
// response can be cached forever.
func (h *Handler) ServeFile(w http.ResponseWriter, r *http.Request) {
	body, contentType, err := h.service.OpenFile(r.Context(), chi.URLParam(r, "guildID"), chi.URLParam(r, "filename"))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			utils.RespondError(w, http.StatusNotFound, "Emote not found")
			return
		}
		log.Error().Err(err).Msg("Failed to open emote file")
		utils.RespondError(w, http.StatusInternalServerError, "Failed to serve emote")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	io.Copy(w, body)
}

// ServeThumbnail serves a downscaled PNG preview for listing pages.
func (h *Handler) ServeThumbnail(w http.ResponseWriter, r *http.Request) {
	body, _, err := h.service.OpenFile(r.Context(), chi.URLParam(r, "guildID"), chi.URLParam(r, "filename"))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			utils.RespondError(w, http.StatusNotFound, "Emote not found")
			return
		}
		log.Error().Err(err).Msg("Failed to open emote file")
		utils.RespondError(w, http.StatusInternalServerError, "Failed to serve thumbnail")
		return
	}
	defer body.Close()

	img, _, err := image.Decode(body)
	if err != nil {
		log.Error().Err(err).Msg("Failed to decode stored emote")
		utils.RespondError(w, http.StatusInternalServerError, "Failed to serve thumbnail")
		return
	}

	thumb := resize.Thumbnail(thumbnailSize, thumbnailSize, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := png.Encode(&buf, thumb); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "Failed to serve thumbnail")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Write(buf.Bytes())
}

// respondEmoteError maps pipeline errors onto HTTP statuses.
func respondEmoteError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, auth.ErrNoSession):
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, guild.ErrNotManaged):
		utils.RespondError(w, http.StatusForbidden, "You don't manage this guild")
	case errors.Is(err, guild.ErrGuildNotFound):
		utils.RespondError(w, http.StatusNotFound, "Guild not found")
	case errors.Is(err, ErrEmoteNotFound), errors.Is(err, ErrNotLinked):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidImage), errors.Is(err, ErrInvalidName),
		errors.Is(err, ErrQuotaExceeded), errors.Is(err, ErrNotShareable),
		errors.Is(err, ErrOwnEmote):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNameTaken), errors.Is(err, ErrDuplicateContent),
		errors.Is(err, ErrAlreadyLinked):
		utils.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, discord.ErrUpstream):
		utils.RespondError(w, http.StatusBadGateway, "Identity provider unavailable")
	default:
		log.Error().Err(err).Msg(fallback)
		utils.RespondError(w, http.StatusInternalServerError, fallback)
	}
}
