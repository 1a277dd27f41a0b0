package guild

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/DiscordEmotes/website/internal/middleware"
	"github.com/DiscordEmotes/website/internal/services/auth"
	"github.com/DiscordEmotes/website/internal/services/discord"
	"github.com/DiscordEmotes/website/internal/utils"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListManaged)
	r.Get("/{guildID}", h.GetGuild)
	r.Patch("/{guildID}/settings", h.UpdateSettings)

	return r
}

// ListManaged returns the guilds the logged-in user can manage.
func (h *Handler) ListManaged(w http.ResponseWriter, r *http.Request) {
	sessionID, _, err := middleware.RequireSession(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	guilds, err := h.service.ManagedGuilds(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err, "Failed to list guilds")
		return
	}

	utils.RespondSuccess(w, guilds)
}

// GetGuild returns cached metadata for a single guild page.
func (h *Handler) GetGuild(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")
	sessionID, _ := middleware.GetSessionID(r.Context())

	if err := h.service.CanView(r.Context(), sessionID, guildID); err != nil {
		respondServiceError(w, err, "Failed to fetch guild")
		return
	}

	g, err := h.service.Get(r.Context(), guildID)
	if err != nil {
		respondServiceError(w, err, "Failed to fetch guild")
		return
	}

	utils.RespondSuccess(w, map[string]any{
		"id":      g.ID,
		"name":    g.Name,
		"iconUrl": g.IconURL(),
		"public":  g.Public,
	})
}

// UpdateSettings toggles the public flag.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	sessionID, _, err := middleware.RequireSession(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req UpdateSettingsRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := utils.Validate(&req); err != nil {
		utils.RespondValidationError(w, utils.FormatValidationErrors(err))
		return
	}

	g, err := h.service.SetPublic(r.Context(), sessionID, chi.URLParam(r, "guildID"), *req.Public)
	if err != nil {
		respondServiceError(w, err, "Failed to update guild settings")
		return
	}

	utils.RespondSuccess(w, g)
}

// respondServiceError maps guild service errors onto HTTP statuses.
func respondServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, auth.ErrNoSession):
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, ErrNotManaged):
		utils.RespondError(w, http.StatusForbidden, "You don't manage this guild")
	case errors.Is(err, ErrGuildNotFound):
		utils.RespondError(w, http.StatusNotFound, "Guild not found")
	case errors.Is(err, discord.ErrUpstream):
		utils.RespondError(w, http.StatusBadGateway, "Identity provider unavailable")
	default:
		log.Error().Err(err).Msg(fallback)
		utils.RespondError(w, http.StatusInternalServerError, fallback)
	}
}
